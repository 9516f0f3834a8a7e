package propagation

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontask/engine/pkg/formula"
	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/table"
	"github.com/ontask/engine/pkg/testutil"
)

func setup(t *testing.T, w *models.Workflow) *Propagator {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	// Every pooled connection to :memory: would see its own database.
	db.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tbl := table.New(db, table.SQLite{}, w.ID, logger)

	require.NoError(t, tbl.Store(context.Background(), testutil.CreateTestFrame(), w.Columns))

	return New(tbl, logger)
}

func TestRenameColumn_RewritesEveryReference(t *testing.T) {
	a := testutil.CreateTestAction(
		testutil.WithFilter(testutil.LeafFormula("score", "integer", "greater", float64(50))),
		testutil.WithCondition("passed", testutil.LeafFormula("score", "integer", "greater_or_equal", float64(50))),
	)
	a.TextContent = "Your score: {{ score }} {% if passed %}ok{% endif %}"
	a.Triples = []*models.ColumnCondition{{Column: "score"}}
	a.SetRubricCell(&models.RubricCell{Column: "score", LOAPosition: 0})

	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	w.Views = []*models.View{{
		Name:    "scores",
		Columns: []string{"email", "score"},
		Formula: testutil.LeafFormula("score", "integer", "is_not_null", nil),
	}}
	w.Attributes["hint"] = "see {{ score }}"

	p := setup(t, w)

	require.NoError(t, p.RenameColumn(context.Background(), w, "score", "final score"))

	assert.Nil(t, w.ColumnByName("score"))
	require.NotNil(t, w.ColumnByName("final score"))

	assert.Equal(t, []string{"final score"}, formula.Variables(a.Filter.Formula))
	assert.Equal(t, []string{"final score"}, formula.Variables(a.Conditions[0].Formula))
	assert.Equal(t, "Your score: {{ final score }} {% if passed %}ok{% endif %}", a.TextContent)
	assert.Equal(t, "final score", a.Triples[0].Column)
	assert.Equal(t, "final score", a.RubricCells[0].Column)

	view := w.Views[0]
	assert.Equal(t, []string{"email", "final score"}, view.Columns)
	assert.Equal(t, []string{"final score"}, formula.Variables(view.Formula))

	assert.Equal(t, "see {{ final score }}", w.Attributes["hint"])

	// The data table column moved with the metadata.
	unique, err := p.table.IsUnique(context.Background(), "final score")
	require.NoError(t, err)
	assert.True(t, unique)
}

func TestRenameColumn_Collisions(t *testing.T) {
	a := testutil.CreateTestAction(
		testutil.WithCondition("passed", testutil.LeafFormula("score", "integer", "greater", float64(50))),
	)
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	p := setup(t, w)

	err := p.RenameColumn(context.Background(), w, "score", "email")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNameCollision)

	err = p.RenameColumn(context.Background(), w, "score", "passed")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNameCollision)

	err = p.RenameColumn(context.Background(), w, "score", "course")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNameCollision)

	err = p.RenameColumn(context.Background(), w, "ghost", "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMissingResource)
}

func TestFilterEdited_RecomputesCounts(t *testing.T) {
	a := testutil.CreateTestAction(
		testutil.WithFilter(testutil.LeafFormula("score", "integer", "greater_or_equal", float64(50))),
		testutil.WithCondition("active", testutil.LeafFormula("enrolled", "boolean", "equal", true)),
	)
	a.RowsAllFalse = []int64{9}

	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	p := setup(t, w)

	require.NoError(t, p.FilterEdited(context.Background(), w, a))

	// Alice (82) and Carol (67) pass the filter; only Alice is enrolled.
	assert.Equal(t, 2, a.Filter.SelectedCount)
	assert.Equal(t, 1, a.Conditions[0].SelectedCount)
	assert.Nil(t, a.RowsAllFalse)
}

func TestFilterEdited_InvalidFormula(t *testing.T) {
	a := testutil.CreateTestAction(
		testutil.WithFilter(testutil.LeafFormula("ghost", "integer", "equal", float64(1))),
	)
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	p := setup(t, w)

	err := p.FilterEdited(context.Background(), w, a)
	require.Error(t, err)
	assert.ErrorIs(t, err, formula.ErrInvalidFormula)
}

func TestConditionEdited(t *testing.T) {
	a := testutil.CreateTestAction(
		testutil.WithFilter(testutil.LeafFormula("enrolled", "boolean", "equal", true)),
		testutil.WithCondition("high", testutil.LeafFormula("score", "integer", "greater_or_equal", float64(80))),
	)
	a.RowsAllFalse = []int64{9}

	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	p := setup(t, w)

	// The count is taken under the filter: enrolled rows with score >= 80.
	require.NoError(t, p.ConditionEdited(context.Background(), w, a, "high"))
	assert.Equal(t, 1, a.Conditions[0].SelectedCount)
	assert.Nil(t, a.RowsAllFalse)

	err := p.ConditionEdited(context.Background(), w, a, "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMissingResource)
}

func TestRenameCondition(t *testing.T) {
	a := testutil.CreateTestAction(
		testutil.WithCondition("passed", testutil.LeafFormula("score", "integer", "greater_or_equal", float64(50))),
	)
	a.TextContent = "{% if passed %}Well done{% endif %}"

	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	p := setup(t, w)

	require.NoError(t, p.RenameCondition(w, a, "passed", "made it"))

	assert.Nil(t, a.ConditionByName("passed"))
	require.NotNil(t, a.ConditionByName("made it"))
	assert.Equal(t, "{% if made it %}Well done{% endif %}", a.TextContent)

	// Column names stay off limits for condition names.
	err := p.RenameCondition(w, a, "made it", "score")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNameCollision)
}

func TestDeleteCondition(t *testing.T) {
	a := testutil.CreateTestAction(
		testutil.WithCondition("passed", testutil.LeafFormula("score", "integer", "greater_or_equal", float64(50))),
	)
	a.TextContent = "{% if passed %}Well done{% endif %}"

	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	p := setup(t, w)

	// Deletion is refused while the template still guards on the name.
	err := p.DeleteCondition(w, a, "passed")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConditionReferenced)

	a.TextContent = "Well done"
	require.NoError(t, p.DeleteCondition(w, a, "passed"))
	assert.Empty(t, a.Conditions)

	err = p.DeleteCondition(w, a, "passed")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMissingResource)
}

func TestDataChanged(t *testing.T) {
	a := testutil.CreateTestAction(
		testutil.WithFilter(testutil.LeafFormula("score", "integer", "greater", float64(50))),
		testutil.WithCondition("passed", testutil.LeafFormula("score", "integer", "greater_or_equal", float64(50))),
	)
	a.Filter.SelectedCount = 2
	a.Conditions[0].SelectedCount = 2
	a.RowsAllFalse = []int64{1}

	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	p := setup(t, w)

	p.DataChanged(context.Background(), w)

	assert.Equal(t, models.CountUnknown, a.Filter.SelectedCount)
	assert.Equal(t, models.CountUnknown, a.Conditions[0].SelectedCount)
	assert.Nil(t, a.RowsAllFalse)
}

func TestColumnDeleted_Cascades(t *testing.T) {
	a := testutil.CreateTestAction(
		testutil.WithFilter(testutil.LeafFormula("score", "integer", "greater", float64(50))),
		testutil.WithCondition("active", testutil.LeafFormula("enrolled", "boolean", "equal", true)),
		testutil.WithCondition("high", testutil.LeafFormula("score", "integer", "greater_or_equal", float64(80))),
	)
	a.Triples = []*models.ColumnCondition{{Column: "score"}, {Column: "name"}}
	a.SetRubricCell(&models.RubricCell{Column: "score", LOAPosition: 0})
	a.RowsAllFalse = []int64{2}

	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	w.Views = []*models.View{{
		Name:    "scores",
		Columns: []string{"email", "score"},
		Formula: testutil.LeafFormula("score", "integer", "is_not_null", nil),
	}}

	p := setup(t, w)

	p.ColumnDeleted(context.Background(), w, "score")

	// The filter and the referencing condition are gone; the other survives.
	assert.Nil(t, a.Filter)
	require.Len(t, a.Conditions, 1)
	assert.Equal(t, "active", a.Conditions[0].Name)

	require.Len(t, a.Triples, 1)
	assert.Equal(t, "name", a.Triples[0].Column)
	assert.Empty(t, a.RubricCells)
	assert.Nil(t, a.RowsAllFalse)

	view := w.Views[0]
	assert.Equal(t, []string{"email"}, view.Columns)
	assert.Nil(t, view.Formula)
}
