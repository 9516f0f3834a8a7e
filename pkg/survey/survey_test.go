package survey

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/propagation"
	"github.com/ontask/engine/pkg/table"
	"github.com/ontask/engine/pkg/testutil"
)

func surveyAction() *models.Action {
	return testutil.CreateTestAction(
		testutil.WithCondition("enrolled_only", testutil.LeafFormula("enrolled", "boolean", "equal", true)),
		func(a *models.Action) {
			a.Type = models.ActionSurvey
			a.Triples = []*models.ColumnCondition{
				{Column: "email"},
				{Column: "name", ChangesAllowed: true},
				{Column: "score", Condition: "enrolled_only", ChangesAllowed: true},
			}
		},
	)
}

func setup(t *testing.T, w *models.Workflow) *Controller {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	// Every pooled connection to :memory: would see its own database.
	db.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tbl := table.New(db, table.SQLite{}, w.ID, logger)

	require.NoError(t, tbl.Store(context.Background(), testutil.CreateTestFrame(), w.Columns))

	return NewController(tbl, propagation.New(tbl, logger), logger)
}

func TestRender(t *testing.T) {
	a := surveyAction()
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	c := setup(t, w)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	fields, err := c.Render(context.Background(), w, a, "email", "alice@example.org", now)
	require.NoError(t, err)
	require.Len(t, fields, 3)

	assert.Equal(t, "email", fields[0].Column.Name)
	assert.True(t, fields[0].ReadOnly)
	assert.False(t, fields[0].ChangesAllowed)
	assert.Equal(t, "alice@example.org", fields[0].Value)

	assert.Equal(t, "name", fields[1].Column.Name)
	assert.False(t, fields[1].ReadOnly)
	assert.True(t, fields[1].ChangesAllowed)

	assert.Equal(t, "score", fields[2].Column.Name)
	assert.Equal(t, int64(82), fields[2].Value)
}

func TestRender_ConditionGatesField(t *testing.T) {
	a := surveyAction()
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	c := setup(t, w)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Carol is not enrolled, so the score question is hidden.
	fields, err := c.Render(context.Background(), w, a, "email", "carol@example.org", now)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "email", fields[0].Column.Name)
	assert.Equal(t, "name", fields[1].Column.Name)
}

func TestRender_InactiveColumnOmitted(t *testing.T) {
	a := surveyAction()
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))

	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w.ColumnByName("name").ActiveTo = &past

	c := setup(t, w)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	fields, err := c.Render(context.Background(), w, a, "email", "alice@example.org", now)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "email", fields[0].Column.Name)
	assert.Equal(t, "score", fields[1].Column.Name)
}

func TestRender_MissingRespondent(t *testing.T) {
	a := surveyAction()
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	c := setup(t, w)

	_, err := c.Render(context.Background(), w, a, "email", "nobody@example.org", time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMissingResource)
}

func TestRender_ShuffleIsDeterministicPerRespondent(t *testing.T) {
	a := surveyAction()
	a.Shuffle = true

	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	c := setup(t, w)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	order := func(email string) []string {
		fields, err := c.Render(context.Background(), w, a, "email", email, now)
		require.NoError(t, err)

		names := make([]string, len(fields))
		for i, field := range fields {
			names[i] = field.Column.Name
		}

		return names
	}

	first := order("alice@example.org")
	assert.Equal(t, first, order("alice@example.org"))
	assert.ElementsMatch(t, []string{"email", "name", "score"}, first)
}

func TestSubmit(t *testing.T) {
	a := surveyAction()
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	a.Filter = &models.Filter{SelectedCount: 3}

	c := setup(t, w)

	err := c.Submit(context.Background(), w, a, "email", "bob@example.org", map[string]any{
		"name":  "Robert",
		"score": float64(55),
	})
	require.NoError(t, err)

	row, err := c.table.GetRow(context.Background(), "email", "bob@example.org", w.Columns)
	require.NoError(t, err)
	assert.Equal(t, "Robert", row["name"])
	assert.Equal(t, int64(55), row["score"])

	// Stored values changed, so cached counts were invalidated.
	assert.Equal(t, models.CountUnknown, a.Filter.SelectedCount)
	assert.Equal(t, models.CountUnknown, a.Conditions[0].SelectedCount)
}

func TestSubmit_Rejections(t *testing.T) {
	a := surveyAction()
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	c := setup(t, w)

	tests := []struct {
		name    string
		answers map[string]any
		want    error
	}{
		{"unknown column", map[string]any{"ghost": 1}, models.ErrMissingResource},
		{"key column read-only", map[string]any{"email": "new@example.org"}, models.ErrInvalidValue},
		{"type mismatch", map[string]any{"score": "high"}, models.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Submit(context.Background(), w, a, "email", "bob@example.org", tt.answers)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSubmit_CategoryMembership(t *testing.T) {
	a := surveyAction()
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	w.ColumnByName("name").Categories = []any{"Alice", "Bob", "Carol"}

	c := setup(t, w)

	err := c.Submit(context.Background(), w, a, "email", "bob@example.org", map[string]any{
		"name": "Mallory",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidValue)

	require.NoError(t, c.Submit(context.Background(), w, a, "email", "bob@example.org", map[string]any{
		"name": "Carol",
	}))
}

func TestSubmit_EmptyAnswersIsNoOp(t *testing.T) {
	a := surveyAction()
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	c := setup(t, w)

	require.NoError(t, c.Submit(context.Background(), w, a, "email", "bob@example.org", nil))
}
