package workflow

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontask/engine/pkg/bundle"
	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/persistence/sqlite"
	"github.com/ontask/engine/pkg/table"
	"github.com/ontask/engine/pkg/testutil"
)

const testOwner = "instructor@example.org"

func newManager(t *testing.T) *Manager {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.NewPersistence(ctx, logger, filepath.Join(t.TempDir(), "ontask.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close(ctx) })

	return NewManager(store, logger)
}

// makeBundle exports a small self-contained workflow for import tests.
func makeBundle(t *testing.T, overrides ...func(*models.Workflow)) *bytes.Buffer {
	t.Helper()

	a := testutil.CreateTestAction(
		testutil.WithCondition("passed", testutil.LeafFormula("score", "integer", "greater_or_equal", float64(50))),
	)
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	w.Name = "Bundled Course"

	for _, override := range overrides {
		override(w)
	}

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	// Every pooled connection to :memory: would see its own database.
	db.SetMaxOpenConns(1)

	defer func() { _ = db.Close() }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tbl := table.New(db, table.SQLite{}, w.ID, logger)

	ctx := context.Background()
	require.NoError(t, tbl.Store(ctx, testutil.CreateTestFrame(), w.Columns))

	var buf bytes.Buffer

	require.NoError(t, bundle.Export(ctx, w, tbl, &buf))

	return &buf
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	w, err := m.Import(ctx, testOwner, "", false, makeBundle(t))
	require.NoError(t, err)

	assert.Equal(t, testOwner, w.Owner)
	assert.Equal(t, "Bundled Course", w.Name)
	assert.Equal(t, 3, w.NRows)
	assert.Equal(t, 4, w.NCols)

	saved, err := m.persistence.WorkflowByName(ctx, testOwner, "Bundled Course")
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.Len(t, saved.Actions, 1)

	rows, err := m.Table(w).NumRows(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
}

func TestImport_RenamesOnRequest(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	w, err := m.Import(ctx, testOwner, "Spring Edition", false, makeBundle(t))
	require.NoError(t, err)
	assert.Equal(t, "Spring Edition", w.Name)
}

func TestImport_NameCollision(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	_, err := m.Import(ctx, testOwner, "", false, makeBundle(t))
	require.NoError(t, err)

	_, err = m.Import(ctx, testOwner, "", false, makeBundle(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNameCollision)

	// Another owner may use the same name.
	_, err = m.Import(ctx, "other@example.org", "", false, makeBundle(t))
	require.NoError(t, err)
}

func TestImport_ReplaceKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	first, err := m.Import(ctx, testOwner, "", false, makeBundle(t))
	require.NoError(t, err)

	second, err := m.Import(ctx, testOwner, "", true, makeBundle(t))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	rows, err := m.Table(second).NumRows(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	err := m.Create(ctx, &models.Workflow{Name: "ab"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidValue)

	require.NoError(t, m.Create(ctx, testutil.CreateTestWorkflow()))
}

func TestExportAndReimport(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	w, err := m.Import(ctx, testOwner, "", false, makeBundle(t))
	require.NoError(t, err)

	var buf bytes.Buffer

	require.NoError(t, m.Export(ctx, w, &buf))

	again, err := m.Import(ctx, testOwner, "Copy of Bundled Course", false, &buf)
	require.NoError(t, err)
	assert.Equal(t, w.ColumnNames(), again.ColumnNames())
	assert.Equal(t, w.NRows, again.NRows)
}

func TestExportView(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	w, err := m.Import(ctx, testOwner, "", false, makeBundle(t, func(w *models.Workflow) {
		w.Views = []*models.View{{Name: "scores", Columns: []string{"email", "score"}}}
	}))
	require.NoError(t, err)

	var buf bytes.Buffer

	require.NoError(t, m.ExportView(ctx, w, "scores", &buf))

	imported, _, err := bundle.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "score"}, imported.ColumnNames())

	err = m.ExportView(ctx, w, "no such view", &buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMissingResource)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	w, err := m.Import(ctx, testOwner, "", false, makeBundle(t))
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, w))

	gone, err := m.persistence.WorkflowByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	exists, err := m.Table(w).Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReplaceData(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	w, err := m.Import(ctx, testOwner, "", false, makeBundle(t))
	require.NoError(t, err)

	a := w.Actions[0]
	a.Conditions[0].SelectedCount = 2

	frame := testutil.CreateTestFrame()
	frame.Rows = frame.Rows[:2]

	require.NoError(t, m.ReplaceData(ctx, w, frame))

	assert.Equal(t, 2, w.NRows)
	assert.Equal(t, models.CountUnknown, a.Conditions[0].SelectedCount)

	saved, err := m.persistence.WorkflowByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.NRows)
	assert.Equal(t, models.CountUnknown, saved.Actions[0].Conditions[0].SelectedCount)
}

func TestAddColumn(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	w, err := m.Import(ctx, testOwner, "", false, makeBundle(t))
	require.NoError(t, err)

	col := &models.Column{Name: "grade", DataType: models.TypeString}
	require.NoError(t, m.AddColumn(ctx, w, col, "pending"))

	assert.Equal(t, 5, w.NCols)

	row, err := m.Table(w).GetRow(ctx, "email", "alice@example.org", w.Columns)
	require.NoError(t, err)
	assert.Equal(t, "pending", row["grade"])

	saved, err := m.persistence.WorkflowByID(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.ColumnByName("grade"))
}

func TestDeleteColumn(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	w, err := m.Import(ctx, testOwner, "", false, makeBundle(t))
	require.NoError(t, err)

	// The condition references score and cascades away with it.
	require.NoError(t, m.DeleteColumn(ctx, w, "score"))

	assert.Nil(t, w.ColumnByName("score"))
	assert.Equal(t, 3, w.NCols)
	assert.Empty(t, w.Actions[0].Conditions)

	err = m.DeleteColumn(ctx, w, "score")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMissingResource)
}

func TestRenameColumn(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	w, err := m.Import(ctx, testOwner, "", false, makeBundle(t))
	require.NoError(t, err)

	require.NoError(t, m.RenameColumn(ctx, w, "score", "final score"))

	saved, err := m.persistence.WorkflowByID(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.ColumnByName("final score"))
	assert.Nil(t, saved.ColumnByName("score"))

	unique, err := m.Table(w).IsUnique(ctx, "final score")
	require.NoError(t, err)
	assert.True(t, unique)
}

func TestLockUnlockMirrorsSessionKey(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	w, err := m.Import(ctx, testOwner, "", false, makeBundle(t))
	require.NoError(t, err)

	require.NoError(t, m.Lock(ctx, w, "session-a"))
	assert.Equal(t, "session-a", w.SessionKey)

	err = m.Lock(ctx, w, "session-b")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrLockHeld)
	assert.Equal(t, "session-a", w.SessionKey)

	require.NoError(t, m.Unlock(ctx, w, "session-a"))
	assert.Equal(t, "", w.SessionKey)
}
