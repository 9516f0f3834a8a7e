package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/persistence/sqlstore"
	"github.com/ontask/engine/pkg/testutil"
)

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := NewPersistence(ctx, logger, filepath.Join(t.TempDir(), "ontask.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close(ctx) })

	return store
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	a := testutil.CreateTestAction(
		testutil.WithFilter(testutil.LeafFormula("score", "integer", "greater_or_equal", float64(50))),
		testutil.WithCondition("passed", testutil.LeafFormula("score", "integer", "greater_or_equal", float64(50))),
	)
	a.Triples = []*models.ColumnCondition{{Column: "score", Condition: "passed", ChangesAllowed: true}}
	a.SetRubricCell(&models.RubricCell{Column: "score", LOAPosition: 1, FeedbackText: "good"})
	a.RowsAllFalse = []int64{2, 3}

	w := testutil.CreateTestWorkflow(testutil.WithAction(a))
	w.ID = ""
	w.NRows = 3
	w.Views = []*models.View{{
		Name:    "scores",
		Columns: []string{"email", "score"},
		Formula: testutil.LeafFormula("score", "integer", "is_not_null", nil),
	}}

	require.NoError(t, store.SaveWorkflow(ctx, w))
	assert.NotEmpty(t, w.ID)
	assert.False(t, w.CreatedAt.IsZero())

	loaded, err := store.WorkflowByID(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, w.Name, loaded.Name)
	assert.Equal(t, w.Owner, loaded.Owner)
	assert.Equal(t, w.Attributes, loaded.Attributes)
	assert.Equal(t, 3, loaded.NRows)
	assert.Equal(t, 4, loaded.NCols)
	assert.Equal(t, w.ColumnNames(), loaded.ColumnNames())

	require.Len(t, loaded.Actions, 1)
	got := loaded.Actions[0]
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.TextContent, got.TextContent)
	require.NotNil(t, got.Filter)
	assert.Equal(t, models.CountUnknown, got.Filter.SelectedCount)
	require.Len(t, got.Conditions, 1)
	assert.Equal(t, "passed", got.Conditions[0].Name)
	require.Len(t, got.Triples, 1)
	assert.True(t, got.Triples[0].ChangesAllowed)
	require.Len(t, got.RubricCells, 1)
	assert.Equal(t, "good", got.RubricCells[0].FeedbackText)
	assert.Equal(t, []int64{2, 3}, got.RowsAllFalse)

	require.Len(t, loaded.Views, 1)
	assert.Equal(t, []string{"email", "score"}, loaded.Views[0].Columns)
	require.NotNil(t, loaded.Views[0].Formula)
}

func TestNullableFieldsStayNull(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	a := testutil.CreateTestAction()
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))

	require.NoError(t, store.SaveWorkflow(ctx, w))

	loaded, err := store.WorkflowByID(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Actions, 1)

	// Unset filter and uncomputed all-false set come back as nil, not as
	// empty values.
	assert.Nil(t, loaded.Actions[0].Filter)
	assert.Nil(t, loaded.Actions[0].RowsAllFalse)
	assert.Nil(t, loaded.Actions[0].ActiveFrom)
}

func TestWorkflowsByOwner(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	first := testutil.CreateTestWorkflow()
	first.Name = "Course A"
	require.NoError(t, store.SaveWorkflow(ctx, first))

	second := testutil.CreateTestWorkflow()
	second.Name = "Course B"
	second.Owner = "other@example.org"
	require.NoError(t, store.SaveWorkflow(ctx, second))

	mine, err := store.Workflows(ctx, "instructor@example.org")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Course A", mine[0].Name)

	// The empty owner matches everything, for administrative audits.
	all, err := store.Workflows(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestWorkflowByName(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	w := testutil.CreateTestWorkflow()
	require.NoError(t, store.SaveWorkflow(ctx, w))

	found, err := store.WorkflowByName(ctx, w.Owner, w.Name)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, w.ID, found.ID)

	missing, err := store.WorkflowByName(ctx, w.Owner, "No Such Course")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNameCollision(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	w := testutil.CreateTestWorkflow()
	require.NoError(t, store.SaveWorkflow(ctx, w))

	// Same owner, same name, different workflow.
	dup := testutil.CreateTestWorkflow()
	err := store.SaveWorkflow(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNameCollision)

	// Updating the same workflow is fine.
	w.Description = "updated"
	require.NoError(t, store.SaveWorkflow(ctx, w))

	// The same name under another owner is fine.
	other := testutil.CreateTestWorkflow()
	other.Owner = "other@example.org"
	require.NoError(t, store.SaveWorkflow(ctx, other))
}

func TestDeleteIsSoft(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	w := testutil.CreateTestWorkflow()
	require.NoError(t, store.SaveWorkflow(ctx, w))
	require.NoError(t, store.DeleteWorkflow(ctx, w.ID))

	gone, err := store.WorkflowByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	workflows, err := store.Workflows(ctx, w.Owner)
	require.NoError(t, err)
	assert.Empty(t, workflows)

	// Deleting again, or deleting the unknown, is a no-op.
	require.NoError(t, store.DeleteWorkflow(ctx, w.ID))
	require.NoError(t, store.DeleteWorkflow(ctx, "no-such-id"))

	// The name is free for reuse after deletion.
	reuse := testutil.CreateTestWorkflow()
	require.NoError(t, store.SaveWorkflow(ctx, reuse))
}

func TestLockUnlock(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	w := testutil.CreateTestWorkflow()
	require.NoError(t, store.SaveWorkflow(ctx, w))

	require.NoError(t, store.LockWorkflow(ctx, w.ID, "session-a"))

	// Re-locking with the same session is a no-op.
	require.NoError(t, store.LockWorkflow(ctx, w.ID, "session-a"))

	err := store.LockWorkflow(ctx, w.ID, "session-b")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrLockHeld)
	assert.True(t, models.IsLockHeld(err))

	err = store.UnlockWorkflow(ctx, w.ID, "session-b")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrLockHeld)

	require.NoError(t, store.UnlockWorkflow(ctx, w.ID, "session-a"))

	// Unlocking an unlocked workflow succeeds.
	require.NoError(t, store.UnlockWorkflow(ctx, w.ID, "session-a"))

	// The lock is free again.
	require.NoError(t, store.LockWorkflow(ctx, w.ID, "session-b"))
}

func TestLockUnknownWorkflow(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	err := store.LockWorkflow(ctx, "no-such-id", "session-a")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrWorkflowNotFound)
	assert.True(t, models.IsWorkflowNotFound(err))

	err = store.UnlockWorkflow(ctx, "no-such-id", "session-a")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrWorkflowNotFound)
}

func TestHealthCheck(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.HealthCheck(context.Background()))
	assert.Equal(t, "sqlite", store.Dialect().Name())
}
