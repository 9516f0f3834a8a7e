package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontask/engine/pkg/formula"
	"github.com/ontask/engine/pkg/testutil"
)

func TestRowsAllFalse(t *testing.T) {
	a := testutil.CreateTestAction(
		testutil.WithCondition("high", testutil.LeafFormula("score", "integer", "greater_or_equal", float64(70))),
		testutil.WithCondition("active", testutil.LeafFormula("enrolled", "boolean", "equal", true)),
	)
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))

	evaluator := newEvaluator(t, w)

	// Only Carol (67, not enrolled) fails both conditions.
	indexes, err := evaluator.RowsAllFalse(context.Background(), w, a)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, indexes)

	// The result is cached on the action.
	assert.Equal(t, []int64{3}, a.RowsAllFalse)

	cached, err := evaluator.RowsAllFalse(context.Background(), w, a)
	require.NoError(t, err)
	assert.Equal(t, indexes, cached)
}

func TestRowsAllFalse_UnderFilter(t *testing.T) {
	a := testutil.CreateTestAction(
		testutil.WithFilter(testutil.LeafFormula("score", "integer", "less", float64(70))),
		testutil.WithCondition("active", testutil.LeafFormula("enrolled", "boolean", "equal", true)),
	)
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))

	// Filter keeps Bob (45) and Carol (67); only Carol fails the condition.
	// Indexes refer to positions in the full table's natural order.
	indexes, err := newEvaluator(t, w).RowsAllFalse(context.Background(), w, a)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, indexes)
}

func TestRowsAllFalse_NoConditions(t *testing.T) {
	a := testutil.CreateTestAction()
	w := testutil.CreateTestWorkflow(testutil.WithAction(a))

	indexes, err := newEvaluator(t, w).RowsAllFalse(context.Background(), w, a)
	require.NoError(t, err)
	assert.Empty(t, indexes)
	assert.NotNil(t, a.RowsAllFalse)
}

func TestAllFalseFormula(t *testing.T) {
	filter := testutil.LeafFormula("score", "integer", "less", float64(70))
	a := testutil.CreateTestAction(
		testutil.WithFilter(filter),
		testutil.WithCondition("active", testutil.LeafFormula("enrolled", "boolean", "equal", true)),
	)

	node := AllFalseFormula(a)
	require.NotNil(t, node)
	assert.Equal(t, formula.CombinatorAnd, node.Condition)
	require.Len(t, node.Rules, 2)
	assert.Same(t, filter, node.Rules[0])
	assert.True(t, node.Rules[1].Not)
}
