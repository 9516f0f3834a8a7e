package action

import (
	"context"

	"github.com/ontask/engine/pkg/formula"
	"github.com/ontask/engine/pkg/models"
)

// RowsAllFalse returns the cached set of row indices where every non-filter
// condition of the action evaluates to false, computing and storing it when
// the cache is empty. The computation is a single query: the conjunction of
// the negated condition formulas, under the action's filter.
//
// An action without conditions yields the empty set; the warning the set
// feeds is only meaningful when conditions exist.
func (e *Evaluator) RowsAllFalse(ctx context.Context, w *models.Workflow, a *models.Action) ([]int64, error) {
	if a.RowsAllFalse != nil {
		return a.RowsAllFalse, nil
	}

	if len(a.Conditions) == 0 {
		a.RowsAllFalse = []int64{}

		return a.RowsAllFalse, nil
	}

	indexes, err := e.table.MatchingIndexes(ctx, AllFalseFormula(a))
	if err != nil {
		return nil, models.NewActionError("RowsAllFalse", w.ID, a.Name, err)
	}

	a.RowsAllFalse = indexes

	return indexes, nil
}

// AllFalseFormula builds the formula selecting the rows of the all-false
// set: filter AND NOT c1 AND ... AND NOT cn.
func AllFalseFormula(a *models.Action) *formula.Node {
	rules := make([]*formula.Node, 0, len(a.Conditions)+1)

	if a.Filter != nil && a.Filter.Formula != nil {
		rules = append(rules, a.Filter.Formula)
	}

	for _, cond := range a.Conditions {
		rules = append(rules, &formula.Node{
			Condition: formula.CombinatorAnd,
			Not:       true,
			Rules:     []*formula.Node{cond.Formula},
		})
	}

	return &formula.Node{Condition: formula.CombinatorAnd, Rules: rules}
}
