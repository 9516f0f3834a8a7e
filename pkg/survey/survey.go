// Package survey renders a survey action as a typed form for one respondent
// and writes submitted answers back into the row.
package survey

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ontask/engine/pkg/formula"
	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/propagation"
	"github.com/ontask/engine/pkg/table"
)

// Field is one input of the rendered form.
type Field struct {
	Column         *models.Column
	Value          any
	ReadOnly       bool
	ChangesAllowed bool
}

// Controller renders and accepts survey forms.
type Controller struct {
	table      *table.Table
	propagator *propagation.Propagator
	logger     *slog.Logger
}

// NewController creates a survey controller over the workflow's data table.
func NewController(t *table.Table, p *propagation.Propagator, logger *slog.Logger) *Controller {
	return &Controller{table: t, propagator: p, logger: logger}
}

// Render builds the form for the respondent identified by the key column
// value. Inactive columns and triples whose condition is false for the row
// are omitted; key columns are read-only. With shuffle set, field order is
// permuted deterministically from the respondent identity.
//
// A missing row is reported as a missing resource; the caller distinguishes
// the instructor and learner presentations.
func (c *Controller) Render(ctx context.Context, w *models.Workflow, a *models.Action, keyColumn string, keyValue any, now time.Time) ([]Field, error) {
	row, err := c.table.GetRow(ctx, keyColumn, keyValue, w.Columns)
	if err != nil {
		return nil, models.NewActionError("RenderSurvey", w.ID, a.Name, err)
	}

	if row == nil {
		return nil, models.NewActionError("RenderSurvey", w.ID, a.Name,
			fmt.Errorf("%w: no row with %s = %v", models.ErrMissingResource, keyColumn, keyValue))
	}

	fields := make([]Field, 0, len(a.Triples))

	for _, triple := range a.Triples {
		col := w.ColumnByName(triple.Column)
		if col == nil {
			return nil, models.NewActionError("RenderSurvey", w.ID, a.Name,
				fmt.Errorf("%w: column %q", models.ErrMissingResource, triple.Column))
		}

		if !col.IsActive(now) {
			continue
		}

		if triple.Condition != "" {
			cond := a.ConditionByName(triple.Condition)
			if cond == nil {
				return nil, models.NewActionError("RenderSurvey", w.ID, a.Name,
					fmt.Errorf("%w: condition %q", models.ErrMissingResource, triple.Condition))
			}

			visible, err := formula.EvalTruth(cond.Formula, row)
			if err != nil {
				return nil, models.NewActionError("RenderSurvey", w.ID, a.Name, err)
			}

			if !visible {
				continue
			}
		}

		fields = append(fields, Field{
			Column:         col,
			Value:          row[col.Name],
			ReadOnly:       col.IsKey,
			ChangesAllowed: triple.ChangesAllowed,
		})
	}

	if a.Shuffle {
		shuffleFields(fields, keyValue)
	}

	return fields, nil
}

// shuffleFields permutes the form deterministically, seeded from the
// respondent identity so each respondent always sees the same order.
func shuffleFields(fields []Field, keyValue any) {
	seed := fnv.New64a()
	fmt.Fprintf(seed, "%v", keyValue)

	//nolint:gosec // deterministic presentation order, not cryptography
	rng := rand.New(rand.NewSource(int64(seed.Sum64())))
	rng.Shuffle(len(fields), func(i, j int) {
		fields[i], fields[j] = fields[j], fields[i]
	})
}

// Submit validates the answers against the form's columns and writes them
// back to the respondent's row. Key columns are read-only; categorical
// answers must be members of the column's category set. Stored values
// changed, so the workflow's caches are invalidated.
func (c *Controller) Submit(ctx context.Context, w *models.Workflow, a *models.Action, keyColumn string, keyValue any, answers map[string]any) error {
	changes := make(map[string]any, len(answers))

	for name, value := range answers {
		col := w.ColumnByName(name)
		if col == nil {
			return models.NewActionError("SubmitSurvey", w.ID, a.Name,
				fmt.Errorf("%w: column %q", models.ErrMissingResource, name))
		}

		if col.IsKey {
			return models.NewActionError("SubmitSurvey", w.ID, a.Name,
				fmt.Errorf("%w: key column %q is read-only", models.ErrInvalidValue, name))
		}

		coerced, err := table.CoerceValue(col.DataType, value)
		if err != nil {
			return models.NewActionError("SubmitSurvey", w.ID, a.Name, err)
		}

		if coerced != nil && col.HasCategories() && !col.InCategories(coerced) {
			return models.NewActionError("SubmitSurvey", w.ID, a.Name,
				fmt.Errorf("%w: %v is not a category of %q", models.ErrInvalidValue, coerced, name))
		}

		changes[name] = coerced
	}

	if len(changes) == 0 {
		return nil
	}

	err := c.table.UpdateRow(ctx, keyColumn, keyValue, changes, w.Columns)
	if err != nil {
		return models.NewActionError("SubmitSurvey", w.ID, a.Name, err)
	}

	c.propagator.DataChanged(ctx, w)

	return nil
}
