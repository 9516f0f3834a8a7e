// Package propagation keeps derived state consistent under user edits:
// cached counts are recomputed or invalidated, textual references are
// rewritten when names change, and deletions cascade. Every routine is
// idempotent and may be re-run safely.
package propagation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ontask/engine/pkg/formula"
	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/table"
	"github.com/ontask/engine/pkg/template"
)

// Propagator applies edit consequences across a workflow.
type Propagator struct {
	table  *table.Table
	logger *slog.Logger
}

// New creates a propagator over the workflow's data table.
func New(t *table.Table, logger *slog.Logger) *Propagator {
	return &Propagator{table: t, logger: logger}
}

// RenameColumn renames a column in the data table and rewrites every
// reference: formulas of filters and conditions, template expansions, and
// attribute keys and values.
func (p *Propagator) RenameColumn(ctx context.Context, w *models.Workflow, oldName, newName string) error {
	col := w.ColumnByName(oldName)
	if col == nil {
		return models.NewWorkflowError("RenameColumn", w.ID,
			fmt.Errorf("%w: column %q", models.ErrMissingResource, oldName))
	}

	if err := p.checkColumnName(w, newName); err != nil {
		return models.NewWorkflowError("RenameColumn", w.ID, err)
	}

	if err := p.table.RenameColumn(ctx, oldName, newName); err != nil {
		return models.NewWorkflowError("RenameColumn", w.ID, err)
	}

	col.Name = newName

	for _, a := range w.Actions {
		if a.Filter != nil {
			formula.RenameVariable(a.Filter.Formula, oldName, newName)
		}

		for _, cond := range a.Conditions {
			formula.RenameVariable(cond.Formula, oldName, newName)
		}

		for _, triple := range a.Triples {
			if triple.Column == oldName {
				triple.Column = newName
			}
		}

		for _, cell := range a.RubricCells {
			if cell.Column == oldName {
				cell.Column = newName
			}
		}

		a.TextContent = template.RenameVariableRefs(a.TextContent, oldName, newName)
	}

	for _, view := range w.Views {
		formula.RenameVariable(view.Formula, oldName, newName)

		for i, name := range view.Columns {
			if name == oldName {
				view.Columns[i] = newName
			}
		}
	}

	p.renameAttributeRefs(w, oldName, newName)
	p.logger.InfoContext(ctx, "column renamed", "workflow_id", w.ID, "old", oldName, "new", newName)

	return nil
}

func (p *Propagator) checkColumnName(w *models.Workflow, name string) error {
	if len(name) > models.MaxColumnNameLength {
		return fmt.Errorf("%w: column name %q exceeds %d characters",
			models.ErrInvalidValue, name, models.MaxColumnNameLength)
	}

	if w.ColumnByName(name) != nil {
		return fmt.Errorf("%w: column %q already exists", models.ErrNameCollision, name)
	}

	for _, a := range w.Actions {
		if a.ConditionByName(name) != nil {
			return fmt.Errorf("%w: column name %q matches a condition of action %q",
				models.ErrNameCollision, name, a.Name)
		}
	}

	if _, ok := w.Attributes[name]; ok {
		return fmt.Errorf("%w: column name %q matches an attribute", models.ErrNameCollision, name)
	}

	return nil
}

func (p *Propagator) renameAttributeRefs(w *models.Workflow, oldName, newName string) {
	if value, ok := w.Attributes[oldName]; ok {
		delete(w.Attributes, oldName)
		w.Attributes[newName] = value
	}

	for key, value := range w.Attributes {
		w.Attributes[key] = template.RenameVariableRefs(value, oldName, newName)
	}
}

// FilterEdited recomputes the filter's selected count and, because every
// condition's truth is implicitly conjoined with the filter, the count of
// every condition of the action. The all-false cache is cleared.
func (p *Propagator) FilterEdited(ctx context.Context, w *models.Workflow, a *models.Action) error {
	if a.Filter != nil {
		if err := a.Filter.Formula.Validate(w.Schema()); err != nil {
			return models.NewActionError("FilterEdited", w.ID, a.Name, err)
		}

		count, err := p.table.NumRows(ctx, a.Filter.Formula)
		if err != nil {
			return models.NewActionError("FilterEdited", w.ID, a.Name, err)
		}

		a.Filter.SelectedCount = count
	}

	for _, cond := range a.Conditions {
		count, err := p.conditionCount(ctx, a, cond)
		if err != nil {
			return models.NewActionError("FilterEdited", w.ID, a.Name, err)
		}

		cond.SelectedCount = count
	}

	a.RowsAllFalse = nil

	return nil
}

// ConditionEdited recomputes the edited condition's selected count and clears
// the all-false cache.
func (p *Propagator) ConditionEdited(ctx context.Context, w *models.Workflow, a *models.Action, name string) error {
	cond := a.ConditionByName(name)
	if cond == nil {
		return models.NewActionError("ConditionEdited", w.ID, a.Name,
			fmt.Errorf("%w: condition %q", models.ErrMissingResource, name))
	}

	if err := cond.Formula.Validate(w.Schema()); err != nil {
		return models.NewActionError("ConditionEdited", w.ID, a.Name, err)
	}

	count, err := p.conditionCount(ctx, a, cond)
	if err != nil {
		return models.NewActionError("ConditionEdited", w.ID, a.Name, err)
	}

	cond.SelectedCount = count
	a.RowsAllFalse = nil

	return nil
}

// conditionCount counts the rows where the condition holds under the
// action's filter.
func (p *Propagator) conditionCount(ctx context.Context, a *models.Action, cond *models.Condition) (int, error) {
	rules := make([]*formula.Node, 0, 2)

	if a.Filter != nil && a.Filter.Formula != nil {
		rules = append(rules, a.Filter.Formula)
	}

	rules = append(rules, cond.Formula)

	return p.table.NumRows(ctx, &formula.Node{Condition: formula.CombinatorAnd, Rules: rules})
}

// RenameCondition renames a condition and rewrites the guards referencing it
// in the owning action's template. Other actions are unaffected: conditions
// are scoped to one action.
func (p *Propagator) RenameCondition(w *models.Workflow, a *models.Action, oldName, newName string) error {
	cond := a.ConditionByName(oldName)
	if cond == nil {
		return models.NewActionError("RenameCondition", w.ID, a.Name,
			fmt.Errorf("%w: condition %q", models.ErrMissingResource, oldName))
	}

	if a.ConditionByName(newName) != nil {
		return models.NewActionError("RenameCondition", w.ID, a.Name,
			fmt.Errorf("%w: condition %q already exists", models.ErrNameCollision, newName))
	}

	if err := w.CheckConditionName(newName); err != nil {
		return models.NewActionError("RenameCondition", w.ID, a.Name, err)
	}

	cond.Name = newName
	a.SortConditions()
	a.TextContent = template.RenameVariableRefs(a.TextContent, oldName, newName)

	return nil
}

// DeleteCondition removes a condition. Deletion is refused while the action
// template still references the name, so no dangling guard is ever rendered;
// the caller edits the template first.
func (p *Propagator) DeleteCondition(w *models.Workflow, a *models.Action, name string) error {
	if a.ConditionByName(name) == nil {
		return models.NewActionError("DeleteCondition", w.ID, a.Name,
			fmt.Errorf("%w: condition %q", models.ErrMissingResource, name))
	}

	if template.ReferencesName(a.TextContent, name) {
		return models.NewActionError("DeleteCondition", w.ID, a.Name,
			fmt.Errorf("%w: %q", models.ErrConditionReferenced, name))
	}

	return a.RemoveCondition(name)
}

// DataChanged invalidates every cached count and all-false set of the
// workflow after a row edit, row insert, or merge upload. Counts are
// recomputed lazily on the next read.
func (p *Propagator) DataChanged(ctx context.Context, w *models.Workflow) {
	for _, a := range w.Actions {
		a.InvalidateCounts()
	}

	p.logger.DebugContext(ctx, "caches invalidated", "workflow_id", w.ID)
}

// ColumnDeleted cascades a column removal: filters and conditions whose
// formula references the column are dropped, as are triples and rubric cells
// bound to it; views lose the column and any referencing formula.
func (p *Propagator) ColumnDeleted(ctx context.Context, w *models.Workflow, name string) {
	for _, a := range w.Actions {
		if a.Filter != nil && formula.References(a.Filter.Formula, name) {
			a.Filter = nil
		}

		kept := a.Conditions[:0]

		for _, cond := range a.Conditions {
			if !formula.References(cond.Formula, name) {
				kept = append(kept, cond)
			}
		}

		a.Conditions = kept

		triples := a.Triples[:0]

		for _, triple := range a.Triples {
			if triple.Column != name {
				triples = append(triples, triple)
			}
		}

		a.Triples = triples

		cells := a.RubricCells[:0]

		for _, cell := range a.RubricCells {
			if cell.Column != name {
				cells = append(cells, cell)
			}
		}

		a.RubricCells = cells
		a.RowsAllFalse = nil
	}

	for _, view := range w.Views {
		if formula.References(view.Formula, name) {
			view.Formula = nil
		}

		columns := view.Columns[:0]

		for _, col := range view.Columns {
			if col != name {
				columns = append(columns, col)
			}
		}

		view.Columns = columns
	}

	p.logger.InfoContext(ctx, "column delete cascaded", "workflow_id", w.ID, "column", name)
}
