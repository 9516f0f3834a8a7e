package workflow

import (
	"context"
	"fmt"

	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/template"
)

// Issue is one invariant violation found by SanityCheck.
type Issue struct {
	WorkflowID   string
	WorkflowName string
	Message      string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s (%s): %s", i.WorkflowName, i.WorkflowID, i.Message)
}

// SanityCheck audits one workflow against the structural invariants: shape
// counts, position sequence, key column presence and uniqueness, category
// membership of stored values, name disjointness, formula validity, template
// translatability, and rubric cell positions. It returns the violations found;
// an error is returned only when the audit itself cannot run.
func (m *Manager) SanityCheck(ctx context.Context, w *models.Workflow) ([]Issue, error) {
	var issues []Issue

	report := func(format string, args ...any) {
		issues = append(issues, Issue{
			WorkflowID:   w.ID,
			WorkflowName: w.Name,
			Message:      fmt.Sprintf(format, args...),
		})
	}

	if err := m.validate.Struct(w); err != nil {
		report("struct validation: %v", err)
	}

	issues = append(issues, m.checkColumns(w)...)
	issues = append(issues, m.checkActions(w)...)
	issues = append(issues, m.checkViews(w)...)

	tableIssues, err := m.checkTable(ctx, w)
	if err != nil {
		return issues, err
	}

	return append(issues, tableIssues...), nil
}

// SanityCheckAll audits every workflow of the given owner (all workflows when
// owner is empty).
func (m *Manager) SanityCheckAll(ctx context.Context, owner string) ([]Issue, error) {
	workflows, err := m.persistence.Workflows(ctx, owner)
	if err != nil {
		return nil, err
	}

	var issues []Issue

	for _, w := range workflows {
		found, err := m.SanityCheck(ctx, w)
		if err != nil {
			return issues, err
		}

		issues = append(issues, found...)
	}

	return issues, nil
}

func (m *Manager) checkColumns(w *models.Workflow) []Issue {
	var issues []Issue

	report := func(format string, args ...any) {
		issues = append(issues, Issue{
			WorkflowID:   w.ID,
			WorkflowName: w.Name,
			Message:      fmt.Sprintf(format, args...),
		})
	}

	if w.NCols != len(w.Columns) {
		report("ncols is %d but %d columns are declared", w.NCols, len(w.Columns))
	}

	seen := make(map[string]bool, len(w.Columns))
	hasKey := false

	for i, col := range w.Columns {
		if err := col.Validate(); err != nil {
			report("column %q: %v", col.Name, err)
		}

		if seen[col.Name] {
			report("duplicate column name %q", col.Name)
		}

		seen[col.Name] = true

		if col.Position != i+1 {
			report("column %q has position %d, expected %d", col.Name, col.Position, i+1)
		}

		if col.IsKey {
			hasKey = true
		}
	}

	if w.NRows > 0 && !hasKey {
		report("non-empty table has no key column")
	}

	return issues
}

func (m *Manager) checkActions(w *models.Workflow) []Issue {
	var issues []Issue

	report := func(format string, args ...any) {
		issues = append(issues, Issue{
			WorkflowID:   w.ID,
			WorkflowName: w.Name,
			Message:      fmt.Sprintf(format, args...),
		})
	}

	schema := w.Schema()

	for _, a := range w.Actions {
		if !models.ValidActionType(a.Type) {
			report("action %q has unknown type %q", a.Name, a.Type)
		}

		if a.Filter != nil && a.Filter.Formula != nil {
			if err := a.Filter.Formula.Validate(schema); err != nil {
				report("action %q filter: %v", a.Name, err)
			}
		}

		for _, cond := range a.Conditions {
			if err := w.CheckConditionName(cond.Name); err != nil {
				report("action %q: %v", a.Name, err)
			}

			if cond.Formula == nil {
				report("action %q condition %q has no formula", a.Name, cond.Name)

				continue
			}

			if err := cond.Formula.Validate(schema); err != nil {
				report("action %q condition %q: %v", a.Name, cond.Name, err)
			}
		}

		for _, triple := range a.Triples {
			if w.ColumnByName(triple.Column) == nil {
				report("action %q references unknown column %q", a.Name, triple.Column)
			}

			if triple.Condition != "" && a.ConditionByName(triple.Condition) == nil {
				report("action %q references unknown condition %q", a.Name, triple.Condition)
			}
		}

		issues = append(issues, m.checkRubric(w, a)...)

		if a.TextContent != "" {
			if _, err := template.Translate(a.TextContent, a.Type.HasHTMLText()); err != nil {
				report("action %q template: %v", a.Name, err)
			}
		}
	}

	return issues
}

func (m *Manager) checkRubric(w *models.Workflow, a *models.Action) []Issue {
	var issues []Issue

	report := func(format string, args ...any) {
		issues = append(issues, Issue{
			WorkflowID:   w.ID,
			WorkflowName: w.Name,
			Message:      fmt.Sprintf(format, args...),
		})
	}

	type cellKey struct {
		column string
		loa    int
	}

	seen := make(map[cellKey]bool, len(a.RubricCells))

	for _, cell := range a.RubricCells {
		key := cellKey{cell.Column, cell.LOAPosition}
		if seen[key] {
			report("action %q has duplicate rubric cell (%s, %d)", a.Name, cell.Column, cell.LOAPosition)
		}

		seen[key] = true

		col := w.ColumnByName(cell.Column)
		if col == nil {
			report("action %q rubric cell references unknown column %q", a.Name, cell.Column)

			continue
		}

		if !col.HasCategories() {
			report("action %q rubric criterion %q has no categories", a.Name, cell.Column)

			continue
		}

		if cell.LOAPosition >= len(col.Categories) {
			report("action %q rubric cell (%s, %d) is beyond the %d categories",
				a.Name, cell.Column, cell.LOAPosition, len(col.Categories))
		}
	}

	return issues
}

func (m *Manager) checkViews(w *models.Workflow) []Issue {
	var issues []Issue

	report := func(format string, args ...any) {
		issues = append(issues, Issue{
			WorkflowID:   w.ID,
			WorkflowName: w.Name,
			Message:      fmt.Sprintf(format, args...),
		})
	}

	schema := w.Schema()

	for _, view := range w.Views {
		for _, col := range view.Columns {
			if w.ColumnByName(col) == nil {
				report("view %q references unknown column %q", view.Name, col)
			}
		}

		if view.Formula != nil {
			if err := view.Formula.Validate(schema); err != nil {
				report("view %q formula: %v", view.Name, err)
			}
		}
	}

	return issues
}

// checkTable audits the invariants that need the data table: existence, row
// count agreement, key uniqueness, and category membership of stored values.
func (m *Manager) checkTable(ctx context.Context, w *models.Workflow) ([]Issue, error) {
	var issues []Issue

	report := func(format string, args ...any) {
		issues = append(issues, Issue{
			WorkflowID:   w.ID,
			WorkflowName: w.Name,
			Message:      fmt.Sprintf(format, args...),
		})
	}

	t := m.Table(w)

	exists, err := t.Exists(ctx)
	if err != nil {
		return issues, err
	}

	if !exists {
		if w.NRows > 0 {
			report("data table is missing but nrows is %d", w.NRows)
		}

		return issues, nil
	}

	nrows, err := t.NumRows(ctx, nil)
	if err != nil {
		return issues, err
	}

	if nrows != w.NRows {
		report("nrows is %d but the table has %d rows", w.NRows, nrows)
	}

	for _, col := range w.Columns {
		if col.IsKey {
			unique, err := t.IsUnique(ctx, col.Name)
			if err != nil {
				return issues, err
			}

			if !unique {
				report("key column %q is not unique and non-null", col.Name)
			}
		}

		if !col.HasCategories() {
			continue
		}

		values, err := t.DistinctValues(ctx, col)
		if err != nil {
			return issues, err
		}

		for _, value := range values {
			if value == nil {
				continue
			}

			if !col.InCategories(value) {
				report("column %q holds %v, outside its categories", col.Name, value)
			}
		}
	}

	return issues, nil
}
