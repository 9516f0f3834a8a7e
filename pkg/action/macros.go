package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/ontask/engine/pkg/formula"
	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/table"
	"github.com/ontask/engine/pkg/template"
)

// macroState backs the domain macros during one evaluation pass. Column
// value lists depend only on the filter, so they are fetched once and shared
// across rows.
type macroState struct {
	table   *table.Table
	w       *models.Workflow
	a       *models.Action
	filter  *formula.Node
	columns map[string][]any
}

func newMacroState(t *table.Table, w *models.Workflow, a *models.Action, filter *formula.Node) *macroState {
	return &macroState{
		table:   t,
		w:       w,
		a:       a,
		filter:  filter,
		columns: make(map[string][]any),
	}
}

func (m *macroState) columnValues(ctx context.Context, name string) ([]any, error) {
	if values, ok := m.columns[name]; ok {
		return values, nil
	}

	col := m.w.ColumnByName(name)
	if col == nil {
		return nil, fmt.Errorf("%w: column %q", models.ErrMissingResource, name)
	}

	rows, err := m.table.Load(ctx, m.filter, []*models.Column{col})
	if err != nil {
		return nil, err
	}

	values := make([]any, len(rows))
	for i, row := range rows {
		values[i] = row[name]
	}

	m.columns[name] = values

	return values, nil
}

// macrosFor binds the three domain macros to the current row.
func (m *macroState) macrosFor(ctx context.Context, row table.Row) *template.Macros {
	return &template.Macros{
		ColumnList: func(column string) (string, error) {
			values, err := m.columnValues(ctx, column)
			if err != nil {
				return "", err
			}

			return joinValues(values), nil
		},
		Report: func() (string, error) {
			return m.renderReport(ctx)
		},
		RubricFeedback: func() (string, error) {
			return m.renderRubricFeedback(row)
		},
	}
}

// renderReport lists, one line per selected column, the column's values over
// the filtered rows.
func (m *macroState) renderReport(ctx context.Context) (string, error) {
	var out strings.Builder

	for _, triple := range m.a.Triples {
		values, err := m.columnValues(ctx, triple.Column)
		if err != nil {
			return "", err
		}

		fmt.Fprintf(&out, "%s: %s\n", triple.Column, joinValues(values))
	}

	return out.String(), nil
}

// renderRubricFeedback concatenates the feedback text of the rubric cell
// matched by the row's level of attainment in each criterion column.
// Criteria whose value has no authored cell contribute nothing.
func (m *macroState) renderRubricFeedback(row table.Row) (string, error) {
	lines := make([]string, 0, len(m.a.Triples))

	for _, triple := range m.a.Triples {
		col := m.w.ColumnByName(triple.Column)
		if col == nil {
			return "", fmt.Errorf("%w: criterion column %q", models.ErrMissingResource, triple.Column)
		}

		level := col.CategoryIndex(row[col.Name])
		if level < 0 {
			continue
		}

		cell := m.a.RubricCell(col.Name, level)
		if cell == nil {
			continue
		}

		lines = append(lines, cell.FeedbackText)
	}

	return strings.Join(lines, "\n"), nil
}
