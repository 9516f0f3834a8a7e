// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"

	"github.com/ontask/engine/pkg/formula"
	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/table"
)

// CreateTestWorkflow creates a workflow with a small typed schema that can be
// overridden per test.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	w := &models.Workflow{
		ID:         uuid.New().String(),
		Name:       "Test Workflow",
		Owner:      "instructor@example.org",
		Attributes: map[string]string{"course": "Engineering 101"},
		Columns: []*models.Column{
			{Name: "email", DataType: models.TypeString, IsKey: true, Position: 1},
			{Name: "name", DataType: models.TypeString, Position: 2},
			{Name: "score", DataType: models.TypeInteger, Position: 3},
			{Name: "enrolled", DataType: models.TypeBoolean, Position: 4},
		},
		NCols: 4,
	}

	for _, override := range overrides {
		override(w)
	}

	return w
}

// WithColumns replaces the workflow's schema.
func WithColumns(columns ...*models.Column) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Columns = columns
		w.NCols = len(columns)
	}
}

// WithAction attaches an action to the workflow.
func WithAction(a *models.Action) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Actions = append(w.Actions, a)
	}
}

// CreateTestAction creates a personalized text action that can be overridden
// per test.
func CreateTestAction(overrides ...func(*models.Action)) *models.Action {
	a := &models.Action{
		ID:          uuid.New().String(),
		Name:        "Test Action",
		Type:        models.ActionPersonalizedText,
		TextContent: "Hello {{ name }}",
	}

	for _, override := range overrides {
		override(a)
	}

	return a
}

// WithFilter sets the action's filter formula.
func WithFilter(f *formula.Node) func(*models.Action) {
	return func(a *models.Action) {
		a.Filter = &models.Filter{Formula: f, SelectedCount: models.CountUnknown}
	}
}

// WithCondition attaches a named condition, keeping the by-name order.
func WithCondition(name string, f *formula.Node) func(*models.Action) {
	return func(a *models.Action) {
		a.Conditions = append(a.Conditions, &models.Condition{
			Name:          name,
			Formula:       f,
			SelectedCount: models.CountUnknown,
		})
		a.SortConditions()
	}
}

// LeafFormula builds a single-rule composite, the most common formula shape
// in tests.
func LeafFormula(field, fieldType, operator string, value any) *formula.Node {
	return &formula.Node{
		Condition: formula.CombinatorAnd,
		Rules: []*formula.Node{
			{
				ID:       field,
				Field:    field,
				Type:     fieldType,
				Operator: formula.Operator(operator),
				Value:    value,
			},
		},
	}
}

// CreateTestFrame builds the data frame matching CreateTestWorkflow's schema.
func CreateTestFrame() *table.Frame {
	return &table.Frame{
		Columns: []string{"email", "name", "score", "enrolled"},
		Rows: [][]any{
			{"alice@example.org", "Alice", int64(82), true},
			{"bob@example.org", "Bob", int64(45), true},
			{"carol@example.org", "Carol", int64(67), false},
		},
	}
}
