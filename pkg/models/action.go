package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/ontask/engine/pkg/formula"
)

// CountUnknown is the sentinel for a selected-row count that has been
// invalidated and not yet recomputed.
const CountUnknown = -1

// ActionType enumerates the authored artifact kinds.
type ActionType string

const (
	ActionPersonalizedText        ActionType = "personalized_text"
	ActionPersonalizedJSON        ActionType = "personalized_json"
	ActionPersonalizedCanvasEmail ActionType = "personalized_canvas_email"
	ActionEmailReport             ActionType = "email_report"
	ActionJSONReport              ActionType = "json_report"
	ActionSurvey                  ActionType = "survey"
	ActionTodoList                ActionType = "todo_list"
	ActionRubricText              ActionType = "rubric_text"
)

// ValidActionType reports whether at names a known action type.
func ValidActionType(at ActionType) bool {
	switch at {
	case ActionPersonalizedText, ActionPersonalizedJSON, ActionPersonalizedCanvasEmail,
		ActionEmailReport, ActionJSONReport, ActionSurvey, ActionTodoList, ActionRubricText:
		return true
	default:
		return false
	}
}

// IsPersonalized reports whether the action renders one artifact per row.
func (at ActionType) IsPersonalized() bool {
	switch at {
	case ActionPersonalizedText, ActionPersonalizedJSON, ActionPersonalizedCanvasEmail, ActionRubricText:
		return true
	default:
		return false
	}
}

// HasHTMLText reports whether the action's template is authored in an HTML
// editor. Interpolated values are left unescaped either way; the flag only
// drives entity decoding of variable names.
func (at ActionType) HasHTMLText() bool {
	switch at {
	case ActionPersonalizedText, ActionEmailReport, ActionRubricText:
		return true
	default:
		return false
	}
}

// Filter is a formula gating which rows an action (or view) processes, with a
// cached count of rows satisfying it. The count is a denormalization; the
// authoritative answer is always recomputable from the formula and the table.
type Filter struct {
	Formula       *formula.Node `json:"formula"`
	SelectedCount int           `json:"selected_count"`
}

// Condition is a named formula whose per-row truth value is injected into the
// template context under its name.
type Condition struct {
	Name          string        `json:"name"    validate:"required"`
	Formula       *formula.Node `json:"formula" validate:"required"`
	SelectedCount int           `json:"selected_count"`
}

// ColumnCondition is one (column, optional condition, changes allowed) triple
// of a survey or todo-list action.
type ColumnCondition struct {
	Column         string `json:"column"    validate:"required"`
	Condition      string `json:"condition,omitempty"`
	ChangesAllowed bool   `json:"changes_allowed"`
}

// RubricCell holds the descriptive and feedback text for one (criterion
// column, level of attainment) pair of a rubric action.
type RubricCell struct {
	Column          string `json:"column"       validate:"required"`
	LOAPosition     int    `json:"loa_position" validate:"gte=0"`
	DescriptionText string `json:"description_text"`
	FeedbackText    string `json:"feedback_text"`
}

// Action is an authored artifact producing per-row rendered content.
type Action struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"        validate:"required"`
	Description  string             `json:"description_text"`
	Type         ActionType         `json:"action_type" validate:"required"`
	TextContent  string             `json:"text_content"`
	TargetURL    string             `json:"target_url"`
	ServeEnabled bool               `json:"serve_enabled"`
	ActiveFrom   *time.Time         `json:"active_from,omitempty"`
	ActiveTo     *time.Time         `json:"active_to,omitempty"`
	Shuffle      bool               `json:"shuffle"`
	Filter       *Filter            `json:"filter,omitempty"`
	Conditions   []*Condition       `json:"conditions"`
	Triples      []*ColumnCondition `json:"column_condition_pairs"`
	RubricCells  []*RubricCell      `json:"rubric_cells,omitempty"`

	// RowsAllFalse caches the indices of rows where every condition is
	// false under the filter. Nil means "not computed".
	RowsAllFalse []int64 `json:"rows_all_false,omitempty"`
}

// ConditionByName returns the condition with the given name, or nil.
func (a *Action) ConditionByName(name string) *Condition {
	for _, cond := range a.Conditions {
		if cond.Name == name {
			return cond
		}
	}

	return nil
}

// AddCondition attaches a condition after checking name uniqueness within the
// action and disjointness from the workflow's columns and attributes.
// Conditions are kept ordered by name.
func (a *Action) AddCondition(w *Workflow, cond *Condition) error {
	if a.ConditionByName(cond.Name) != nil {
		return fmt.Errorf("%w: condition %q already exists", ErrNameCollision, cond.Name)
	}

	if err := w.CheckConditionName(cond.Name); err != nil {
		return err
	}

	if err := cond.Formula.Validate(w.Schema()); err != nil {
		return err
	}

	a.Conditions = append(a.Conditions, cond)
	a.SortConditions()
	a.RowsAllFalse = nil

	return nil
}

// RemoveCondition detaches the named condition. Dangling template references
// are the caller's concern (see propagation.DeleteCondition).
func (a *Action) RemoveCondition(name string) error {
	for i, cond := range a.Conditions {
		if cond.Name == name {
			a.Conditions = append(a.Conditions[:i], a.Conditions[i+1:]...)
			a.RowsAllFalse = nil

			return nil
		}
	}

	return fmt.Errorf("%w: condition %q", ErrMissingResource, name)
}

// SortConditions restores the by-name ordering invariant.
func (a *Action) SortConditions() {
	sort.Slice(a.Conditions, func(i, j int) bool {
		return a.Conditions[i].Name < a.Conditions[j].Name
	})
}

// IsActive reports whether the action is inside its availability window.
func (a *Action) IsActive(now time.Time) bool {
	if a.ActiveFrom != nil && now.Before(*a.ActiveFrom) {
		return false
	}

	if a.ActiveTo != nil && now.After(*a.ActiveTo) {
		return false
	}

	return true
}

// RubricCell returns the cell for the given criterion column and level of
// attainment, or nil when no cell has been authored at that position.
func (a *Action) RubricCell(column string, loa int) *RubricCell {
	for _, cell := range a.RubricCells {
		if cell.Column == column && cell.LOAPosition == loa {
			return cell
		}
	}

	return nil
}

// SetRubricCell creates or updates the cell at (column, loa), enforcing
// uniqueness on the pair within the action.
func (a *Action) SetRubricCell(cell *RubricCell) {
	for i, existing := range a.RubricCells {
		if existing.Column == cell.Column && existing.LOAPosition == cell.LOAPosition {
			a.RubricCells[i] = cell

			return
		}
	}

	a.RubricCells = append(a.RubricCells, cell)
}

// InvalidateCounts marks every cached count of the action as unknown and
// clears the all-false row set.
func (a *Action) InvalidateCounts() {
	if a.Filter != nil {
		a.Filter.SelectedCount = CountUnknown
	}

	for _, cond := range a.Conditions {
		cond.SelectedCount = CountUnknown
	}

	a.RowsAllFalse = nil
}
