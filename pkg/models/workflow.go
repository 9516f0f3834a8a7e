package models

import (
	"fmt"
	"time"
)

// Workflow owns a typed row table, its ordered columns, a string attribute
// map, and the actions and views authored against it.
//
// Invariants: NRows/NCols mirror the table shape; the column names equal the
// table headers; a non-empty table has at least one key column; positions
// form the sequence 1..NCols.
type Workflow struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"        validate:"required,min=3"`
	Description   string            `json:"description_text"`
	Owner         string            `json:"owner"`
	Attributes    map[string]string `json:"attributes"`
	Columns       []*Column         `json:"columns"`
	Actions       []*Action         `json:"actions"`
	Views         []*View           `json:"views"`
	NRows         int               `json:"nrows"`
	NCols         int               `json:"ncols"`
	SessionKey    string            `json:"session_key,omitempty"` // advisory edit lock
	LastEmailHash string            `json:"last_email_hash,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ColumnByName returns the column with the given name, or nil.
func (w *Workflow) ColumnByName(name string) *Column {
	for _, col := range w.Columns {
		if col.Name == name {
			return col
		}
	}

	return nil
}

// KeyColumns returns the columns flagged as keys, in position order.
func (w *Workflow) KeyColumns() []*Column {
	keys := make([]*Column, 0, 1)

	for _, col := range w.Columns {
		if col.IsKey {
			keys = append(keys, col)
		}
	}

	return keys
}

// ColumnNames returns the column names in position order.
func (w *Workflow) ColumnNames() []string {
	names := make([]string, 0, len(w.Columns))
	for _, col := range w.Columns {
		names = append(names, col.Name)
	}

	return names
}

// Schema returns the column name to data type mapping used for formula
// validation and typed row scanning.
func (w *Workflow) Schema() map[string]string {
	schema := make(map[string]string, len(w.Columns))
	for _, col := range w.Columns {
		schema[col.Name] = string(col.DataType)
	}

	return schema
}

// ActionByName returns the action with the given name, or nil.
func (w *Workflow) ActionByName(name string) *Action {
	for _, action := range w.Actions {
		if action.Name == name {
			return action
		}
	}

	return nil
}

// ViewByName returns the view with the given name, or nil.
func (w *Workflow) ViewByName(name string) *View {
	for _, view := range w.Views {
		if view.Name == name {
			return view
		}
	}

	return nil
}

// CheckConditionName verifies a condition name does not collide with any
// column name or attribute key, enforced at condition-create time so that
// template context assembly stays unambiguous.
func (w *Workflow) CheckConditionName(name string) error {
	if w.ColumnByName(name) != nil {
		return fmt.Errorf("%w: condition name %q matches a column", ErrNameCollision, name)
	}

	if _, ok := w.Attributes[name]; ok {
		return fmt.Errorf("%w: condition name %q matches an attribute", ErrNameCollision, name)
	}

	return nil
}

// AddColumn appends a column at the next position after validating it and
// checking the name is not taken.
func (w *Workflow) AddColumn(col *Column) error {
	if err := col.Validate(); err != nil {
		return err
	}

	if w.ColumnByName(col.Name) != nil {
		return fmt.Errorf("%w: column %q already exists", ErrNameCollision, col.Name)
	}

	if col.Position <= 0 || col.Position > len(w.Columns)+1 {
		col.Position = len(w.Columns) + 1
	}

	w.Columns = append(w.Columns, col)
	w.NCols = len(w.Columns)
	w.normalizePositions()

	return nil
}

// RemoveColumn deletes the column from the workflow metadata and renumbers
// positions. Cascading effects on formulas are handled by propagation.
func (w *Workflow) RemoveColumn(name string) error {
	for i, col := range w.Columns {
		if col.Name == name {
			w.Columns = append(w.Columns[:i], w.Columns[i+1:]...)
			w.NCols = len(w.Columns)
			w.normalizePositions()

			return nil
		}
	}

	return fmt.Errorf("%w: column %q", ErrMissingResource, name)
}

// normalizePositions reassigns positions to the sequence 1..NCols keeping the
// current relative order.
func (w *Workflow) normalizePositions() {
	for i, col := range w.Columns {
		col.Position = i + 1
	}
}
