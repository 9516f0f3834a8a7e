package models

import "github.com/ontask/engine/pkg/formula"

// View is a named projection of the workflow table: an optional row formula
// plus a subset of columns, used for display or as an attachment source.
type View struct {
	Name        string        `json:"name" validate:"required"`
	Description string        `json:"description_text"`
	Columns     []string      `json:"columns"`
	Formula     *formula.Node `json:"formula,omitempty"`
}

// HasColumn reports whether the view projects the given column.
func (v *View) HasColumn(name string) bool {
	for _, col := range v.Columns {
		if col == name {
			return true
		}
	}

	return false
}
