package table

import (
	"fmt"

	"github.com/ontask/engine/pkg/models"
)

// Row maps column name to typed value. Null values are nil; string columns
// never read back null as the empty string.
type Row map[string]any

// Frame is a materialized, column-ordered block of rows, the unit exchanged
// with Store and with the workflow bundle.
type Frame struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NRows returns the number of rows.
func (f *Frame) NRows() int { return len(f.Rows) }

// NCols returns the number of columns.
func (f *Frame) NCols() int { return len(f.Columns) }

// ColumnIndex returns the position of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, col := range f.Columns {
		if col == name {
			return i
		}
	}

	return -1
}

// CheckAgainst cross-checks the frame's shape against the declared columns.
func (f *Frame) CheckAgainst(columns []*models.Column) error {
	if len(f.Columns) != len(columns) {
		return fmt.Errorf("%w: frame has %d columns, workflow declares %d",
			models.ErrImportSchema, len(f.Columns), len(columns))
	}

	declared := make(map[string]bool, len(columns))
	for _, col := range columns {
		declared[col.Name] = true
	}

	for _, name := range f.Columns {
		if !declared[name] {
			return fmt.Errorf("%w: frame column %q not declared", models.ErrImportSchema, name)
		}
	}

	for i, row := range f.Rows {
		if len(row) != len(f.Columns) {
			return fmt.Errorf("%w: row %d has %d values, expected %d",
				models.ErrImportSchema, i+1, len(row), len(f.Columns))
		}
	}

	return nil
}
