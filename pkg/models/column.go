package models

import (
	"fmt"
	"time"
)

// MaxColumnNameLength is the longest column name the table store accepts.
const MaxColumnNameLength = 63

// Column describes one typed column of a workflow's table.
type Column struct {
	Name       string     `json:"name"        validate:"required,max=63"`
	DataType   DataType   `json:"data_type"   validate:"required"`
	IsKey      bool       `json:"is_key"`
	Position   int        `json:"position"    validate:"gte=0"`
	InViz      bool       `json:"in_viz"`
	Categories []any      `json:"categories,omitempty"`
	ActiveFrom *time.Time `json:"active_from,omitempty"`
	ActiveTo   *time.Time `json:"active_to,omitempty"`
}

// Validate checks the structural column invariants.
func (c *Column) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: column name is empty", ErrInvalidValue)
	}

	if len(c.Name) > MaxColumnNameLength {
		return fmt.Errorf("%w: column name %q exceeds %d characters", ErrInvalidValue, c.Name, MaxColumnNameLength)
	}

	if !ValidDataType(c.DataType) {
		return fmt.Errorf("%w: column %q has unknown data type %q", ErrInvalidValue, c.Name, c.DataType)
	}

	if len(c.Categories) == 1 {
		return fmt.Errorf("%w: column %q has a single category", ErrInvalidValue, c.Name)
	}

	return nil
}

// IsActive reports whether the column is inside its validity window at the
// given instant. A column with no window is always active.
func (c *Column) IsActive(now time.Time) bool {
	if c.ActiveFrom != nil && now.Before(*c.ActiveFrom) {
		return false
	}

	if c.ActiveTo != nil && now.After(*c.ActiveTo) {
		return false
	}

	return true
}

// HasCategories reports whether the column restricts its values to a finite set.
func (c *Column) HasCategories() bool {
	return len(c.Categories) > 0
}

// CategoryIndex returns the position of value within the ordered categories,
// interpreted as the level of attainment. It returns -1 when the value is not
// a category.
func (c *Column) CategoryIndex(value any) int {
	for i, category := range c.Categories {
		if equalScalar(category, value) {
			return i
		}
	}

	return -1
}

// InCategories reports whether value is one of the allowed categories.
func (c *Column) InCategories(value any) bool {
	return c.CategoryIndex(value) >= 0
}

// equalScalar compares two stored scalar values, tolerating the
// integer/double representation drift introduced by JSON round-trips.
func equalScalar(a, b any) bool {
	if a == b {
		return true
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}

	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		return at.Equal(bt)
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
