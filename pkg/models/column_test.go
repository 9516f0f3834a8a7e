package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnValidate(t *testing.T) {
	valid := &Column{Name: "score", DataType: TypeInteger, Position: 1}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		col  *Column
	}{
		{"empty name", &Column{DataType: TypeString}},
		{"name too long", &Column{Name: strings.Repeat("x", 64), DataType: TypeString}},
		{"unknown type", &Column{Name: "a", DataType: DataType("decimal")}},
		{"single category", &Column{Name: "a", DataType: TypeString, Categories: []any{"one"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.col.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestColumnIsActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	col := &Column{Name: "a", DataType: TypeString}
	assert.True(t, col.IsActive(now))

	col.ActiveFrom = &after
	assert.False(t, col.IsActive(now))

	col.ActiveFrom = &before
	col.ActiveTo = &after
	assert.True(t, col.IsActive(now))

	col.ActiveTo = &before
	assert.False(t, col.IsActive(now))
}

func TestColumnCategories(t *testing.T) {
	col := &Column{
		Name:       "grade",
		DataType:   TypeString,
		Categories: []any{"fail", "pass", "distinction"},
	}

	assert.True(t, col.HasCategories())
	assert.Equal(t, 1, col.CategoryIndex("pass"))
	assert.Equal(t, -1, col.CategoryIndex("unknown"))
	assert.True(t, col.InCategories("fail"))
	assert.False(t, col.InCategories("unknown"))

	// Integer categories reloaded from JSON come back as float64.
	numeric := &Column{
		Name:       "level",
		DataType:   TypeInteger,
		Categories: []any{float64(1), float64(2)},
	}
	assert.Equal(t, 1, numeric.CategoryIndex(int64(2)))

	bare := &Column{Name: "free", DataType: TypeString}
	assert.False(t, bare.HasCategories())
}
