package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DataType enumerates the column types the engine understands.
type DataType string

const (
	TypeString   DataType = "string"
	TypeInteger  DataType = "integer"
	TypeDouble   DataType = "double"
	TypeBoolean  DataType = "boolean"
	TypeDatetime DataType = "datetime"
)

// datetimeLayouts are tried in order when parsing datetime literals.
// All layouts carry an explicit timezone.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

// ValidDataType reports whether dt is one of the supported column types.
func ValidDataType(dt DataType) bool {
	switch dt {
	case TypeString, TypeInteger, TypeDouble, TypeBoolean, TypeDatetime:
		return true
	default:
		return false
	}
}

// ParseValue parses a textual literal into the typed value for the given
// data type. Integer literals that overflow int64 fall back to double.
// Datetime literals must be ISO 8601 with an explicit timezone.
func ParseValue(dt DataType, text string) (any, error) {
	switch dt {
	case TypeString:
		return text, nil
	case TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err == nil {
			return n, nil
		}

		f, ferr := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if ferr == nil && f == float64(int64(f)) {
			return int64(f), nil
		}

		if ferr == nil {
			// Out of integer range, keep the double representation.
			return f, nil
		}

		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, text)
	case TypeDouble:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a double", ErrInvalidValue, text)
		}

		return f, nil
	case TypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(text)))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, text)
		}

		return b, nil
	case TypeDatetime:
		trimmed := strings.TrimSpace(text)
		for _, layout := range datetimeLayouts {
			ts, err := time.Parse(layout, trimmed)
			if err == nil {
				return ts, nil
			}
		}

		return nil, fmt.Errorf("%w: %q is not a timezone-aware datetime", ErrInvalidValue, text)
	default:
		return nil, fmt.Errorf("%w: unknown data type %q", ErrInvalidValue, dt)
	}
}

// ValidateCategories parses the textual category values for a column of the
// given type. At least two categories are required. Membership of already
// stored values is checked separately against the table.
func ValidateCategories(dt DataType, values []string) ([]any, error) {
	const minCategories = 2

	if len(values) < minCategories {
		return nil, fmt.Errorf("%w: at least %d categories are required", ErrInvalidValue, minCategories)
	}

	parsed := make([]any, 0, len(values))

	for _, value := range values {
		v, err := ParseValue(dt, value)
		if err != nil {
			return nil, fmt.Errorf("failed to parse category %q: %w", value, err)
		}

		parsed = append(parsed, v)
	}

	return parsed, nil
}
