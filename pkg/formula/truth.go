package formula

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EvalTruth evaluates the formula against a single row, a map of column name
// to typed value (nil for null). An empty composite evaluates to true.
func EvalTruth(n *Node, row map[string]any) (bool, error) {
	if n == nil {
		return true, nil
	}

	if n.IsComposite() {
		return evalComposite(n, row)
	}

	return evalLeaf(n, row)
}

func evalComposite(n *Node, row map[string]any) (bool, error) {
	result := true

	switch n.Condition {
	case CombinatorAnd:
		result = true

		for _, rule := range n.Rules {
			sub, err := EvalTruth(rule, row)
			if err != nil {
				return false, err
			}

			result = result && sub
		}
	case CombinatorOr:
		result = len(n.Rules) == 0

		for _, rule := range n.Rules {
			sub, err := EvalTruth(rule, row)
			if err != nil {
				return false, err
			}

			result = result || sub
		}
	default:
		return false, fmt.Errorf("%w: unknown combinator %q", ErrInvalidFormula, n.Condition)
	}

	if n.Not {
		result = !result
	}

	return result, nil
}

func evalLeaf(n *Node, row map[string]any) (bool, error) {
	value, ok := row[n.Field]
	if !ok {
		return false, fmt.Errorf("%w: unknown column %q", ErrInvalidFormula, n.Field)
	}

	// Null semantics: only the null probes see null values.
	switch n.Operator {
	case OpIsNull:
		return value == nil, nil
	case OpIsNotNull:
		return value != nil, nil
	}

	if value == nil {
		return false, nil
	}

	switch n.Operator {
	case OpEqual, OpNotEqual:
		eq, err := compareEqual(n, value)
		if err != nil {
			return false, err
		}

		if n.Operator == OpNotEqual {
			return !eq, nil
		}

		return eq, nil
	case OpBeginsWith, OpNotBeginsWith, OpContains, OpNotContains, OpEndsWith, OpNotEndsWith, OpIsEmpty, OpIsNotEmpty:
		return evalTextLeaf(n, value)
	case OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		return evalOrderedLeaf(n, value)
	case OpBetween, OpNotBetween:
		return evalBetweenLeaf(n, value)
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidFormula, n.Operator)
	}
}

func compareEqual(n *Node, value any) (bool, error) {
	switch n.Type {
	case "string":
		s, err := asString(value)
		if err != nil {
			return false, err
		}

		lit, err := asString(n.Value)
		if err != nil {
			return false, err
		}

		return s == lit, nil
	case "boolean":
		b, err := asBool(value)
		if err != nil {
			return false, err
		}

		lit, err := asBool(n.Value)
		if err != nil {
			return false, err
		}

		return b == lit, nil
	case "integer", "double":
		f, err := asNumber(value)
		if err != nil {
			return false, err
		}

		lit, err := asNumber(n.Value)
		if err != nil {
			return false, err
		}

		return f == lit, nil
	case "datetime":
		ts, err := asTime(value)
		if err != nil {
			return false, err
		}

		lit, err := asTime(n.Value)
		if err != nil {
			return false, err
		}

		return ts.Equal(lit), nil
	default:
		return false, fmt.Errorf("%w: equality not defined on type %q", ErrInvalidFormula, n.Type)
	}
}

func evalTextLeaf(n *Node, value any) (bool, error) {
	s, err := asString(value)
	if err != nil {
		return false, err
	}

	switch n.Operator {
	case OpIsEmpty:
		return s == "", nil
	case OpIsNotEmpty:
		return s != "", nil
	}

	lit, err := asString(n.Value)
	if err != nil {
		return false, err
	}

	switch n.Operator {
	case OpBeginsWith:
		return strings.HasPrefix(s, lit), nil
	case OpNotBeginsWith:
		return !strings.HasPrefix(s, lit), nil
	case OpContains:
		return strings.Contains(s, lit), nil
	case OpNotContains:
		return !strings.Contains(s, lit), nil
	case OpEndsWith:
		return strings.HasSuffix(s, lit), nil
	case OpNotEndsWith:
		return !strings.HasSuffix(s, lit), nil
	default:
		return false, fmt.Errorf("%w: unknown text operator %q", ErrInvalidFormula, n.Operator)
	}
}

func evalOrderedLeaf(n *Node, value any) (bool, error) {
	cmp, err := compareOrdered(n.Type, value, n.Value)
	if err != nil {
		return false, err
	}

	switch n.Operator {
	case OpLess:
		return cmp < 0, nil
	case OpLessOrEqual:
		return cmp <= 0, nil
	case OpGreater:
		return cmp > 0, nil
	case OpGreaterOrEqual:
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("%w: unknown ordered operator %q", ErrInvalidFormula, n.Operator)
	}
}

func evalBetweenLeaf(n *Node, value any) (bool, error) {
	low, high, err := n.valuePair()
	if err != nil {
		return false, err
	}

	cmpLow, err := compareOrdered(n.Type, value, low)
	if err != nil {
		return false, err
	}

	cmpHigh, err := compareOrdered(n.Type, value, high)
	if err != nil {
		return false, err
	}

	inside := cmpLow >= 0 && cmpHigh <= 0

	if n.Operator == OpNotBetween {
		return !inside, nil
	}

	return inside, nil
}

// compareOrdered compares value against literal under the leaf type and
// returns -1, 0 or 1.
func compareOrdered(leafType string, value, literal any) (int, error) {
	if leafType == "datetime" {
		ts, err := asTime(value)
		if err != nil {
			return 0, err
		}

		lit, err := asTime(literal)
		if err != nil {
			return 0, err
		}

		switch {
		case ts.Before(lit):
			return -1, nil
		case ts.After(lit):
			return 1, nil
		default:
			return 0, nil
		}
	}

	f, err := asNumber(value)
	if err != nil {
		return 0, err
	}

	lit, err := asNumber(literal)
	if err != nil {
		return 0, err
	}

	switch {
	case f < lit:
		return -1, nil
	case f > lit:
		return 1, nil
	default:
		return 0, nil
	}
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", fmt.Errorf("%w: %T is not a string", ErrInvalidFormula, v)
	}
}

func asBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.ToLower(b))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidFormula, b)
		}

		return parsed, nil
	case int64:
		return b != 0, nil
	case float64:
		return b != 0, nil
	default:
		return false, fmt.Errorf("%w: %T is not a boolean", ErrInvalidFormula, v)
	}
}

func asNumber(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidFormula, n)
		}

		return parsed, nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", ErrInvalidFormula, v)
	}
}

func asTime(v any) (time.Time, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts, nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05Z07:00"} {
			parsed, err := time.Parse(layout, ts)
			if err == nil {
				return parsed, nil
			}
		}

		return time.Time{}, fmt.Errorf("%w: %q is not a datetime", ErrInvalidFormula, ts)
	default:
		return time.Time{}, fmt.Errorf("%w: %T is not a datetime", ErrInvalidFormula, v)
	}
}
