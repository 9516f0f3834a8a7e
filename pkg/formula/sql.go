package formula

import (
	"fmt"
	"strings"
)

// EvalSQL renders the formula as a parameterized SQL predicate with `?`
// placeholders, plus the parameter list to bind. The caller rebinds
// placeholders for backends with positional parameters (see table.Dialect).
//
// The fragment is null-safe: every leaf comparison is wrapped so that a null
// operand yields FALSE rather than NULL, keeping the predicate equivalent to
// EvalTruth under negation. An empty composite renders as the empty
// predicate.
func EvalSQL(n *Node) (string, []any, error) {
	if n == nil {
		return "", nil, nil
	}

	if n.IsComposite() && len(n.Rules) == 0 && !n.Not {
		return "", nil, nil
	}

	return sqlNode(n)
}

func sqlNode(n *Node) (string, []any, error) {
	if n.IsComposite() {
		return sqlComposite(n)
	}

	return sqlLeaf(n)
}

func sqlComposite(n *Node) (string, []any, error) {
	if len(n.Rules) == 0 {
		// An empty composite is vacuously true; keep a literal so the
		// fragment stays composable inside a parent expression.
		if n.Not {
			return "FALSE", nil, nil
		}

		return "TRUE", nil, nil
	}

	joiner := " AND "
	if n.Condition == CombinatorOr {
		joiner = " OR "
	} else if n.Condition != CombinatorAnd {
		return "", nil, fmt.Errorf("%w: unknown combinator %q", ErrInvalidFormula, n.Condition)
	}

	fragments := make([]string, 0, len(n.Rules))
	args := make([]any, 0, len(n.Rules))

	for _, rule := range n.Rules {
		fragment, subArgs, err := sqlNode(rule)
		if err != nil {
			return "", nil, err
		}

		fragments = append(fragments, fragment)
		args = append(args, subArgs...)
	}

	predicate := "(" + strings.Join(fragments, joiner) + ")"
	if n.Not {
		predicate = "(NOT " + predicate + ")"
	}

	return predicate, args, nil
}

func sqlLeaf(n *Node) (string, []any, error) {
	column := QuoteIdent(n.Field)

	switch n.Operator {
	case OpIsNull:
		return column + " IS NULL", nil, nil
	case OpIsNotNull:
		return column + " IS NOT NULL", nil, nil
	case OpIsEmpty:
		return "COALESCE(" + column + " = '', FALSE)", nil, nil
	case OpIsNotEmpty:
		return "COALESCE(" + column + " <> '', FALSE)", nil, nil
	case OpEqual:
		arg, err := sqlLiteral(n, n.Value)
		return "COALESCE(" + column + " = ?, FALSE)", []any{arg}, err
	case OpNotEqual:
		arg, err := sqlLiteral(n, n.Value)
		return "COALESCE(" + column + " <> ?, FALSE)", []any{arg}, err
	case OpLess:
		arg, err := sqlLiteral(n, n.Value)
		return "COALESCE(" + column + " < ?, FALSE)", []any{arg}, err
	case OpLessOrEqual:
		arg, err := sqlLiteral(n, n.Value)
		return "COALESCE(" + column + " <= ?, FALSE)", []any{arg}, err
	case OpGreater:
		arg, err := sqlLiteral(n, n.Value)
		return "COALESCE(" + column + " > ?, FALSE)", []any{arg}, err
	case OpGreaterOrEqual:
		arg, err := sqlLiteral(n, n.Value)
		return "COALESCE(" + column + " >= ?, FALSE)", []any{arg}, err
	case OpBeginsWith, OpNotBeginsWith, OpContains, OpNotContains, OpEndsWith, OpNotEndsWith:
		return sqlLikeLeaf(n, column)
	case OpBetween, OpNotBetween:
		return sqlBetweenLeaf(n, column)
	default:
		return "", nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidFormula, n.Operator)
	}
}

func sqlLikeLeaf(n *Node, column string) (string, []any, error) {
	lit, err := asString(n.Value)
	if err != nil {
		return "", nil, err
	}

	escaped := escapeLike(lit)

	var pattern string

	negated := false

	switch n.Operator {
	case OpBeginsWith, OpNotBeginsWith:
		pattern = escaped + "%"
		negated = n.Operator == OpNotBeginsWith
	case OpContains, OpNotContains:
		pattern = "%" + escaped + "%"
		negated = n.Operator == OpNotContains
	case OpEndsWith, OpNotEndsWith:
		pattern = "%" + escaped
		negated = n.Operator == OpNotEndsWith
	}

	comparison := column + ` LIKE ? ESCAPE '\'`
	if negated {
		comparison = "NOT (" + comparison + ")"
	}

	return "COALESCE(" + comparison + ", FALSE)", []any{pattern}, nil
}

func sqlBetweenLeaf(n *Node, column string) (string, []any, error) {
	low, high, err := n.valuePair()
	if err != nil {
		return "", nil, err
	}

	lowArg, err := sqlLiteral(n, low)
	if err != nil {
		return "", nil, err
	}

	highArg, err := sqlLiteral(n, high)
	if err != nil {
		return "", nil, err
	}

	comparison := column + " BETWEEN ? AND ?"
	if n.Operator == OpNotBetween {
		comparison = "NOT (" + comparison + ")"
	}

	return "COALESCE(" + comparison + ", FALSE)", []any{lowArg, highArg}, nil
}

// sqlLiteral converts an authored literal into the value bound as a query
// parameter, typed per the leaf's declared type.
func sqlLiteral(n *Node, value any) (any, error) {
	switch n.Type {
	case "string":
		return asString(value)
	case "boolean":
		return asBool(value)
	case "integer", "double":
		return asNumber(value)
	case "datetime":
		return asTime(value)
	default:
		return nil, fmt.Errorf("%w: cannot bind literal of type %q", ErrInvalidFormula, n.Type)
	}
}

// QuoteIdent quotes a user-supplied identifier for interpolation into SQL.
// Double quotes are doubled; the result is always wrapped in double quotes,
// which both PostgreSQL and SQLite accept.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// escapeLike escapes the LIKE wildcards in a literal so user text matches
// verbatim. The generated comparisons always declare backslash as the escape
// character.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)

	return s
}
