package formula

import (
	"fmt"
	"strings"
	"time"
)

// operatorText maps each operator to its display form for audit output.
var operatorText = map[Operator]string{
	OpEqual:          "=",
	OpNotEqual:       "!=",
	OpBeginsWith:     "begins with",
	OpNotBeginsWith:  "does not begin with",
	OpContains:       "contains",
	OpNotContains:    "does not contain",
	OpEndsWith:       "ends with",
	OpNotEndsWith:    "does not end with",
	OpIsEmpty:        "is empty",
	OpIsNotEmpty:     "is not empty",
	OpIsNull:         "is null",
	OpIsNotNull:      "is not null",
	OpLess:           "<",
	OpLessOrEqual:    "<=",
	OpGreater:        ">",
	OpGreaterOrEqual: ">=",
	OpBetween:        "between",
	OpNotBetween:     "not between",
}

// EvalText renders the formula as a human-readable infix expression for
// audit display. An empty composite renders as "true".
func EvalText(n *Node) string {
	if n == nil {
		return "true"
	}

	if n.IsComposite() {
		return textComposite(n)
	}

	return textLeaf(n)
}

func textComposite(n *Node) string {
	if len(n.Rules) == 0 {
		if n.Not {
			return "false"
		}

		return "true"
	}

	parts := make([]string, 0, len(n.Rules))
	for _, rule := range n.Rules {
		part := EvalText(rule)
		if rule.IsComposite() && len(rule.Rules) > 1 {
			part = "(" + part + ")"
		}

		parts = append(parts, part)
	}

	joined := strings.Join(parts, " "+string(n.Condition)+" ")
	if n.Not {
		return "NOT (" + joined + ")"
	}

	return joined
}

func textLeaf(n *Node) string {
	op, ok := operatorText[n.Operator]
	if !ok {
		op = string(n.Operator)
	}

	switch n.Operator {
	case OpIsEmpty, OpIsNotEmpty, OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", n.Field, op)
	case OpBetween, OpNotBetween:
		low, high, err := n.valuePair()
		if err != nil {
			return fmt.Sprintf("%s %s ?", n.Field, op)
		}

		return fmt.Sprintf("%s %s %s and %s", n.Field, op, textLiteral(low), textLiteral(high))
	default:
		return fmt.Sprintf("%s %s %s", n.Field, op, textLiteral(n.Value))
	}
}

func textLiteral(value any) string {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case time.Time:
		return v.Format(time.RFC3339)
	case float64:
		// Render integral doubles without the trailing ".0" noise.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}

		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
