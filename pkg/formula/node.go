// Package formula implements the JSON boolean-formula tree authored against a
// workflow's columns, with three evaluation modes: per-row truth, SQL
// predicate, and human-readable text.
package formula

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidFormula indicates an operator applied to an incompatible type or
// a leaf referencing an unknown column.
var ErrInvalidFormula = errors.New("invalid formula")

// Combinator joins the sub-rules of a composite node.
type Combinator string

const (
	CombinatorAnd Combinator = "AND"
	CombinatorOr  Combinator = "OR"
)

// Operator is a leaf comparison operator. All operators are nullable-aware:
// a comparison on a null operand yields false, except is_null (true) and
// is_not_null (false).
type Operator string

const (
	OpEqual          Operator = "equal"
	OpNotEqual       Operator = "not_equal"
	OpBeginsWith     Operator = "begins_with"
	OpNotBeginsWith  Operator = "not_begins_with"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpEndsWith       Operator = "ends_with"
	OpNotEndsWith    Operator = "not_ends_with"
	OpIsEmpty        Operator = "is_empty"
	OpIsNotEmpty     Operator = "is_not_empty"
	OpIsNull         Operator = "is_null"
	OpIsNotNull      Operator = "is_not_null"
	OpLess           Operator = "less"
	OpLessOrEqual    Operator = "less_or_equal"
	OpGreater        Operator = "greater"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpBetween        Operator = "between"
	OpNotBetween     Operator = "not_between"
)

// orderedOperators are defined only on integer, double and datetime operands.
var orderedOperators = map[Operator]bool{
	OpLess:           true,
	OpLessOrEqual:    true,
	OpGreater:        true,
	OpGreaterOrEqual: true,
	OpBetween:        true,
	OpNotBetween:     true,
}

// textOperators are defined only on string operands.
var textOperators = map[Operator]bool{
	OpBeginsWith:    true,
	OpNotBeginsWith: true,
	OpContains:      true,
	OpNotContains:   true,
	OpEndsWith:      true,
	OpNotEndsWith:   true,
	OpIsEmpty:       true,
	OpIsNotEmpty:    true,
}

var allOperators = map[Operator]bool{
	OpEqual: true, OpNotEqual: true,
	OpBeginsWith: true, OpNotBeginsWith: true,
	OpContains: true, OpNotContains: true,
	OpEndsWith: true, OpNotEndsWith: true,
	OpIsEmpty: true, OpIsNotEmpty: true,
	OpIsNull: true, OpIsNotNull: true,
	OpLess: true, OpLessOrEqual: true,
	OpGreater: true, OpGreaterOrEqual: true,
	OpBetween: true, OpNotBetween: true,
}

// Node is one node of a formula tree. A node with a non-empty Condition is a
// composite combining its Rules; otherwise it is a leaf comparing a column
// against a literal (or a pair of literals for between/not_between).
type Node struct {
	// Composite fields.
	Condition Combinator `json:"condition,omitempty"`
	Not       bool       `json:"not,omitempty"`
	Rules     []*Node    `json:"rules,omitempty"`

	// Leaf fields. ID mirrors Field for compatibility with authored trees.
	ID       string   `json:"id,omitempty"`
	Field    string   `json:"field,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Type     string   `json:"type,omitempty"`
	Value    any      `json:"value,omitempty"`
}

// IsComposite reports whether the node combines sub-rules.
func (n *Node) IsComposite() bool {
	return n.Condition != ""
}

// Clone returns a deep copy of the tree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	out := *n

	if len(n.Rules) > 0 {
		out.Rules = make([]*Node, len(n.Rules))
		for i, rule := range n.Rules {
			out.Rules[i] = rule.Clone()
		}
	}

	return &out
}

// Parse decodes a JSON formula tree.
func Parse(data []byte) (*Node, error) {
	var node Node

	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormula, err)
	}

	return &node, nil
}

// Validate walks the tree checking structural soundness against a schema of
// column name to data type ("string", "integer", "double", "boolean",
// "datetime"). A nil schema skips the column checks.
func (n *Node) Validate(schema map[string]string) error {
	if n == nil {
		return nil
	}

	if n.IsComposite() {
		if n.Condition != CombinatorAnd && n.Condition != CombinatorOr {
			return fmt.Errorf("%w: unknown combinator %q", ErrInvalidFormula, n.Condition)
		}

		for _, rule := range n.Rules {
			if err := rule.Validate(schema); err != nil {
				return err
			}
		}

		return nil
	}

	if n.Field == "" {
		return fmt.Errorf("%w: leaf without field", ErrInvalidFormula)
	}

	if !allOperators[n.Operator] {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidFormula, n.Operator)
	}

	if orderedOperators[n.Operator] {
		switch n.Type {
		case "integer", "double", "datetime":
		default:
			return fmt.Errorf("%w: operator %q not defined on type %q", ErrInvalidFormula, n.Operator, n.Type)
		}
	}

	if textOperators[n.Operator] && n.Type != "string" {
		return fmt.Errorf("%w: operator %q not defined on type %q", ErrInvalidFormula, n.Operator, n.Type)
	}

	if schema != nil {
		colType, ok := schema[n.Field]
		if !ok {
			return fmt.Errorf("%w: unknown column %q", ErrInvalidFormula, n.Field)
		}

		if n.Type != "" && n.Type != colType {
			return fmt.Errorf("%w: leaf type %q does not match column %q of type %q",
				ErrInvalidFormula, n.Type, n.Field, colType)
		}
	}

	return nil
}

// valuePair extracts the two literals of a between/not_between leaf.
func (n *Node) valuePair() (any, any, error) {
	pair, ok := n.Value.([]any)
	if !ok || len(pair) != 2 {
		return nil, nil, fmt.Errorf("%w: operator %q requires a pair of values", ErrInvalidFormula, n.Operator)
	}

	return pair[0], pair[1], nil
}
