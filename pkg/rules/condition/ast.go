package condition

import (
	"fmt"
	"strings"
)

// Node is an expression tree node.
type Node interface {
	String() string
}

// Literal is a constant value: float64, string, bool or nil.
type Literal struct {
	Value any
}

func (n *Literal) String() string {
	switch v := n.Value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FieldRef is a dotted reference into the evaluation context, e.g. record.user.dept.
type FieldRef struct {
	Path []string
}

func (n *FieldRef) String() string {
	return strings.Join(n.Path, ".")
}

// ListLiteral is a bracketed list used as the right operand of "in".
type ListLiteral struct {
	Items []Node
}

func (n *ListLiteral) String() string {
	parts := make([]string, len(n.Items))
	for i, item := range n.Items {
		parts[i] = item.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Operator is a binary operator.
type Operator string

const (
	OpAnd Operator = "&&"
	OpOr  Operator = "||"
	OpEq  Operator = "=="
	OpNe  Operator = "!="
	OpLt  Operator = "<"
	OpLe  Operator = "<="
	OpGt  Operator = ">"
	OpGe  Operator = ">="
	OpIn  Operator = "in"
)

// Binary applies Op to Left and Right. && and || short-circuit.
type Binary struct {
	Op    Operator
	Left  Node
	Right Node
}

func (n *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
}

// Not negates the truthiness of its operand.
type Not struct {
	Operand Node
}

func (n *Not) String() string {
	return "!" + n.Operand.String()
}
