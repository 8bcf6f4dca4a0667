// Package operator defines the primitive vocabulary expressions are built
// from: the two reserved free variables, constants, and named unary/binary
// functions, plus the registry that maps display tokens to operators.
package operator

import "strconv"

type Kind int8

const (
	KindTime Kind = iota
	KindPosition
	KindConstant
	KindUnary
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindTime:
		return "time"
	case KindPosition:
		return "position"
	case KindConstant:
		return "constant"
	case KindUnary:
		return "unary"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

type UnaryFunc func(x float64) float64

type BinaryFunc func(x, y float64) float64

// Operator is a tagged variant. Registered operators carry the token they
// were registered under; anonymous constants have an empty Token and are
// rendered by value instead.
type Operator struct {
	Kind   Kind
	Token  string
	Value  float64
	Unary  UnaryFunc
	Binary BinaryFunc
}

// Time returns the reserved time variable.
func Time() Operator {
	return Operator{Kind: KindTime, Token: TokenTime}
}

// Position returns the reserved position variable.
func Position() Operator {
	return Operator{Kind: KindPosition, Token: TokenPosition}
}

// Constant returns an anonymous constant. It is not registered anywhere and
// prints as its decimal value.
func Constant(value float64) Operator {
	return Operator{Kind: KindConstant, Value: value}
}

// Arity reports how many operands the operator consumes: 0 for variables and
// constants, 1 for unary functions, 2 for binary functions.
func (op Operator) Arity() int {
	switch op.Kind {
	case KindUnary:
		return 1
	case KindBinary:
		return 2
	default:
		return 0
	}
}

// Display returns the textual form of the operator: its token when it has
// one, otherwise the shortest round-trip decimal of its constant value.
// Dispatch is on the variant tag; no registry lookup is involved.
func (op Operator) Display() string {
	if op.Kind == KindConstant && op.Token == "" {
		return strconv.FormatFloat(op.Value, 'f', -1, 64)
	}
	return op.Token
}
