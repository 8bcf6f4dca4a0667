// Package expr implements prefix-notation expressions over the operator
// vocabulary: random generation, stack evaluation, the structural genetic
// operators, and the textual form used for reporting and parsing.
//
// Every Expression handed out by this package is well-formed: a left-to-right
// walk with a pending-arity counter (starting at 1; terminals subtract 1,
// unary operators leave it unchanged, binary operators add 1) reaches zero
// exactly at the last token. Expressions are immutable after construction;
// every operation returns a fresh token slice.
package expr

import (
	"errors"
	"fmt"
	"strings"

	"eudoxus/internal/operator"
)

var (
	// ErrMalformed marks an evaluation defect: the operand stack did not
	// reduce to exactly one value. It is unreachable for expressions built
	// by this package and indicates a bug, not a runtime condition.
	ErrMalformed = errors.New("malformed expression")

	// ErrUnbalanced rejects externally supplied token sequences that fail
	// the well-formedness walk.
	ErrUnbalanced = errors.New("expression is not well-formed")
)

// Expression is an ordered operator sequence in prefix (Polish) notation.
type Expression []operator.Operator

// WellFormed reports whether the pending-arity walk reaches zero exactly at
// the last token and at no earlier token.
func (e Expression) WellFormed() bool {
	pending := 1
	for i, op := range e {
		pending += op.Arity() - 1
		if pending == 0 {
			return i == len(e)-1
		}
	}
	return false
}

// Clone returns an independent copy of the expression.
func (e Expression) Clone() Expression {
	out := make(Expression, len(e))
	copy(out, e)
	return out
}

// Eval reduces the expression to a scalar with the free variables bound to
// time and position. Tokens are processed in reverse order against an
// explicit value stack; a binary operator pops its first argument before its
// second, so prefix [OP, A, B] computes OP(A, B).
//
// An ErrMalformed return means the expression violated well-formedness,
// which cannot happen for expressions produced by Generate, Subexpr,
// Crossover, or Mutate. Numerical trouble (division by zero, sqrt of a
// negative) is not an error: NaN and Inf propagate into the result.
func (e Expression) Eval(time, position float64) (float64, error) {
	if len(e) == 0 {
		return 0, fmt.Errorf("%w: empty expression", ErrMalformed)
	}

	stack := make([]float64, 0, len(e))
	for i := len(e) - 1; i >= 0; i-- {
		op := e[i]
		switch op.Kind {
		case operator.KindTime:
			stack = append(stack, time)
		case operator.KindPosition:
			stack = append(stack, position)
		case operator.KindConstant:
			stack = append(stack, op.Value)
		case operator.KindUnary:
			if len(stack) < 1 {
				return 0, fmt.Errorf("%w: stack underflow at %s", ErrMalformed, op.Display())
			}
			stack[len(stack)-1] = op.Unary(stack[len(stack)-1])
		case operator.KindBinary:
			if len(stack) < 2 {
				return 0, fmt.Errorf("%w: stack underflow at %s", ErrMalformed, op.Display())
			}
			arg1 := stack[len(stack)-1]
			arg2 := stack[len(stack)-2]
			stack = stack[:len(stack)-1]
			stack[len(stack)-1] = op.Binary(arg1, arg2)
		default:
			return 0, fmt.Errorf("%w: unknown operator kind %d", ErrMalformed, op.Kind)
		}
	}

	if len(stack) != 1 {
		return 0, fmt.Errorf("%w: %d operands remain after evaluation", ErrMalformed, len(stack))
	}
	return stack[0], nil
}

// String renders the expression as space-separated tokens, substituting each
// anonymous constant with its shortest round-trip decimal. The form parses
// back via Parse against the registry the named operators came from.
func (e Expression) String() string {
	var b strings.Builder
	for i, op := range e {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(op.Display())
	}
	return b.String()
}
