package expr

import (
	"math/rand"

	"eudoxus/internal/operator"
)

// SpanFrom returns the inclusive end index of the minimal well-formed
// subexpression starting at start. It runs the pending-arity walk from the
// start slot; the walk balances within len(e)-start steps because every tail
// of a well-formed expression is a stack of well-formed subexpressions.
// Precondition: 0 <= start < len(e).
func (e Expression) SpanFrom(start int) int {
	pending := 1
	for i := start; i < len(e); i++ {
		pending += e[i].Arity() - 1
		if pending == 0 {
			return i
		}
	}
	// Unreachable for well-formed expressions; clamp rather than overrun.
	return len(e) - 1
}

// Subexpr copies the span starting at a uniformly random slot into a
// standalone expression. The result is well-formed by construction.
// Precondition: the expression is non-empty.
func (e Expression) Subexpr(rng *rand.Rand) Expression {
	start := rng.Intn(len(e))
	end := e.SpanFrom(start)
	out := make(Expression, end-start+1)
	copy(out, e[start:end+1])
	return out
}

// Crossover replaces a random well-formed span of e with a random well-formed
// span of other. Both fragments are arity-balanced, so the splice cannot
// unbalance the surrounding context. The self span is drawn first, then the
// donor span.
func (e Expression) Crossover(rng *rand.Rand, other Expression) Expression {
	start := rng.Intn(len(e))
	end := e.SpanFrom(start)
	return e.splice(start, end, other.Subexpr(rng))
}

// Mutate replaces a random subtree with a bare variable reference: a
// crossover against a singleton holding a uniformly chosen free variable.
func (e Expression) Mutate(rng *rand.Rand) Expression {
	v := operator.Time()
	if rng.Intn(2) == 1 {
		v = operator.Position()
	}
	return e.Crossover(rng, Expression{v})
}

// splice builds a new expression from e with the inclusive span
// [start, end] replaced by donor.
func (e Expression) splice(start, end int, donor Expression) Expression {
	out := make(Expression, 0, start+len(donor)+len(e)-end-1)
	out = append(out, e[:start]...)
	out = append(out, donor...)
	out = append(out, e[end+1:]...)
	return out
}
