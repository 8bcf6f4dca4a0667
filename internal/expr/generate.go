package expr

import (
	"math/rand"

	"eudoxus/internal/operator"
)

const (
	// DefaultMaxLen bounds generated expressions. The arity-balancing loop
	// otherwise has no cap, and a pathological run of binary draws can grow
	// an expression arbitrarily before it balances.
	DefaultMaxLen = 128

	// DefaultConstRange is the half-width of the symmetric interval
	// anonymous constants are drawn from.
	DefaultConstRange = 100.0
)

// GenConfig tunes random expression generation. The zero value selects the
// defaults.
type GenConfig struct {
	// MaxLen caps the token count of a generated expression.
	MaxLen int

	// ConstRange draws anonymous constants uniformly from
	// [-ConstRange, +ConstRange].
	ConstRange float64
}

func (c GenConfig) withDefaults() GenConfig {
	if c.MaxLen <= 0 {
		c.MaxLen = DefaultMaxLen
	}
	if c.ConstRange <= 0 {
		c.ConstRange = DefaultConstRange
	}
	return c
}

// Generate produces a random well-formed expression. Each draw picks a
// category from a fixed 5-way split: time, position, anonymous constant, or
// (twice-weighted) a uniform draw from the registry. The pending-arity
// counter drives termination: the expression ends exactly when it balances.
//
// Once a free draw could push the expression past cfg.MaxLen, draws restrict
// to the terminal categories so the counter strictly descends; the result
// never exceeds MaxLen tokens. The 5-way weighting is policy, not invariant.
func Generate(rng *rand.Rand, reg *operator.Registry, cfg GenConfig) Expression {
	cfg = cfg.withDefaults()

	ops := make(Expression, 0, 16)
	pending := 1
	for {
		var op operator.Operator
		if len(ops)+pending+1 < cfg.MaxLen {
			switch rng.Intn(5) {
			case 0:
				op = operator.Time()
			case 1:
				op = operator.Position()
			case 2:
				op = operator.Constant(drawConstant(rng, cfg.ConstRange))
			default:
				op = reg.Random(rng)
			}
		} else {
			switch rng.Intn(3) {
			case 0:
				op = operator.Time()
			case 1:
				op = operator.Position()
			default:
				op = operator.Constant(drawConstant(rng, cfg.ConstRange))
			}
		}

		ops = append(ops, op)
		pending += op.Arity() - 1
		if pending == 0 {
			return ops
		}
	}
}

func drawConstant(rng *rand.Rand, constRange float64) float64 {
	return -constRange + 2*constRange*rng.Float64()
}
