package dataset

import (
	"context"
	"fmt"
	"math"

	"github.com/PaesslerAG/gval"

	"eudoxus/internal/ode"
)

// synthLang evaluates closed-form formulas of t during synthesis. It is the
// full gval arithmetic language extended with the usual analytic functions.
var synthLang = gval.Full(
	gval.Function("cos", math.Cos),
	gval.Function("sin", math.Sin),
	gval.Function("tan", math.Tan),
	gval.Function("sqrt", math.Sqrt),
	gval.Function("exp", math.Exp),
	gval.Function("log", math.Log),
	gval.Function("abs", math.Abs),
	gval.Function("pow", math.Pow),
	gval.Constant("pi", math.Pi),
	gval.Constant("e", math.E),
)

// Synthesize samples a closed-form trajectory x(t) given as a formula of t,
// for example "-cos(t)" or "0.5*t*t + 1". Samples run from t=from through
// t=to in increments of step.
func Synthesize(label, formula string, from, to, step float64) (Dataset, error) {
	if !finite(step) || step <= 0 || !finite(from) || !finite(to) || to <= from {
		return Dataset{}, fmt.Errorf("%w: [%v, %v] by %v", ErrBadSpan, from, to, step)
	}

	eval, err := synthLang.NewEvaluable(formula)
	if err != nil {
		return Dataset{}, fmt.Errorf("dataset: parse formula %q: %w", formula, err)
	}

	n := int((to-from)/step + 1e-9)
	samples := make([]ode.State, 0, n+1)
	for i := 0; i <= n; i++ {
		t := from + float64(i)*step
		x, err := eval.EvalFloat64(context.Background(), map[string]interface{}{"t": t})
		if err != nil {
			return Dataset{}, fmt.Errorf("dataset: evaluate %q at t=%v: %w", formula, t, err)
		}
		samples = append(samples, ode.State{Time: t, Position: x})
	}
	return New(label, samples)
}
