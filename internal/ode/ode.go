// Package ode integrates first-order ordinary differential equations of the
// form dx/dt = f(t, x) and scores candidate dynamics against an observed
// trajectory.
//
// The integrator is a classic fourth-order Runge-Kutta scheme with a fixed
// step size. Scoring accumulates, per step, the shoelace area between the
// simulated state and the chord of the two samples bracketing it, so a
// perfect model scores zero and worse models score higher. Non-finite
// positions produced by the system are carried through as values, not
// errors: a NaN score is how a numerically unstable candidate reports
// itself.
package ode

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrBadStep reports a step size that cannot drive time forward.
	ErrBadStep = errors.New("ode: step size must be positive and finite")

	// ErrShortTrajectory reports a trajectory with fewer than two samples,
	// which leaves nothing to score against.
	ErrShortTrajectory = errors.New("ode: trajectory needs at least two samples")
)

// State is a point on a trajectory: the value of the independent variable
// and the position observed or simulated there.
type State struct {
	Time     float64 `json:"time"`
	Position float64 `json:"position"`
}

// System is the right-hand side of dx/dt = f(t, x). Implementations return
// an error only for structural defects; numerical trouble such as division
// by zero is reported through the returned value (Inf or NaN).
type System interface {
	Derivative(time, position float64) (float64, error)
}

// SystemFunc adapts a plain function to the System interface.
type SystemFunc func(time, position float64) (float64, error)

// Derivative calls f.
func (f SystemFunc) Derivative(time, position float64) (float64, error) {
	return f(time, position)
}

func validStep(h float64) error {
	if math.IsNaN(h) || math.IsInf(h, 0) || h <= 0 {
		return fmt.Errorf("%w: %v", ErrBadStep, h)
	}
	return nil
}

// Step advances the state by one fixed-size Runge-Kutta step.
func Step(sys System, s State, h float64) (State, error) {
	if err := validStep(h); err != nil {
		return State{}, err
	}

	k1, err := sys.Derivative(s.Time, s.Position)
	if err != nil {
		return State{}, err
	}
	k2, err := sys.Derivative(s.Time+h/2, s.Position+h*k1/2)
	if err != nil {
		return State{}, err
	}
	k3, err := sys.Derivative(s.Time+h/2, s.Position+h*k2/2)
	if err != nil {
		return State{}, err
	}
	k4, err := sys.Derivative(s.Time+h, s.Position+h*k3)
	if err != nil {
		return State{}, err
	}

	return State{
		Time:     s.Time + h,
		Position: s.Position + h/6*(k1+2*k2+2*k3+k4),
	}, nil
}

// Fitness simulates the system from the trajectory's initial conditions and
// accumulates the area between the simulation and the sampled data. The
// data between consecutive samples is taken to be their linear
// interpolation; each simulated state contributes the shoelace area of the
// triangle it forms with the bracketing samples.
//
// Lower is better. The very first term is always zero because the
// simulation starts exactly on the first sample.
func Fitness(sys System, samples []State, h float64) (float64, error) {
	if len(samples) < 2 {
		return 0, fmt.Errorf("%w: got %d", ErrShortTrajectory, len(samples))
	}
	if err := validStep(h); err != nil {
		return 0, err
	}

	prev, next := samples[0], samples[1]
	rest := samples[2:]
	cur := prev

	var total float64
	for {
		area := math.Abs(
			(cur.Time-next.Time)*(prev.Position-cur.Position)-
				(cur.Time-prev.Time)*(next.Position-cur.Position)) / 2
		total += area

		var err error
		cur, err = Step(sys, cur, h)
		if err != nil {
			return 0, err
		}

		if cur.Time >= next.Time {
			prev = next
			if len(rest) == 0 {
				break
			}
			next, rest = rest[0], rest[1:]
		}
	}
	return total, nil
}

// Simulate integrates the system from an initial state until the simulated
// time reaches until, recording every intermediate state. The first element
// of the result is the initial state itself.
func Simulate(sys System, from State, until, h float64) ([]State, error) {
	if err := validStep(h); err != nil {
		return nil, err
	}

	states := []State{from}
	cur := from
	for cur.Time < until {
		var err error
		cur, err = Step(sys, cur, h)
		if err != nil {
			return nil, err
		}
		states = append(states, cur)
	}
	return states, nil
}
