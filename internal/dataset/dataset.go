// Package dataset loads, synthesizes, and persists the sampled trajectories
// that candidate dynamics are scored against.
package dataset

import (
	"errors"
	"fmt"
	"math"

	"eudoxus/internal/ode"
)

var (
	// ErrTooFewSamples reports a trajectory too short to score against.
	ErrTooFewSamples = errors.New("dataset: need at least two samples")

	// ErrUnorderedSamples reports sample times that do not strictly increase.
	ErrUnorderedSamples = errors.New("dataset: sample times must strictly increase")

	// ErrBadSample reports a non-finite time or position.
	ErrBadSample = errors.New("dataset: sample values must be finite")

	// ErrBadSpan reports a synthesis range that cannot produce samples.
	ErrBadSpan = errors.New("dataset: span must advance in positive finite steps")
)

// Dataset is a labeled observed trajectory.
type Dataset struct {
	Label   string      `json:"label"`
	Samples []ode.State `json:"samples"`
}

// New validates a trajectory and wraps it in a Dataset. Times must be
// strictly increasing and every value finite.
func New(label string, samples []ode.State) (Dataset, error) {
	if len(samples) < 2 {
		return Dataset{}, fmt.Errorf("%w: got %d", ErrTooFewSamples, len(samples))
	}
	for i, s := range samples {
		if !finite(s.Time) || !finite(s.Position) {
			return Dataset{}, fmt.Errorf("%w: sample %d is (%v, %v)", ErrBadSample, i, s.Time, s.Position)
		}
		if i > 0 && s.Time <= samples[i-1].Time {
			return Dataset{}, fmt.Errorf("%w: sample %d at t=%v after t=%v", ErrUnorderedSamples, i, s.Time, samples[i-1].Time)
		}
	}

	out := make([]ode.State, len(samples))
	copy(out, samples)
	return Dataset{Label: label, Samples: out}, nil
}

// Start returns the initial conditions of the trajectory.
func (d Dataset) Start() ode.State {
	return d.Samples[0]
}

// End returns the final sample time.
func (d Dataset) End() float64 {
	return d.Samples[len(d.Samples)-1].Time
}

// Demo returns the built-in x(t) = -cos(t) trajectory sampled at integer
// times from 0 through 10. Its governing equation is dx/dt = sin(t), which
// makes it a convenient smoke target.
func Demo() Dataset {
	samples := make([]ode.State, 0, 11)
	for i := 0; i <= 10; i++ {
		t := float64(i)
		samples = append(samples, ode.State{Time: t, Position: -math.Cos(t)})
	}
	return Dataset{Label: "neg-cosine", Samples: samples}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
