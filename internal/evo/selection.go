package evo

import (
	"fmt"
	"math/rand"
)

// DefaultSelectionRate is the rate of the exponential fitness sampler.
const DefaultSelectionRate = 0.1

// Selector chooses parents from a population ranked best-first.
type Selector interface {
	Name() string
	Pick(rng *rand.Rand, ranked []Individual) (Individual, error)
}

// ExponentialSelector samples a target fitness from an exponential
// distribution anchored at the best fitness and picks the first individual
// at or above it. Most draws land near the front of the ranking, but every
// individual keeps a shot at parenthood.
type ExponentialSelector struct {
	// Rate of the exponential distribution. Defaults to
	// DefaultSelectionRate; smaller rates spread selection further down
	// the ranking.
	Rate float64
}

func (ExponentialSelector) Name() string {
	return "exponential"
}

func (s ExponentialSelector) Pick(rng *rand.Rand, ranked []Individual) (Individual, error) {
	if rng == nil {
		return Individual{}, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return Individual{}, fmt.Errorf("ranked population is empty")
	}

	rate := s.Rate
	if rate <= 0 {
		rate = DefaultSelectionRate
	}

	target := ranked[0].Fitness + rng.ExpFloat64()/rate
	for _, ind := range ranked {
		if ind.Fitness >= target {
			return ind, nil
		}
	}
	// Every fitness sits below the target (or the population is all NaN):
	// fall back to the best individual.
	return ranked[0], nil
}

// TournamentSelector samples candidates uniformly and keeps the best. Not
// part of the default pipeline but selectable by name.
type TournamentSelector struct {
	// TournamentSize is the number of candidates drawn. Defaults to 3.
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) Pick(rng *rand.Rand, ranked []Individual) (Individual, error) {
	if rng == nil {
		return Individual{}, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return Individual{}, fmt.Errorf("ranked population is empty")
	}

	size := s.TournamentSize
	if size <= 0 {
		size = 3
	}

	best := ranked[rng.Intn(len(ranked))]
	for i := 1; i < size; i++ {
		candidate := ranked[rng.Intn(len(ranked))]
		if less(candidate.Fitness, best.Fitness) {
			best = candidate
		}
	}
	return best, nil
}
