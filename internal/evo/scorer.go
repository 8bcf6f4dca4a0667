package evo

import (
	"fmt"
	"math"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"eudoxus/internal/dataset"
	"eudoxus/internal/expr"
	"eudoxus/internal/ode"
)

// DefaultCacheSize bounds the score cache when no size is given.
const DefaultCacheSize = 4096

// Scorer assigns a fitness to a candidate expression. Implementations must
// be safe for concurrent use; scoring runs on a worker pool.
type Scorer interface {
	Score(e expr.Expression) (float64, error)
}

// TrajectoryScorer scores a candidate by simulating dx/dt = candidate(t, x)
// from the trajectory's initial conditions and integrating the area between
// the simulation and the data.
type TrajectoryScorer struct {
	samples []ode.State
	step    float64
}

// NewTrajectoryScorer builds a scorer over a dataset with a fixed
// integration step.
func NewTrajectoryScorer(d dataset.Dataset, step float64) (*TrajectoryScorer, error) {
	if len(d.Samples) < 2 {
		return nil, fmt.Errorf("%w: got %d", ode.ErrShortTrajectory, len(d.Samples))
	}
	if math.IsNaN(step) || math.IsInf(step, 0) || step <= 0 {
		return nil, fmt.Errorf("%w: %v", ode.ErrBadStep, step)
	}

	samples := make([]ode.State, len(d.Samples))
	copy(samples, d.Samples)
	return &TrajectoryScorer{samples: samples, step: step}, nil
}

func (s *TrajectoryScorer) Score(e expr.Expression) (float64, error) {
	return ode.Fitness(ode.SystemFunc(e.Eval), s.samples, s.step)
}

// CachedScorer memoizes an inner scorer keyed by the canonical rendering of
// the expression. Crossover resubmits identical candidates constantly, so
// the cache pays for itself within a few generations.
type CachedScorer struct {
	inner  Scorer
	cache  *lru.Cache[string, float64]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedScorer wraps a scorer with an LRU memo of the given size. A
// non-positive size falls back to DefaultCacheSize.
func NewCachedScorer(inner Scorer, size int) (*CachedScorer, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner scorer is required")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, float64](size)
	if err != nil {
		return nil, fmt.Errorf("build score cache: %w", err)
	}
	return &CachedScorer{inner: inner, cache: cache}, nil
}

func (s *CachedScorer) Score(e expr.Expression) (float64, error) {
	key := e.String()
	if fitness, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		return fitness, nil
	}

	fitness, err := s.inner.Score(e)
	if err != nil {
		return 0, err
	}
	s.cache.Add(key, fitness)
	s.misses.Add(1)
	return fitness, nil
}

// Stats reports cache hits and misses since construction.
func (s *CachedScorer) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}
