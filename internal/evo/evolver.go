// Package evo runs genetic search over prefix expressions: growing random
// populations, scoring them against a trajectory, and breeding ranked
// generations through crossover and mutation.
package evo

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"eudoxus/internal/expr"
	"eudoxus/internal/operator"
)

// Individual pairs a candidate expression with its score. Lower fitness is
// better; NaN means the candidate blew up numerically and ranks last.
type Individual struct {
	Expr    expr.Expression
	Fitness float64
}

// Config carries the knobs for an evolution run.
type Config struct {
	Registry *operator.Registry
	Scorer   Scorer

	// Selector picks parents from a ranked population. Defaults to
	// ExponentialSelector.
	Selector Selector

	PopulationSize int

	// EliteCount individuals are carried into the next generation
	// unchanged and unscored. Zero means a tenth of the population.
	EliteCount int

	// Gen bounds the shape of randomly generated expressions.
	Gen expr.GenConfig

	// Workers bounds scoring concurrency. Zero means one.
	Workers int

	Seed int64
}

// Evolver drives populations through scored generations. All randomness
// flows through a single seeded source, so runs with equal configs produce
// equal populations.
type Evolver struct {
	cfg Config
	rng *rand.Rand
}

// NewEvolver validates the config and prepares an evolver.
func NewEvolver(cfg Config) (*Evolver, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("operator registry is required")
	}
	if cfg.Scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.EliteCount < 0 || cfg.EliteCount > cfg.PopulationSize {
		return nil, fmt.Errorf("elite count must be in [0, population size]")
	}
	if cfg.EliteCount == 0 {
		cfg.EliteCount = cfg.PopulationSize / 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Selector == nil {
		cfg.Selector = ExponentialSelector{}
	}

	return &Evolver{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Grow generates and scores a fresh random population, returned ranked
// best-first.
func (e *Evolver) Grow(ctx context.Context) ([]Individual, error) {
	exprs := make([]expr.Expression, e.cfg.PopulationSize)
	for i := range exprs {
		exprs[i] = expr.Generate(e.rng, e.cfg.Registry, e.cfg.Gen)
	}

	population, err := e.scoreAll(ctx, exprs)
	if err != nil {
		return nil, err
	}
	rank(population)
	return population, nil
}

// Evolve breeds one generation. The input population is left untouched; the
// returned population is the same size, ranked best-first, and consists of
// the elites carried over verbatim plus freshly scored offspring. Each
// offspring is the mutation of a crossover between two sampled parents.
func (e *Evolver) Evolve(ctx context.Context, population []Individual) ([]Individual, error) {
	if len(population) == 0 {
		return nil, fmt.Errorf("population is empty")
	}

	ranked := make([]Individual, len(population))
	copy(ranked, population)
	rank(ranked)

	eliteCount := e.cfg.EliteCount
	if eliteCount > len(ranked) {
		eliteCount = len(ranked)
	}

	next := make([]Individual, 0, len(ranked))
	for i := 0; i < eliteCount; i++ {
		next = append(next, Individual{
			Expr:    ranked[i].Expr.Clone(),
			Fitness: ranked[i].Fitness,
		})
	}

	offspring := make([]expr.Expression, 0, len(ranked)-eliteCount)
	for len(offspring) < len(ranked)-eliteCount {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p1, err := e.cfg.Selector.Pick(e.rng, ranked)
		if err != nil {
			return nil, err
		}
		p2, err := e.cfg.Selector.Pick(e.rng, ranked)
		if err != nil {
			return nil, err
		}
		child := p1.Expr.Crossover(e.rng, p2.Expr).Mutate(e.rng)
		offspring = append(offspring, child)
	}

	scored, err := e.scoreAll(ctx, offspring)
	if err != nil {
		return nil, err
	}
	next = append(next, scored...)
	rank(next)
	return next, nil
}

// Best returns the best-ranked individual of a population.
func Best(population []Individual) (Individual, error) {
	if len(population) == 0 {
		return Individual{}, fmt.Errorf("population is empty")
	}
	best := population[0]
	for _, ind := range population[1:] {
		if less(ind.Fitness, best.Fitness) {
			best = ind
		}
	}
	return best, nil
}

func (e *Evolver) scoreAll(ctx context.Context, exprs []expr.Expression) ([]Individual, error) {
	type job struct {
		idx  int
		expr expr.Expression
	}
	type result struct {
		idx     int
		fitness float64
		err     error
	}

	jobs := make(chan job)
	results := make(chan result, len(exprs))

	workerCount := e.cfg.Workers
	if workerCount > len(exprs) {
		workerCount = len(exprs)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				fitness, err := e.cfg.Scorer.Score(j.expr)
				results <- result{idx: j.idx, fitness: fitness, err: err}
			}
		}()
	}

	for i := range exprs {
		jobs <- job{idx: i, expr: exprs[i]}
	}
	close(jobs)

	wg.Wait()
	close(results)

	population := make([]Individual, len(exprs))
	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		population[res.idx] = Individual{Expr: exprs[res.idx], Fitness: res.fitness}
	}
	return population, nil
}

// rank sorts ascending by fitness with NaN last. The sort is stable so
// equal-fitness individuals keep their relative order.
func rank(population []Individual) {
	sort.SliceStable(population, func(i, j int) bool {
		return less(population[i].Fitness, population[j].Fitness)
	})
}

// less orders fitness values ascending with NaN after every real number.
func less(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}
