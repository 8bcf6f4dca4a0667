package evo

import (
	"math"

	"eudoxus/internal/model"
)

// DefaultTopK is how many leading individuals a generation report carries.
const DefaultTopK = 10

// SummarizeGeneration condenses a ranked population into one report. The
// population must be ranked best-first, as returned by Grow and Evolve.
// Candidates whose fitness is NaN count as failed and are excluded from the
// mean and worst aggregates; if every candidate failed, those aggregates are
// NaN as well. topK <= 0 selects DefaultTopK.
func SummarizeGeneration(generation int, ranked []Individual, topK int) model.GenerationReport {
	if len(ranked) == 0 {
		return model.GenerationReport{Generation: generation}
	}

	var (
		total       float64
		scoredCount int
		worst       = math.Inf(-1)
		lengthTotal int
	)
	renderings := make(map[string]struct{}, len(ranked))
	for _, ind := range ranked {
		lengthTotal += len(ind.Expr)
		renderings[ind.Expr.String()] = struct{}{}
		if math.IsNaN(ind.Fitness) {
			continue
		}
		total += ind.Fitness
		scoredCount++
		if ind.Fitness > worst {
			worst = ind.Fitness
		}
	}

	mean := math.NaN()
	if scoredCount > 0 {
		mean = total / float64(scoredCount)
	} else {
		worst = math.NaN()
	}

	return model.GenerationReport{
		Generation:        generation,
		BestFitness:       model.Fitness(ranked[0].Fitness),
		MeanFitness:       model.Fitness(mean),
		WorstFitness:      model.Fitness(worst),
		FailedCount:       len(ranked) - scoredCount,
		UniqueExpressions: len(renderings),
		MeanLength:        float64(lengthTotal) / float64(len(ranked)),
		BestExpression:    ranked[0].Expr.String(),
		Top:               TopExpressions(ranked, topK),
	}
}

// TopExpressions renders the k leading individuals of a ranked population.
// k <= 0 selects DefaultTopK.
func TopExpressions(ranked []Individual, k int) []model.ScoredExpression {
	if k <= 0 {
		k = DefaultTopK
	}
	if k > len(ranked) {
		k = len(ranked)
	}

	top := make([]model.ScoredExpression, 0, k)
	for _, ind := range ranked[:k] {
		top = append(top, model.ScoredExpression{
			Expression: ind.Expr.String(),
			Fitness:    model.Fitness(ind.Fitness),
		})
	}
	return top
}
