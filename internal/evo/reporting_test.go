package evo

import (
	"math"
	"testing"

	"eudoxus/internal/expr"
	"eudoxus/internal/operator"
)

func mustIndividual(t *testing.T, reg *operator.Registry, text string, fitness float64) Individual {
	t.Helper()
	e, err := expr.Parse(reg, text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return Individual{Expr: e, Fitness: fitness}
}

func TestSummarizeGenerationAggregates(t *testing.T) {
	reg := testRegistry(t)
	ranked := []Individual{
		mustIndividual(t, reg, "TIME", 0.5),
		mustIndividual(t, reg, "POS", 2.5),
		mustIndividual(t, reg, "ADD TIME POS", 6),
		mustIndividual(t, reg, "SIN TIME", math.NaN()),
	}

	report := SummarizeGeneration(3, ranked, 2)

	if report.Generation != 3 {
		t.Fatalf("generation = %d, want 3", report.Generation)
	}
	if report.BestFitness != 0.5 {
		t.Fatalf("best fitness = %v, want 0.5", report.BestFitness)
	}
	if report.BestExpression != "TIME" {
		t.Fatalf("best expression = %q, want TIME", report.BestExpression)
	}
	if report.MeanFitness != 3 {
		t.Fatalf("mean fitness = %v, want 3", report.MeanFitness)
	}
	if report.WorstFitness != 6 {
		t.Fatalf("worst fitness = %v, want 6", report.WorstFitness)
	}
	if report.FailedCount != 1 {
		t.Fatalf("failed count = %d, want 1", report.FailedCount)
	}
	if report.UniqueExpressions != 4 {
		t.Fatalf("unique expressions = %d, want 4", report.UniqueExpressions)
	}
	if report.MeanLength != 1.75 {
		t.Fatalf("mean length = %v, want 1.75", report.MeanLength)
	}
	if len(report.Top) != 2 || report.Top[0].Expression != "TIME" || report.Top[1].Expression != "POS" {
		t.Fatalf("unexpected top list: %+v", report.Top)
	}
}

func TestSummarizeGenerationCountsDuplicateRenderings(t *testing.T) {
	reg := testRegistry(t)
	ranked := []Individual{
		mustIndividual(t, reg, "TIME", 1),
		mustIndividual(t, reg, "TIME", 1),
		mustIndividual(t, reg, "POS", 2),
	}

	report := SummarizeGeneration(1, ranked, 0)
	if report.UniqueExpressions != 2 {
		t.Fatalf("unique expressions = %d, want 2", report.UniqueExpressions)
	}
}

func TestSummarizeGenerationAllFailed(t *testing.T) {
	reg := testRegistry(t)
	ranked := []Individual{
		mustIndividual(t, reg, "TIME", math.NaN()),
		mustIndividual(t, reg, "POS", math.NaN()),
	}

	report := SummarizeGeneration(7, ranked, 0)

	if !math.IsNaN(float64(report.BestFitness)) {
		t.Fatalf("best fitness = %v, want NaN", report.BestFitness)
	}
	if !math.IsNaN(float64(report.MeanFitness)) || !math.IsNaN(float64(report.WorstFitness)) {
		t.Fatalf("mean/worst = %v/%v, want NaN/NaN", report.MeanFitness, report.WorstFitness)
	}
	if report.FailedCount != 2 {
		t.Fatalf("failed count = %d, want 2", report.FailedCount)
	}
}

func TestSummarizeGenerationEmpty(t *testing.T) {
	report := SummarizeGeneration(5, nil, 0)
	if report.Generation != 5 {
		t.Fatalf("generation = %d, want 5", report.Generation)
	}
	if report.BestExpression != "" || report.Top != nil || report.FailedCount != 0 {
		t.Fatalf("empty population produced non-zero report: %+v", report)
	}
}

func TestTopExpressionsDefaultsAndCaps(t *testing.T) {
	reg := testRegistry(t)
	ranked := []Individual{
		mustIndividual(t, reg, "TIME", 1),
		mustIndividual(t, reg, "POS", 2),
		mustIndividual(t, reg, "SIN TIME", 3),
	}

	top := TopExpressions(ranked, 0)
	if len(top) != 3 {
		t.Fatalf("default top selected %d entries, want all 3", len(top))
	}

	top = TopExpressions(ranked, 2)
	if len(top) != 2 || top[0].Expression != "TIME" || top[1].Expression != "POS" {
		t.Fatalf("unexpected top-2: %+v", top)
	}
	if top[1].Fitness != 2 {
		t.Fatalf("top-2 fitness = %v, want 2", top[1].Fitness)
	}
}
