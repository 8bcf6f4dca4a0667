package storage

import (
	"context"

	"eudoxus/internal/model"
)

// Store defines persistence operations for evolution runs and their
// run-scoped artifacts.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []model.Fitness) error
	GetFitnessHistory(ctx context.Context, runID string) ([]model.Fitness, bool, error)
	SaveReports(ctx context.Context, runID string, reports []model.GenerationReport) error
	GetReports(ctx context.Context, runID string) ([]model.GenerationReport, bool, error)
	SaveTopExpressions(ctx context.Context, runID string, top []model.ScoredExpression) error
	GetTopExpressions(ctx context.Context, runID string) ([]model.ScoredExpression, bool, error)
}
