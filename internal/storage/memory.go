package storage

import (
	"context"
	"sync"

	"eudoxus/internal/model"
)

type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]model.RunRecord
	history map[string][]model.Fitness
	reports map[string][]model.GenerationReport
	top     map[string][]model.ScoredExpression
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.reset()
	return s
}

func (s *MemoryStore) reset() {
	s.runs = make(map[string]model.RunRecord)
	s.history = make(map[string][]model.Fitness)
	s.reports = make(map[string][]model.GenerationReport)
	s.top = make(map[string][]model.ScoredExpression)
}

// Init clears the store. A fresh MemoryStore is already usable; Init exists
// to satisfy the Store contract and to reset state between runs in tests.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	delete(s.history, id)
	delete(s.reports, id)
	delete(s.top, id)
	return nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []model.Fitness) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[runID] = append([]model.Fitness(nil), history...)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]model.Fitness, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.Fitness(nil), history...), true, nil
}

func (s *MemoryStore) SaveReports(_ context.Context, runID string, reports []model.GenerationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.GenerationReport, len(reports))
	copy(copied, reports)
	s.reports[runID] = copied
	return nil
}

func (s *MemoryStore) GetReports(_ context.Context, runID string) ([]model.GenerationReport, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports, ok := s.reports[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationReport, len(reports))
	copy(copied, reports)
	return copied, true, nil
}

func (s *MemoryStore) SaveTopExpressions(_ context.Context, runID string, top []model.ScoredExpression) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.ScoredExpression, len(top))
	copy(copied, top)
	s.top[runID] = copied
	return nil
}

func (s *MemoryStore) GetTopExpressions(_ context.Context, runID string) ([]model.ScoredExpression, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	top, ok := s.top[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.ScoredExpression, len(top))
	copy(copied, top)
	return copied, true, nil
}
