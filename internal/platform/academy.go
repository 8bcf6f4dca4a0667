// Package platform wires datasets, the evolver, and the store into whole
// evolution runs.
package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"eudoxus/internal/dataset"
	"eudoxus/internal/evo"
	"eudoxus/internal/expr"
	"eudoxus/internal/model"
	"eudoxus/internal/operator"
	"eudoxus/internal/storage"
)

// DefaultStep is the integration step used when a run does not name one.
const DefaultStep = 0.1

type Config struct {
	Store storage.Store

	// Logger receives run progress. Nil discards everything.
	Logger *slog.Logger

	// Datasets are registered when the academy initializes.
	Datasets []dataset.Dataset
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

// EvolutionConfig describes one run. Zero values select defaults where a
// default exists; DatasetLabel, Registry, PopulationSize and Generations are
// required.
type EvolutionConfig struct {
	RunID        string
	Label        string
	DatasetLabel string
	Registry     *operator.Registry

	PopulationSize int
	Generations    int

	// EliteCount individuals survive each generation unchanged. Zero means
	// a tenth of the population.
	EliteCount int

	MaxLen     int
	ConstRange float64

	// Step is the integration step candidates are simulated with.
	Step float64

	Selector  evo.Selector
	Workers   int
	Seed      int64
	CacheSize int

	// TopK bounds the per-generation leader list in reports.
	TopK int
}

// EvolutionResult is everything a finished run produced, already persisted
// to the store under Record.ID.
type EvolutionResult struct {
	Record           model.RunRecord
	BestByGeneration []model.Fitness
	Reports          []model.GenerationReport
	Top              []model.ScoredExpression
}

// Academy owns the registered datasets and drives evolution runs against
// them, persisting each run's record, history, reports and top expressions.
type Academy struct {
	store  storage.Store
	logger *slog.Logger

	mu             sync.RWMutex
	datasets       map[string]dataset.Dataset
	runs           map[string]context.CancelFunc
	started        bool
	lastStopReason StopReason

	config Config
}

var (
	defaultAcademyMu sync.Mutex
	defaultAcademy   *Academy
)

func NewAcademy(cfg Config) *Academy {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Academy{
		store:          cfg.Store,
		logger:         logger,
		datasets:       make(map[string]dataset.Dataset),
		runs:           make(map[string]context.CancelFunc),
		config:         cfg,
		lastStopReason: StopReasonNormal,
	}
}

// StartDefault initializes the process-wide academy, reusing a live one.
func StartDefault(ctx context.Context, cfg Config) (*Academy, error) {
	defaultAcademyMu.Lock()
	defer defaultAcademyMu.Unlock()

	if defaultAcademy != nil && defaultAcademy.Started() {
		return defaultAcademy, nil
	}

	a := NewAcademy(cfg)
	if err := a.Init(ctx); err != nil {
		return nil, err
	}
	defaultAcademy = a
	return defaultAcademy, nil
}

func Default() (*Academy, bool) {
	defaultAcademyMu.Lock()
	a := defaultAcademy
	defaultAcademyMu.Unlock()

	if a == nil || !a.Started() {
		return nil, false
	}
	return a, true
}

func StopDefault(reason StopReason) error {
	defaultAcademyMu.Lock()
	a := defaultAcademy
	defaultAcademyMu.Unlock()
	if a == nil {
		return nil
	}
	if err := a.StopWithReason(reason); err != nil {
		return err
	}
	defaultAcademyMu.Lock()
	if defaultAcademy == a {
		defaultAcademy = nil
	}
	defaultAcademyMu.Unlock()
	return nil
}

func (a *Academy) Init(ctx context.Context) error {
	if a.store == nil {
		return fmt.Errorf("store is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	if err := a.store.Init(ctx); err != nil {
		return err
	}

	for i, d := range a.config.Datasets {
		if d.Label == "" {
			a.datasets = make(map[string]dataset.Dataset)
			return fmt.Errorf("dataset label is required at index %d", i)
		}
		if _, exists := a.datasets[d.Label]; exists {
			a.datasets = make(map[string]dataset.Dataset)
			return fmt.Errorf("duplicate dataset: %s", d.Label)
		}
		a.datasets[d.Label] = d
	}

	a.started = true
	return nil
}

// Reset stops the academy and initializes it again. The memory store comes
// back empty; file-backed stores keep their contents.
func (a *Academy) Reset(ctx context.Context) error {
	_ = a.StopWithReason(StopReasonShutdown)
	return a.Init(ctx)
}

func (a *Academy) RegisterDataset(d dataset.Dataset) error {
	if d.Label == "" {
		return fmt.Errorf("dataset label is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return fmt.Errorf("academy is not initialized")
	}
	a.datasets[d.Label] = d
	return nil
}

func (a *Academy) GetDataset(label string) (dataset.Dataset, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	d, ok := a.datasets[label]
	return d, ok
}

func (a *Academy) Stop() {
	_ = a.StopWithReason(StopReasonNormal)
}

func (a *Academy) Shutdown() {
	_ = a.StopWithReason(StopReasonShutdown)
}

// StopWithReason cancels every active run and forgets the registered
// datasets. The store is left untouched.
func (a *Academy) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	if !isValidStopReason(reason) {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, cancel := range a.runs {
		cancel()
	}

	a.started = false
	a.lastStopReason = reason
	a.datasets = make(map[string]dataset.Dataset)
	a.runs = make(map[string]context.CancelFunc)
	return nil
}

// RunEvolution executes one run to completion: grow a random population,
// evolve it for the configured number of generations, and persist the
// outcome. The run can be canceled through ctx or StopRun.
func (a *Academy) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.DatasetLabel == "" {
		return EvolutionResult{}, fmt.Errorf("dataset label is required")
	}
	if cfg.Registry == nil {
		return EvolutionResult{}, fmt.Errorf("operator registry is required")
	}
	if cfg.PopulationSize <= 0 {
		return EvolutionResult{}, fmt.Errorf("population size must be > 0")
	}
	if cfg.Generations <= 0 {
		return EvolutionResult{}, fmt.Errorf("generations must be > 0")
	}
	if cfg.EliteCount <= 0 {
		cfg.EliteCount = cfg.PopulationSize / 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = expr.DefaultMaxLen
	}
	if cfg.ConstRange <= 0 {
		cfg.ConstRange = expr.DefaultConstRange
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultStep
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = evo.DefaultCacheSize
	}
	if cfg.TopK <= 0 {
		cfg.TopK = evo.DefaultTopK
	}
	if cfg.Selector == nil {
		cfg.Selector = evo.ExponentialSelector{}
	}

	a.mu.RLock()
	d, ok := a.datasets[cfg.DatasetLabel]
	started := a.started
	a.mu.RUnlock()

	if !started {
		return EvolutionResult{}, fmt.Errorf("academy is not initialized")
	}
	if !ok {
		return EvolutionResult{}, fmt.Errorf("dataset not registered: %s", cfg.DatasetLabel)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = fmt.Sprintf("run:%s:%d", cfg.DatasetLabel, cfg.Seed)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := a.registerRun(runID, cancel); err != nil {
		return EvolutionResult{}, err
	}
	defer a.unregisterRun(runID)

	trajectory, err := evo.NewTrajectoryScorer(d, cfg.Step)
	if err != nil {
		return EvolutionResult{}, err
	}
	scorer, err := evo.NewCachedScorer(trajectory, cfg.CacheSize)
	if err != nil {
		return EvolutionResult{}, err
	}
	evolver, err := evo.NewEvolver(evo.Config{
		Registry:       cfg.Registry,
		Scorer:         scorer,
		Selector:       cfg.Selector,
		PopulationSize: cfg.PopulationSize,
		EliteCount:     cfg.EliteCount,
		Gen: expr.GenConfig{
			MaxLen:     cfg.MaxLen,
			ConstRange: cfg.ConstRange,
		},
		Workers: cfg.Workers,
		Seed:    cfg.Seed,
	})
	if err != nil {
		return EvolutionResult{}, err
	}

	logger := a.logger.With("run_id", runID, "dataset", cfg.DatasetLabel)
	logger.Info("run started",
		"population_size", cfg.PopulationSize,
		"generations", cfg.Generations,
		"seed", cfg.Seed,
		"selection", cfg.Selector.Name())

	population, err := evolver.Grow(runCtx)
	if err != nil {
		return EvolutionResult{}, err
	}

	// Generation 0 is the random population itself; it anchors the series so
	// a run's improvement is measured against the random-search baseline.
	reports := make([]model.GenerationReport, 0, cfg.Generations+1)
	history := make([]model.Fitness, 0, cfg.Generations+1)
	report := evo.SummarizeGeneration(0, population, cfg.TopK)
	reports = append(reports, report)
	history = append(history, report.BestFitness)
	logger.Info("population grown",
		"best", float64(report.BestFitness),
		"unique_expressions", report.UniqueExpressions)

	for generation := 1; generation <= cfg.Generations; generation++ {
		if err := runCtx.Err(); err != nil {
			return EvolutionResult{}, err
		}
		population, err = evolver.Evolve(runCtx, population)
		if err != nil {
			return EvolutionResult{}, err
		}
		report = evo.SummarizeGeneration(generation, population, cfg.TopK)
		reports = append(reports, report)
		history = append(history, report.BestFitness)
		logger.Info("generation complete",
			"generation", generation,
			"best", float64(report.BestFitness),
			"mean", float64(report.MeanFitness),
			"failed", report.FailedCount)
	}

	best, err := evo.Best(population)
	if err != nil {
		return EvolutionResult{}, err
	}
	top := evo.TopExpressions(population, cfg.TopK)
	hits, misses := scorer.Stats()

	record := model.RunRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:             runID,
		Label:          cfg.Label,
		DatasetLabel:   cfg.DatasetLabel,
		SampleCount:    len(d.Samples),
		Seed:           cfg.Seed,
		PopulationSize: cfg.PopulationSize,
		Generations:    cfg.Generations,
		EliteCount:     cfg.EliteCount,
		MaxLen:         cfg.MaxLen,
		ConstRange:     cfg.ConstRange,
		Step:           cfg.Step,
		Selection:      cfg.Selector.Name(),
		Best: model.ScoredExpression{
			Expression: best.Expr.String(),
			Fitness:    model.Fitness(best.Fitness),
		},
		CacheHits:    hits,
		CacheMisses:  misses,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
	}

	if err := a.store.SaveRun(ctx, record); err != nil {
		return EvolutionResult{}, fmt.Errorf("save run: %w", err)
	}
	if err := a.store.SaveFitnessHistory(ctx, runID, history); err != nil {
		return EvolutionResult{}, fmt.Errorf("save fitness history: %w", err)
	}
	if err := a.store.SaveReports(ctx, runID, reports); err != nil {
		return EvolutionResult{}, fmt.Errorf("save reports: %w", err)
	}
	if err := a.store.SaveTopExpressions(ctx, runID, top); err != nil {
		return EvolutionResult{}, fmt.Errorf("save top expressions: %w", err)
	}

	logger.Info("run finished",
		"best", float64(record.Best.Fitness),
		"expression", record.Best.Expression,
		"cache_hits", hits,
		"cache_misses", misses)

	return EvolutionResult{
		Record:           record,
		BestByGeneration: history,
		Reports:          reports,
		Top:              top,
	}, nil
}

// StopRun cancels an active run. The canceled RunEvolution call returns the
// context error.
func (a *Academy) StopRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	a.mu.RLock()
	cancel, ok := a.runs[runID]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	cancel()
	return nil
}

func (a *Academy) registerRun(runID string, cancel context.CancelFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return fmt.Errorf("academy is not initialized")
	}
	if _, exists := a.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	a.runs[runID] = cancel
	return nil
}

func (a *Academy) unregisterRun(runID string) {
	a.mu.Lock()
	delete(a.runs, runID)
	a.mu.Unlock()
}

func (a *Academy) ActiveRuns() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.runs))
	for id := range a.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (a *Academy) RegisteredDatasets() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	labels := make([]string, 0, len(a.datasets))
	for label := range a.datasets {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func (a *Academy) Started() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started
}

func (a *Academy) LastStopReason() StopReason {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastStopReason
}

func isValidStopReason(reason StopReason) bool {
	switch reason {
	case StopReasonNormal, StopReasonShutdown:
		return true
	default:
		return false
	}
}
