// Package eudoxus is the embedding API for the symbolic-regression engine.
// A Client wires datasets, the evolution platform, the run-record store and
// the on-disk artifact layer behind request/summary calls, so callers never
// touch the internal packages directly.
package eudoxus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"eudoxus/internal/dataset"
	"eudoxus/internal/evo"
	"eudoxus/internal/expr"
	"eudoxus/internal/model"
	"eudoxus/internal/operator"
	"eudoxus/internal/platform"
	"eudoxus/internal/stats"
	"eudoxus/internal/storage"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "eudoxus.db"

	defaultPopulation  = 300
	defaultGenerations = 10
	defaultWorkers     = 4
)

type Options struct {
	// StoreKind selects the run-record backend: "memory" (default) or
	// "sqlite".
	StoreKind string
	DBPath    string

	// ArtifactsDir is where finished runs leave their JSON/CSV artifacts.
	ArtifactsDir string
	ExportsDir   string

	// Logger receives run progress. Nil discards everything.
	Logger *slog.Logger
}

type Client struct {
	store   storage.Store
	academy *platform.Academy
	logger  *slog.Logger

	artifactsDir string
	exportsDir   string
}

// RunRequest describes one evolution run. The zero value runs the built-in
// demo trajectory with the reference defaults: population 300, 10
// generations, exponential selection.
type RunRequest struct {
	Label   string
	Dataset dataset.Dataset

	Population  int
	Generations int
	EliteCount  int
	Workers     int
	Seed        int64

	// Selection is "exponential" (default) or "tournament".
	Selection string

	Step       float64
	MaxLen     int
	ConstRange float64
	CacheSize  int
	TopK       int

	// Constants are extra named constants registered alongside the default
	// operator set, for example {"PI": math.Pi}.
	Constants map[string]float64

	// Registry replaces the default operator set entirely. Constants are
	// still registered on top of it.
	Registry *operator.Registry
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	DatasetLabel     string
	BestByGeneration []model.Fitness
	Best             model.ScoredExpression
	CacheHits        int64
	CacheMisses      int64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	Label            string
	DatasetLabel     string
	CreatedAtUTC     string
	Seed             int64
	Population       int
	Generations      int
	EliteCount       int
	Selection        string
	FinalBestFitness model.Fitness
	BestExpression   string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ReportsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type TopExpressionsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

// EvaluateRequest parses a prefix expression and evaluates it at one point.
// When Dataset is set the expression is also scored against it as a
// candidate right-hand side of dx/dt.
type EvaluateRequest struct {
	Expression string
	Time       float64
	Position   float64

	Dataset *dataset.Dataset
	Step    float64

	Constants map[string]float64
	Registry  *operator.Registry
}

type EvaluateSummary struct {
	Canonical string
	Value     float64
	Fitness   float64
	Scored    bool
}

// SynthesizeRequest samples a closed-form formula of t into a dataset, for
// example "-cos(t)" from 0 to 10 by 1.
type SynthesizeRequest struct {
	Label   string
	Formula string
	From    float64
	To      float64
	Step    float64

	// OutPath optionally writes the samples as a time,position CSV.
	OutPath string
}

type CompareRequest struct {
	RunIDs []string

	// OutPath optionally persists the comparison as JSON.
	OutPath string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureAcademy(ctx)
	return err
}

// DefaultRegistry returns the reference operator set: ADD, SUB, MUL, DIV,
// SQUARE, SQRT, COS, SIN and TAN over the two free variables.
func DefaultRegistry() *operator.Registry {
	reg := operator.NewRegistry()
	reg.MustRegisterBinary("ADD", func(a, b float64) float64 { return a + b })
	reg.MustRegisterBinary("SUB", func(a, b float64) float64 { return a - b })
	reg.MustRegisterBinary("MUL", func(a, b float64) float64 { return a * b })
	reg.MustRegisterBinary("DIV", func(a, b float64) float64 { return a / b })
	reg.MustRegisterUnary("SQUARE", func(x float64) float64 { return x * x })
	reg.MustRegisterUnary("SQRT", math.Sqrt)
	reg.MustRegisterUnary("COS", math.Cos)
	reg.MustRegisterUnary("SIN", math.Sin)
	reg.MustRegisterUnary("TAN", math.Tan)
	return reg
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if len(req.Dataset.Samples) == 0 {
		req.Dataset = dataset.Demo()
	}
	if req.Label == "" {
		req.Label = req.Dataset.Label
	}
	if req.Population <= 0 {
		req.Population = defaultPopulation
	}
	if req.Generations <= 0 {
		req.Generations = defaultGenerations
	}
	if req.Workers <= 0 {
		req.Workers = defaultWorkers
	}

	reg, err := buildRegistry(req.Registry, req.Constants)
	if err != nil {
		return RunSummary{}, err
	}
	selector, err := selectorFromName(req.Selection)
	if err != nil {
		return RunSummary{}, err
	}

	a, err := c.ensureAcademy(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	if err := a.RegisterDataset(req.Dataset); err != nil {
		return RunSummary{}, err
	}

	runID := newRunID(req.Label, req.Seed)
	result, err := a.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:          runID,
		Label:          req.Label,
		DatasetLabel:   req.Dataset.Label,
		Registry:       reg,
		PopulationSize: req.Population,
		Generations:    req.Generations,
		EliteCount:     req.EliteCount,
		MaxLen:         req.MaxLen,
		ConstRange:     req.ConstRange,
		Step:           req.Step,
		Selector:       selector,
		Workers:        req.Workers,
		Seed:           req.Seed,
		CacheSize:      req.CacheSize,
		TopK:           req.TopK,
	})
	if err != nil {
		return RunSummary{}, err
	}

	record := result.Record
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:          record.ID,
			Label:          record.Label,
			DatasetLabel:   record.DatasetLabel,
			SampleCount:    record.SampleCount,
			Seed:           record.Seed,
			PopulationSize: record.PopulationSize,
			Generations:    record.Generations,
			EliteCount:     record.EliteCount,
			MaxLen:         record.MaxLen,
			ConstRange:     record.ConstRange,
			Step:           record.Step,
			Selection:      record.Selection,
			Workers:        req.Workers,
			Operators:      reg.Tokens(),
		},
		BestByGeneration: result.BestByGeneration,
		Reports:          result.Reports,
		TopExpressions:   result.Top,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            record.ID,
		Label:            record.Label,
		DatasetLabel:     record.DatasetLabel,
		PopulationSize:   record.PopulationSize,
		Generations:      record.Generations,
		Seed:             record.Seed,
		EliteCount:       record.EliteCount,
		Selection:        record.Selection,
		FinalBestFitness: record.Best.Fitness,
		BestExpression:   record.Best.Expression,
		CreatedAtUTC:     record.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:            record.ID,
		ArtifactsDir:     filepath.Clean(runDir),
		DatasetLabel:     record.DatasetLabel,
		BestByGeneration: append([]model.Fitness(nil), result.BestByGeneration...),
		Best:             record.Best,
		CacheHits:        record.CacheHits,
		CacheMisses:      record.CacheMisses,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			Label:            e.Label,
			DatasetLabel:     e.DatasetLabel,
			CreatedAtUTC:     e.CreatedAtUTC,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			EliteCount:       e.EliteCount,
			Selection:        e.Selection,
			FinalBestFitness: e.FinalBestFitness,
			BestExpression:   e.BestExpression,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) History(ctx context.Context, req HistoryRequest) ([]model.Fitness, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "fitness history")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensureAcademy(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return history, nil
}

func (c *Client) Reports(ctx context.Context, req ReportsRequest) ([]model.GenerationReport, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "reports")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensureAcademy(ctx); err != nil {
		return nil, err
	}
	reports, ok, err := c.store.GetReports(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("reports not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(reports) > req.Limit {
		reports = reports[:req.Limit]
	}
	return reports, nil
}

func (c *Client) TopExpressions(ctx context.Context, req TopExpressionsRequest) ([]model.ScoredExpression, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "top expressions")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensureAcademy(ctx); err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopExpressions(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top expressions not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	return top, nil
}

func (c *Client) Evaluate(req EvaluateRequest) (EvaluateSummary, error) {
	if req.Expression == "" {
		return EvaluateSummary{}, errors.New("expression is required")
	}

	reg, err := buildRegistry(req.Registry, req.Constants)
	if err != nil {
		return EvaluateSummary{}, err
	}
	parsed, err := expr.Parse(reg, req.Expression)
	if err != nil {
		return EvaluateSummary{}, err
	}
	value, err := parsed.Eval(req.Time, req.Position)
	if err != nil {
		return EvaluateSummary{}, err
	}

	summary := EvaluateSummary{Canonical: parsed.String(), Value: value}
	if req.Dataset != nil {
		step := req.Step
		if step <= 0 {
			step = platform.DefaultStep
		}
		scorer, err := evo.NewTrajectoryScorer(*req.Dataset, step)
		if err != nil {
			return EvaluateSummary{}, err
		}
		fitness, err := scorer.Score(parsed)
		if err != nil {
			return EvaluateSummary{}, err
		}
		summary.Fitness = fitness
		summary.Scored = true
	}
	return summary, nil
}

func (c *Client) Synthesize(req SynthesizeRequest) (dataset.Dataset, error) {
	if req.Formula == "" {
		return dataset.Dataset{}, errors.New("formula is required")
	}
	if req.Label == "" {
		req.Label = req.Formula
	}
	if req.From == 0 && req.To == 0 {
		req.To = 10
	}
	if req.Step == 0 {
		req.Step = 1
	}

	d, err := dataset.Synthesize(req.Label, req.Formula, req.From, req.To, req.Step)
	if err != nil {
		return dataset.Dataset{}, err
	}
	if req.OutPath != "" {
		if err := d.WriteCSV(req.OutPath); err != nil {
			return dataset.Dataset{}, err
		}
	}
	return d, nil
}

func (c *Client) Compare(_ context.Context, req CompareRequest) (stats.RunComparison, error) {
	comparison, err := stats.CompareRuns(c.artifactsDir, req.RunIDs)
	if err != nil {
		return stats.RunComparison{}, err
	}
	if req.OutPath != "" {
		if err := stats.WriteRunComparison(req.OutPath, comparison); err != nil {
			return stats.RunComparison{}, err
		}
	}
	return comparison, nil
}

func (c *Client) resolveRunID(runID string, latest bool, noun string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", noun)
	}
	return runID, nil
}

func (c *Client) ensureAcademy(ctx context.Context) (*platform.Academy, error) {
	if c.academy != nil {
		return c.academy, nil
	}
	a := platform.NewAcademy(platform.Config{Store: c.store, Logger: c.logger})
	if err := a.Init(ctx); err != nil {
		return nil, err
	}
	c.academy = a
	return c.academy, nil
}

func buildRegistry(custom *operator.Registry, constants map[string]float64) (*operator.Registry, error) {
	reg := custom
	if reg == nil {
		reg = DefaultRegistry()
	}
	for token, value := range constants {
		if err := reg.RegisterConstant(token, value); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func selectorFromName(name string) (evo.Selector, error) {
	switch name {
	case "", "exponential":
		return evo.ExponentialSelector{}, nil
	case "tournament":
		return evo.TournamentSelector{}, nil
	default:
		return nil, fmt.Errorf("unsupported selection strategy: %s", name)
	}
}

func newRunID(label string, seed int64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%d-%s", label, seed, suffix[:12])
}
