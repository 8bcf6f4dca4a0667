package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"eudoxus/internal/dataset"
	"eudoxus/internal/platform"
	"eudoxus/internal/stats"
	"eudoxus/internal/storage"
	eudoapi "eudoxus/pkg/eudoxus"
)

const (
	artifactsDir = "artifacts"
	exportsDir   = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "evolve":
		return runEvolve(ctx, args[1:])
	case "eval":
		return runEval(ctx, args[1:])
	case "gendata":
		return runGendata(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "reports":
		return runReports(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "compare":
		return runCompare(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "eudoxus.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	academy := platform.NewAcademy(platform.Config{Store: store})
	if err := academy.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "eudoxus.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	academy := platform.NewAcademy(platform.Config{Store: store})
	if err := academy.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runEvolve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evolve", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional experiment file (YAML or JSON)")
	label := fs.String("label", "", "run label (defaults to the dataset label)")
	dataCSV := fs.String("data", "", "time,position CSV to fit (mutually exclusive with -formula)")
	formula := fs.String("formula", "", "closed-form trajectory of t to fit, e.g. \"-cos(t)\"")
	from := fs.Float64("from", 0, "formula sampling start")
	to := fs.Float64("to", 10, "formula sampling end")
	sampleStep := fs.Float64("sample-step", 1, "formula sampling interval")
	population := fs.Int("pop", 300, "population size")
	generations := fs.Int("gens", 10, "generation count")
	eliteCount := fs.Int("elite", 0, "elite count carried unchanged (0 derives population/10)")
	workers := fs.Int("workers", 4, "scoring worker count")
	seed := fs.Int64("seed", 1, "rng seed")
	selection := fs.String("selection", "exponential", "parent selection strategy: exponential|tournament")
	step := fs.Float64("step", 0, "integration step (0 uses 0.1)")
	maxLen := fs.Int("max-len", 0, "maximum expression length in tokens (0 uses 128)")
	constRange := fs.Float64("const-range", 0, "ephemeral constant range (0 uses 100)")
	cacheSize := fs.Int("cache-size", 0, "fitness cache entries (0 uses 4096)")
	topK := fs.Int("top-k", 0, "leaderboard size per generation (0 uses 10)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "eudoxus.db", "sqlite database path")
	verbose := fs.Bool("v", false, "log run progress to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	var req eudoapi.RunRequest
	var src datasetSource
	if *configPath == "" {
		req = eudoapi.RunRequest{
			Label:       *label,
			Population:  *population,
			Generations: *generations,
			EliteCount:  *eliteCount,
			Workers:     *workers,
			Seed:        *seed,
			Selection:   *selection,
			Step:        *step,
			MaxLen:      *maxLen,
			ConstRange:  *constRange,
			CacheSize:   *cacheSize,
			TopK:        *topK,
		}
		src = datasetSource{
			CSVPath:    *dataCSV,
			Formula:    *formula,
			From:       *from,
			To:         *to,
			SampleStep: *sampleStep,
		}
	} else {
		var err error
		req, src, err = loadEvolveConfig(*configPath)
		if err != nil {
			return err
		}
		overrideFromFlags(&req, &src, setFlags, map[string]any{
			"label":       *label,
			"data":        *dataCSV,
			"formula":     *formula,
			"from":        *from,
			"to":          *to,
			"sample-step": *sampleStep,
			"pop":         *population,
			"gens":        *generations,
			"elite":       *eliteCount,
			"workers":     *workers,
			"seed":        *seed,
			"selection":   *selection,
			"step":        *step,
			"max-len":     *maxLen,
			"const-range": *constRange,
			"cache-size":  *cacheSize,
			"top-k":       *topK,
		})
	}
	if src.CSVPath != "" && src.Formula != "" {
		return errors.New("use either a csv dataset or a formula, not both")
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client, err := eudoapi.New(eudoapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	switch {
	case src.CSVPath != "":
		d, err := dataset.FromCSV("", src.CSVPath)
		if err != nil {
			return err
		}
		req.Dataset = d
	case src.Formula != "":
		d, err := client.Synthesize(eudoapi.SynthesizeRequest{
			Formula: src.Formula,
			From:    src.From,
			To:      src.To,
			Step:    src.SampleStep,
		})
		if err != nil {
			return err
		}
		req.Dataset = d
	}

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("run completed run_id=%s dataset=%s pop=%d gens=%d seed=%d\n",
		summary.RunID, summary.DatasetLabel, req.Population, req.Generations, req.Seed)
	for i, best := range summary.BestByGeneration {
		fmt.Printf("generation=%d best_fitness=%.6f\n", i, best)
	}
	fmt.Printf("final_best_fitness=%.6f\n", summary.Best.Fitness)
	fmt.Printf("best_expression=%s\n", summary.Best.Expression)
	fmt.Printf("cache_hits=%s cache_misses=%s\n",
		humanize.Comma(summary.CacheHits), humanize.Comma(summary.CacheMisses))
	fmt.Printf("artifacts_dir=%s\n", summary.ArtifactsDir)
	return nil
}

func runEval(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	expression := fs.String("expr", "", "prefix expression, e.g. \"MUL TIME TIME\"")
	atTime := fs.Float64("time", 0, "time to evaluate at")
	atPosition := fs.Float64("position", 0, "position to evaluate at")
	dataCSV := fs.String("data", "", "score the expression against this time,position CSV")
	demo := fs.Bool("demo", false, "score the expression against the built-in demo trajectory")
	step := fs.Float64("step", 0, "integration step for scoring (0 uses 0.1)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *expression == "" {
		return errors.New("eval requires -expr")
	}
	if *dataCSV != "" && *demo {
		return errors.New("use either -data or -demo, not both")
	}

	client, err := eudoapi.New(eudoapi.Options{ArtifactsDir: artifactsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := eudoapi.EvaluateRequest{
		Expression: *expression,
		Time:       *atTime,
		Position:   *atPosition,
		Step:       *step,
	}
	switch {
	case *dataCSV != "":
		d, err := dataset.FromCSV("", *dataCSV)
		if err != nil {
			return err
		}
		req.Dataset = &d
	case *demo:
		d := dataset.Demo()
		req.Dataset = &d
	}

	result, err := client.Evaluate(req)
	if err != nil {
		return err
	}
	fmt.Printf("expression=%s time=%g position=%g value=%.6f\n",
		result.Canonical, *atTime, *atPosition, result.Value)
	if result.Scored {
		fmt.Printf("fitness=%.6f dataset=%s\n", result.Fitness, req.Dataset.Label)
	}
	return nil
}

func runGendata(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("gendata", flag.ContinueOnError)
	formula := fs.String("formula", "", "closed-form trajectory of t, e.g. \"-cos(t)\"")
	label := fs.String("label", "", "dataset label (defaults to the formula)")
	from := fs.Float64("from", 0, "sampling start")
	to := fs.Float64("to", 10, "sampling end")
	step := fs.Float64("step", 1, "sampling interval")
	outPath := fs.String("out", "", "CSV output path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *formula == "" {
		return errors.New("gendata requires -formula")
	}
	if *outPath == "" {
		return errors.New("gendata requires -out")
	}

	client, err := eudoapi.New(eudoapi.Options{ArtifactsDir: artifactsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	d, err := client.Synthesize(eudoapi.SynthesizeRequest{
		Label:   *label,
		Formula: *formula,
		From:    *from,
		To:      *to,
		Step:    *step,
		OutPath: *outPath,
	})
	if err != nil {
		return err
	}

	fmt.Printf("generated dataset label=%s samples=%d out=%s\n", d.Label, len(d.Samples), *outPath)
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range entries {
		created := e.CreatedAtUTC
		if ts, err := time.Parse(time.RFC3339, e.CreatedAtUTC); err == nil {
			created = humanize.Time(ts)
		}
		fmt.Printf("run_id=%s created=%s dataset=%s seed=%d pop=%s gens=%d elite=%d selection=%s best_fitness=%.6f best=%q\n",
			e.RunID,
			created,
			e.DatasetLabel,
			e.Seed,
			humanize.Comma(int64(e.PopulationSize)),
			e.Generations,
			e.EliteCount,
			e.Selection,
			e.FinalBestFitness,
			e.BestExpression,
		)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show fitness history for the most recent run from run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "eudoxus.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("history requires --run-id or --latest")
	}

	client, err := eudoapi.New(eudoapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.History(ctx, eudoapi.HistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	for i, best := range history {
		fmt.Printf("generation=%d best_fitness=%.6f\n", i, best)
	}
	return nil
}

func runReports(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reports", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show generation reports for the most recent run from run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit generation reports as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "eudoxus.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("reports requires --run-id or --latest")
	}

	client, err := eudoapi.New(eudoapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	reports, err := client.Reports(ctx, eudoapi.ReportsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Println("no generation reports")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	for _, report := range reports {
		fmt.Printf("generation=%d best=%.6f mean=%.6f worst=%.6f failed=%d unique=%d mean_length=%.2f best_expression=%q\n",
			report.Generation,
			report.BestFitness,
			report.MeanFitness,
			report.WorstFitness,
			report.FailedCount,
			report.UniqueExpressions,
			report.MeanLength,
			report.BestExpression,
		)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show top expressions for the most recent run from run index")
	limit := fs.Int("limit", 10, "max expressions to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit top expressions as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "eudoxus.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("top requires --run-id or --latest")
	}

	client, err := eudoapi.New(eudoapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopExpressions(ctx, eudoapi.TopExpressionsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Println("no top expressions")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(top)
	}

	for i, item := range top {
		fmt.Printf("rank=%d fitness=%.6f expression=%s\n", i+1, item.Fitness, item.Expression)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := eudoapi.New(eudoapi.Options{ArtifactsDir: artifactsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, eudoapi.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runCompare(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	runIDs := fs.String("runs", "", "comma-separated run ids to aggregate")
	outPath := fs.String("out", "", "optional JSON output path")
	jsonOut := fs.Bool("json", false, "emit comparison as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ids := splitRunIDs(*runIDs)
	if len(ids) == 0 {
		return errors.New("compare requires --runs with at least one run id")
	}

	client, err := eudoapi.New(eudoapi.Options{ArtifactsDir: artifactsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	comparison, err := client.Compare(ctx, eudoapi.CompareRequest{RunIDs: ids, OutPath: *outPath})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(comparison)
	}

	fmt.Printf("compare runs=%d generations=%d\n", len(comparison.RunIDs), comparison.Generations)
	for i := range comparison.MeanBest {
		fmt.Printf("generation=%d mean_best=%.6f std_best=%.6f min_best=%.6f max_best=%.6f\n",
			i,
			comparison.MeanBest[i],
			comparison.StdBest[i],
			comparison.MinBest[i],
			comparison.MaxBest[i],
		)
	}
	for _, s := range comparison.Summaries {
		fmt.Printf("run_id=%s initial_best=%.6f final_best=%.6f improvement=%.6f\n",
			s.RunID, s.InitialBest, s.FinalBest, s.Improvement)
	}
	if *outPath != "" {
		fmt.Printf("comparison=%s\n", *outPath)
	}
	return nil
}

func splitRunIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: eudoxusctl <init|reset|evolve|eval|gendata|runs|history|reports|top|export|compare> [flags]", msg)
}
