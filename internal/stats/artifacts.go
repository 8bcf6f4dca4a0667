// Package stats persists run artifacts as plain files under a base
// directory, one subdirectory per run, so finished runs can be listed,
// re-read, and exported without going through the store.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"eudoxus/internal/model"
)

const runIndexFile = "run_index.json"

// RunConfig records the settings one evolution run was launched with.
type RunConfig struct {
	RunID          string   `json:"run_id"`
	Label          string   `json:"label,omitempty"`
	DatasetLabel   string   `json:"dataset_label"`
	SampleCount    int      `json:"sample_count"`
	Seed           int64    `json:"seed"`
	PopulationSize int      `json:"population_size"`
	Generations    int      `json:"generations"`
	EliteCount     int      `json:"elite_count"`
	MaxLen         int      `json:"max_len"`
	ConstRange     float64  `json:"const_range"`
	Step           float64  `json:"step"`
	Selection      string   `json:"selection"`
	Workers        int      `json:"workers"`
	Operators      []string `json:"operators,omitempty"`
}

// FitnessHistory is the best-by-generation series a run leaves behind.
type FitnessHistory struct {
	BestByGeneration []model.Fitness `json:"best_by_generation"`
	FinalBestFitness model.Fitness   `json:"final_best_fitness"`
}

// RunArtifacts is everything a finished run writes to disk.
type RunArtifacts struct {
	Config           RunConfig                `json:"config"`
	BestByGeneration []model.Fitness          `json:"best_by_generation"`
	Reports          []model.GenerationReport `json:"reports,omitempty"`
	TopExpressions   []model.ScoredExpression `json:"top_expressions"`
}

// RunSummary condenses a run's best-by-generation series. Mean, std, min and
// max cover the generations whose best was a usable number; Improvement is
// initial minus final, so positive means the run moved toward the data.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Generations int           `json:"generations"`
	InitialBest model.Fitness `json:"initial_best"`
	FinalBest   model.Fitness `json:"final_best"`
	Improvement model.Fitness `json:"improvement"`
	BestMean    model.Fitness `json:"best_mean"`
	BestStd     model.Fitness `json:"best_std"`
	BestMin     model.Fitness `json:"best_min"`
	BestMax     model.Fitness `json:"best_max"`
}

// RunIndexEntry is one row of the base directory's run index.
type RunIndexEntry struct {
	RunID            string        `json:"run_id"`
	Label            string        `json:"label,omitempty"`
	DatasetLabel     string        `json:"dataset_label"`
	PopulationSize   int           `json:"population_size"`
	Generations      int           `json:"generations"`
	Seed             int64         `json:"seed"`
	EliteCount       int           `json:"elite_count"`
	Selection        string        `json:"selection"`
	FinalBestFitness model.Fitness `json:"final_best_fitness"`
	BestExpression   string        `json:"best_expression"`
	CreatedAtUTC     string        `json:"created_at_utc"`
}

// WriteRunArtifacts lays down a run's directory: config.json,
// fitness_history.json, generation_reports.json, top_expressions.json,
// summary.json and fitness_series.csv. It returns the run directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	history := FitnessHistory{
		BestByGeneration: artifacts.BestByGeneration,
		FinalBestFitness: model.Fitness(math.NaN()),
	}
	if n := len(artifacts.BestByGeneration); n > 0 {
		history.FinalBestFitness = artifacts.BestByGeneration[n-1]
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), history); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "generation_reports.json"), artifacts.Reports); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "top_expressions.json"), artifacts.TopExpressions); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), SummarizeRun(artifacts.Config.RunID, artifacts.BestByGeneration)); err != nil {
		return "", err
	}
	if err := writeFitnessSeries(runDir, artifacts.BestByGeneration); err != nil {
		return "", err
	}

	return runDir, nil
}

// SummarizeRun computes the summary statistics of a best-by-generation
// series. An empty series and all-failed series yield NaN statistics.
func SummarizeRun(runID string, bestByGeneration []model.Fitness) RunSummary {
	summary := RunSummary{
		RunID:       runID,
		Generations: len(bestByGeneration),
		InitialBest: model.Fitness(math.NaN()),
		FinalBest:   model.Fitness(math.NaN()),
		Improvement: model.Fitness(math.NaN()),
		BestMean:    model.Fitness(math.NaN()),
		BestStd:     model.Fitness(math.NaN()),
		BestMin:     model.Fitness(math.NaN()),
		BestMax:     model.Fitness(math.NaN()),
	}
	if len(bestByGeneration) == 0 {
		return summary
	}

	summary.InitialBest = bestByGeneration[0]
	summary.FinalBest = bestByGeneration[len(bestByGeneration)-1]
	summary.Improvement = summary.InitialBest - summary.FinalBest

	usable := make([]float64, 0, len(bestByGeneration))
	for _, best := range bestByGeneration {
		if !math.IsNaN(float64(best)) {
			usable = append(usable, float64(best))
		}
	}
	if len(usable) == 0 {
		return summary
	}

	summary.BestMean = model.Fitness(avg(usable))
	summary.BestStd = model.Fitness(std(usable))
	summary.BestMin = model.Fitness(usable[0])
	summary.BestMax = model.Fitness(usable[0])
	for _, value := range usable[1:] {
		if value < float64(summary.BestMin) {
			summary.BestMin = model.Fitness(value)
		}
		if value > float64(summary.BestMax) {
			summary.BestMax = model.Fitness(value)
		}
	}
	return summary
}

// AppendRunIndex upserts one entry into the base directory's run index.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the run index sorted newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run's artifact files into outDir/<runID>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	files := []string{"config.json", "fitness_history.json", "generation_reports.json", "top_expressions.json", "summary.json"}
	for _, file := range files {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	seriesPath := filepath.Join(src, "fitness_series.csv")
	if _, err := os.Stat(seriesPath); err == nil {
		if err := copyFile(seriesPath, filepath.Join(dst, "fitness_series.csv")); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	if err != nil || !ok {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func ReadFitnessHistory(baseDir, runID string) (FitnessHistory, bool, error) {
	var history FitnessHistory
	ok, err := readJSON(filepath.Join(baseDir, runID, "fitness_history.json"), &history)
	if err != nil || !ok {
		return FitnessHistory{}, false, err
	}
	return history, true, nil
}

func ReadGenerationReports(baseDir, runID string) ([]model.GenerationReport, bool, error) {
	var reports []model.GenerationReport
	ok, err := readJSON(filepath.Join(baseDir, runID, "generation_reports.json"), &reports)
	if err != nil || !ok {
		return nil, false, err
	}
	return reports, true, nil
}

func ReadTopExpressions(baseDir, runID string) ([]model.ScoredExpression, bool, error) {
	var top []model.ScoredExpression
	ok, err := readJSON(filepath.Join(baseDir, runID, "top_expressions.json"), &top)
	if err != nil || !ok {
		return nil, false, err
	}
	return top, true, nil
}

func ReadRunSummary(baseDir, runID string) (RunSummary, bool, error) {
	var summary RunSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, "summary.json"), &summary)
	if err != nil || !ok {
		return RunSummary{}, false, err
	}
	return summary, true, nil
}

// ReadFitnessSeries reads the plain CSV rendering of the best-by-generation
// series. NaN entries round-trip through strconv.
func ReadFitnessSeries(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, "fitness_series.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("fitness series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func writeFitnessSeries(runDir string, bestByGeneration []model.Fitness) error {
	path := filepath.Join(runDir, "fitness_series.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness"}); err != nil {
		return err
	}
	// Generation 0 is the grown random population.
	for i, best := range bestByGeneration {
		if err := writer.Write([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(float64(best), 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func avg(values []float64) float64 {
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

// std is the population standard deviation.
func std(values []float64) float64 {
	mean := avg(values)
	sum := 0.0
	for _, value := range values {
		diff := mean - value
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)))
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
