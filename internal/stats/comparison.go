package stats

import (
	"fmt"
	"math"

	"eudoxus/internal/model"
)

// RunComparison aggregates the best-by-generation series of several runs,
// typically repeats of one configuration under different seeds. Series of
// unequal length are aggregated as far as each one reaches.
type RunComparison struct {
	RunIDs      []string        `json:"run_ids"`
	Generations int             `json:"generations"`
	MeanBest    []model.Fitness `json:"mean_best"`
	StdBest     []model.Fitness `json:"std_best"`
	MinBest     []model.Fitness `json:"min_best"`
	MaxBest     []model.Fitness `json:"max_best"`
	Summaries   []RunSummary    `json:"summaries"`
}

// CompareRuns reads the fitness history of every named run under baseDir and
// aggregates them generation by generation. Failed generations (NaN best) are
// skipped; a generation where every run failed aggregates to NaN.
func CompareRuns(baseDir string, runIDs []string) (RunComparison, error) {
	if len(runIDs) == 0 {
		return RunComparison{}, fmt.Errorf("at least one run id is required")
	}

	comparison := RunComparison{
		RunIDs:    append([]string(nil), runIDs...),
		Summaries: make([]RunSummary, 0, len(runIDs)),
	}

	series := make([][]model.Fitness, 0, len(runIDs))
	for _, runID := range runIDs {
		history, ok, err := ReadFitnessHistory(baseDir, runID)
		if err != nil {
			return RunComparison{}, err
		}
		if !ok {
			return RunComparison{}, fmt.Errorf("fitness history not found for run id: %s", runID)
		}
		series = append(series, history.BestByGeneration)
		comparison.Summaries = append(comparison.Summaries, SummarizeRun(runID, history.BestByGeneration))
		if len(history.BestByGeneration) > comparison.Generations {
			comparison.Generations = len(history.BestByGeneration)
		}
	}

	for generation := 0; generation < comparison.Generations; generation++ {
		usable := make([]float64, 0, len(series))
		for _, run := range series {
			if generation >= len(run) {
				continue
			}
			best := float64(run[generation])
			if math.IsNaN(best) {
				continue
			}
			usable = append(usable, best)
		}

		mean, deviation := math.NaN(), math.NaN()
		low, high := math.NaN(), math.NaN()
		if len(usable) > 0 {
			mean = avg(usable)
			deviation = std(usable)
			low, high = usable[0], usable[0]
			for _, value := range usable[1:] {
				if value < low {
					low = value
				}
				if value > high {
					high = value
				}
			}
		}

		comparison.MeanBest = append(comparison.MeanBest, model.Fitness(mean))
		comparison.StdBest = append(comparison.StdBest, model.Fitness(deviation))
		comparison.MinBest = append(comparison.MinBest, model.Fitness(low))
		comparison.MaxBest = append(comparison.MaxBest, model.Fitness(high))
	}

	return comparison, nil
}

// WriteRunComparison writes a comparison to the given path as indented JSON.
func WriteRunComparison(path string, comparison RunComparison) error {
	return writeJSON(path, comparison)
}
