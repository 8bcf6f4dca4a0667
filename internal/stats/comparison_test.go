package stats

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"eudoxus/internal/model"
)

func writeHistoryFixture(t *testing.T, baseDir, runID string, series []model.Fitness) {
	t.Helper()
	_, err := WriteRunArtifacts(baseDir, RunArtifacts{
		Config:           RunConfig{RunID: runID, DatasetLabel: "neg-cosine"},
		BestByGeneration: series,
	})
	if err != nil {
		t.Fatalf("write artifacts for %s: %v", runID, err)
	}
}

func TestCompareRunsAggregates(t *testing.T) {
	baseDir := t.TempDir()
	nan := model.Fitness(math.NaN())

	writeHistoryFixture(t, baseDir, "run-a", []model.Fitness{10, 6, 2})
	writeHistoryFixture(t, baseDir, "run-b", []model.Fitness{8, 4, nan})

	comparison, err := CompareRuns(baseDir, []string{"run-a", "run-b"})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}

	if comparison.Generations != 3 {
		t.Fatalf("generations = %d, want 3", comparison.Generations)
	}
	if len(comparison.Summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(comparison.Summaries))
	}

	if comparison.MeanBest[0] != 9 || comparison.StdBest[0] != 1 {
		t.Fatalf("generation 1 mean/std = %v/%v, want 9/1", comparison.MeanBest[0], comparison.StdBest[0])
	}
	if comparison.MinBest[0] != 8 || comparison.MaxBest[0] != 10 {
		t.Fatalf("generation 1 min/max = %v/%v, want 8/10", comparison.MinBest[0], comparison.MaxBest[0])
	}

	// run-b failed in generation 3, so only run-a contributes there.
	if comparison.MeanBest[2] != 2 || comparison.StdBest[2] != 0 {
		t.Fatalf("generation 3 mean/std = %v/%v, want 2/0", comparison.MeanBest[2], comparison.StdBest[2])
	}
}

func TestCompareRunsUnequalLengths(t *testing.T) {
	baseDir := t.TempDir()

	writeHistoryFixture(t, baseDir, "run-long", []model.Fitness{10, 6, 2, 1})
	writeHistoryFixture(t, baseDir, "run-short", []model.Fitness{8, 4})

	comparison, err := CompareRuns(baseDir, []string{"run-long", "run-short"})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if comparison.Generations != 4 {
		t.Fatalf("generations = %d, want 4", comparison.Generations)
	}
	if comparison.MeanBest[3] != 1 {
		t.Fatalf("generation 4 mean = %v, want the long run alone", comparison.MeanBest[3])
	}
}

func TestCompareRunsAllFailedGeneration(t *testing.T) {
	baseDir := t.TempDir()
	nan := model.Fitness(math.NaN())

	writeHistoryFixture(t, baseDir, "run-a", []model.Fitness{10, nan})
	writeHistoryFixture(t, baseDir, "run-b", []model.Fitness{8, nan})

	comparison, err := CompareRuns(baseDir, []string{"run-a", "run-b"})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !math.IsNaN(float64(comparison.MeanBest[1])) || !math.IsNaN(float64(comparison.MinBest[1])) {
		t.Fatalf("generation 2 should aggregate to NaN: %+v", comparison)
	}
}

func TestCompareRunsErrors(t *testing.T) {
	baseDir := t.TempDir()

	if _, err := CompareRuns(baseDir, nil); err == nil {
		t.Fatal("empty run id list accepted")
	}
	if _, err := CompareRuns(baseDir, []string{"missing-run"}); err == nil {
		t.Fatal("missing run accepted")
	}
}

func TestWriteRunComparison(t *testing.T) {
	baseDir := t.TempDir()
	writeHistoryFixture(t, baseDir, "run-a", []model.Fitness{10, 2})

	comparison, err := CompareRuns(baseDir, []string{"run-a"})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}

	path := filepath.Join(baseDir, "comparison.json")
	if err := WriteRunComparison(path, comparison); err != nil {
		t.Fatalf("write comparison: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read comparison: %v", err)
	}
	var loaded RunComparison
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal comparison: %v", err)
	}
	if loaded.Generations != 2 || loaded.MeanBest[1] != 2 {
		t.Fatalf("unexpected loaded comparison: %+v", loaded)
	}
}
