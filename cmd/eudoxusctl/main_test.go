package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eudoxus/internal/stats"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	workdir := t.TempDir()
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})
	return workdir
}

func TestEvolveCommandCreatesArtifacts(t *testing.T) {
	chdirTemp(t)

	args := []string{
		"evolve",
		"--pop", "16",
		"--gens", "2",
		"--seed", "9",
		"--workers", "2",
		"--step", "0.5",
		"--max-len", "16",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("evolve command: %v", err)
	}

	entries, err := stats.ListRunIndex("artifacts")
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one indexed run")
	}

	runID := entries[0].RunID
	for _, file := range []string{"config.json", "fitness_history.json", "generation_reports.json", "top_expressions.json", "summary.json", "fitness_series.csv"} {
		path := filepath.Join("artifacts", runID, file)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected artifact %s: %v", path, err)
		}
	}

	configData, err := os.ReadFile(filepath.Join("artifacts", runID, "config.json"))
	if err != nil {
		t.Fatalf("read run config artifact: %v", err)
	}
	var runCfg stats.RunConfig
	if err := json.Unmarshal(configData, &runCfg); err != nil {
		t.Fatalf("decode run config artifact: %v", err)
	}
	if runCfg.PopulationSize != 16 || runCfg.Generations != 2 || runCfg.Seed != 9 {
		t.Fatalf("unexpected run config: %+v", runCfg)
	}
	if runCfg.Workers != 2 || runCfg.Step != 0.5 || runCfg.MaxLen != 16 {
		t.Fatalf("unexpected scoring controls: %+v", runCfg)
	}
	if runCfg.DatasetLabel != "neg-cosine" {
		t.Fatalf("expected demo dataset label, got %s", runCfg.DatasetLabel)
	}
}

func TestEvolveCommandConfigAllowsFlagOverrides(t *testing.T) {
	workdir := chdirTemp(t)

	configPath := filepath.Join(workdir, "experiment.yaml")
	payload := `label: file-label
population: 20
generations: 3
seed: 5
selection: tournament
max_len: 16
step: 0.5
`
	if err := os.WriteFile(configPath, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	args := []string{
		"evolve",
		"--config", configPath,
		"--gens", "2",
		"--seed", "77",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("evolve command with config: %v", err)
	}

	entries, err := stats.ListRunIndex("artifacts")
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected run index entry")
	}
	if !strings.HasPrefix(entries[0].RunID, "file-label-77-") {
		t.Fatalf("expected run id from file label and flag seed, got %s", entries[0].RunID)
	}

	configData, err := os.ReadFile(filepath.Join("artifacts", entries[0].RunID, "config.json"))
	if err != nil {
		t.Fatalf("read run config artifact: %v", err)
	}
	var runCfg stats.RunConfig
	if err := json.Unmarshal(configData, &runCfg); err != nil {
		t.Fatalf("decode run config artifact: %v", err)
	}
	if runCfg.PopulationSize != 20 {
		t.Fatalf("expected file population 20, got %d", runCfg.PopulationSize)
	}
	if runCfg.Generations != 2 || runCfg.Seed != 77 {
		t.Fatalf("expected flag overrides gens=2 seed=77, got gens=%d seed=%d", runCfg.Generations, runCfg.Seed)
	}
	if runCfg.Selection != "tournament" {
		t.Fatalf("expected file selection tournament, got %s", runCfg.Selection)
	}
	if runCfg.Label != "file-label" {
		t.Fatalf("expected file label, got %s", runCfg.Label)
	}
}

func TestEvolveCommandFormulaDataset(t *testing.T) {
	chdirTemp(t)

	args := []string{
		"evolve",
		"--formula", "t*t",
		"--from", "0",
		"--to", "4",
		"--sample-step", "1",
		"--pop", "12",
		"--gens", "1",
		"--seed", "3",
		"--step", "0.5",
		"--max-len", "16",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("evolve command with formula: %v", err)
	}

	entries, err := stats.ListRunIndex("artifacts")
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected run index entry")
	}
	configData, err := os.ReadFile(filepath.Join("artifacts", entries[0].RunID, "config.json"))
	if err != nil {
		t.Fatalf("read run config artifact: %v", err)
	}
	var runCfg stats.RunConfig
	if err := json.Unmarshal(configData, &runCfg); err != nil {
		t.Fatalf("decode run config artifact: %v", err)
	}
	if runCfg.DatasetLabel != "t*t" {
		t.Fatalf("expected formula dataset label, got %s", runCfg.DatasetLabel)
	}
	if runCfg.SampleCount != 5 {
		t.Fatalf("expected 5 synthesized samples, got %d", runCfg.SampleCount)
	}
}

func TestEvolveCommandRejectsCSVAndFormula(t *testing.T) {
	err := run(context.Background(), []string{
		"evolve",
		"--data", "samples.csv",
		"--formula", "sin(t)",
	})
	if err == nil || !strings.Contains(err.Error(), "not both") {
		t.Fatalf("expected dataset exclusivity error, got %v", err)
	}
}

func TestGendataThenEvolveCSV(t *testing.T) {
	workdir := chdirTemp(t)

	csvPath := filepath.Join(workdir, "spring.csv")
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"gendata",
			"--formula", "-cos(t)",
			"--out", csvPath,
		})
	})
	if err != nil {
		t.Fatalf("gendata command: %v", err)
	}
	if !strings.Contains(out, "samples=11") || !strings.Contains(out, "label=-cos(t)") {
		t.Fatalf("unexpected gendata output: %s", out)
	}
	if _, err := os.Stat(csvPath); err != nil {
		t.Fatalf("expected generated csv: %v", err)
	}

	if err := run(context.Background(), []string{
		"evolve",
		"--data", csvPath,
		"--pop", "12",
		"--gens", "1",
		"--seed", "4",
		"--step", "0.5",
		"--max-len", "16",
	}); err != nil {
		t.Fatalf("evolve command with csv: %v", err)
	}

	entries, err := stats.ListRunIndex("artifacts")
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected run index entry")
	}
	if entries[0].DatasetLabel != "spring" {
		t.Fatalf("expected csv basename label, got %s", entries[0].DatasetLabel)
	}
}

func TestGendataCommandValidation(t *testing.T) {
	if err := run(context.Background(), []string{"gendata", "--out", "x.csv"}); err == nil || !strings.Contains(err.Error(), "requires -formula") {
		t.Fatalf("expected missing formula error, got %v", err)
	}
	if err := run(context.Background(), []string{"gendata", "--formula", "t"}); err == nil || !strings.Contains(err.Error(), "requires -out") {
		t.Fatalf("expected missing out error, got %v", err)
	}
}

func TestEvalCommandPrintsValue(t *testing.T) {
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"eval",
			"--expr", "MUL TIME TIME",
			"--time", "3",
		})
	})
	if err != nil {
		t.Fatalf("eval command: %v", err)
	}
	if !strings.Contains(out, "value=9.000000") || !strings.Contains(out, "expression=MUL TIME TIME") {
		t.Fatalf("unexpected eval output: %s", out)
	}
	if strings.Contains(out, "fitness=") {
		t.Fatalf("expected no fitness without a dataset: %s", out)
	}
}

func TestEvalCommandScoresAgainstDemo(t *testing.T) {
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"eval",
			"--expr", "SIN TIME",
			"--demo",
		})
	})
	if err != nil {
		t.Fatalf("eval command: %v", err)
	}
	if !strings.Contains(out, "fitness=") || !strings.Contains(out, "dataset=neg-cosine") {
		t.Fatalf("unexpected eval output: %s", out)
	}
}

func TestEvalCommandValidation(t *testing.T) {
	if err := run(context.Background(), []string{"eval"}); err == nil || !strings.Contains(err.Error(), "requires -expr") {
		t.Fatalf("expected missing expr error, got %v", err)
	}
	if err := run(context.Background(), []string{
		"eval", "--expr", "TIME", "--data", "x.csv", "--demo",
	}); err == nil || !strings.Contains(err.Error(), "not both") {
		t.Fatalf("expected dataset exclusivity error, got %v", err)
	}
}

func TestRunsCommandListsIndexedRuns(t *testing.T) {
	chdirTemp(t)

	if err := run(context.Background(), []string{
		"evolve",
		"--pop", "12",
		"--gens", "1",
		"--seed", "21",
		"--step", "0.5",
		"--max-len", "16",
	}); err != nil {
		t.Fatalf("evolve command: %v", err)
	}

	entries, err := stats.ListRunIndex("artifacts")
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one indexed run")
	}
	expectedRunID := entries[0].RunID

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"runs", "--limit", "1"})
	})
	if err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(out, "run_id="+expectedRunID) {
		t.Fatalf("runs output missing expected run id %s: %s", expectedRunID, out)
	}
	if !strings.Contains(out, "selection=exponential") {
		t.Fatalf("runs output missing selection: %s", out)
	}

	jsonOut, err := captureStdout(func() error {
		return run(context.Background(), []string{"runs", "--json"})
	})
	if err != nil {
		t.Fatalf("runs json command: %v", err)
	}
	var decoded []stats.RunIndexEntry
	if err := json.Unmarshal([]byte(jsonOut), &decoded); err != nil {
		t.Fatalf("decode runs json: %v", err)
	}
	if len(decoded) != 1 || decoded[0].RunID != expectedRunID {
		t.Fatalf("unexpected runs json: %s", jsonOut)
	}
}

func TestRunsCommandEmptyIndex(t *testing.T) {
	chdirTemp(t)

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"runs"})
	})
	if err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(out, "no runs found") {
		t.Fatalf("unexpected runs output: %s", out)
	}
}

func TestExportLatestCopiesArtifacts(t *testing.T) {
	chdirTemp(t)

	if err := run(context.Background(), []string{
		"evolve",
		"--pop", "12",
		"--gens", "1",
		"--seed", "31",
		"--step", "0.5",
		"--max-len", "16",
	}); err != nil {
		t.Fatalf("evolve command: %v", err)
	}

	entries, err := stats.ListRunIndex("artifacts")
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one indexed run")
	}
	runID := entries[0].RunID

	if err := run(context.Background(), []string{"export", "--latest"}); err != nil {
		t.Fatalf("export latest command: %v", err)
	}

	for _, file := range []string{"config.json", "fitness_history.json", "generation_reports.json", "top_expressions.json", "summary.json", "fitness_series.csv"} {
		path := filepath.Join("exports", runID, file)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected exported artifact %s: %v", path, err)
		}
	}
}

func TestCompareCommandAggregatesRuns(t *testing.T) {
	workdir := chdirTemp(t)

	for _, seed := range []string{"1", "2"} {
		if err := run(context.Background(), []string{
			"evolve",
			"--pop", "12",
			"--gens", "2",
			"--seed", seed,
			"--step", "0.5",
			"--max-len", "16",
		}); err != nil {
			t.Fatalf("evolve command seed %s: %v", seed, err)
		}
	}

	entries, err := stats.ListRunIndex("artifacts")
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two indexed runs, got %d", len(entries))
	}

	outPath := filepath.Join(workdir, "comparison.json")
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"compare",
			"--runs", entries[0].RunID + "," + entries[1].RunID,
			"--out", outPath,
		})
	})
	if err != nil {
		t.Fatalf("compare command: %v", err)
	}
	if !strings.Contains(out, "compare runs=2 generations=3") {
		t.Fatalf("unexpected compare output: %s", out)
	}
	if !strings.Contains(out, "mean_best=") || !strings.Contains(out, "improvement=") {
		t.Fatalf("compare output missing aggregates: %s", out)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected comparison artifact: %v", err)
	}
}

func TestCompareCommandValidation(t *testing.T) {
	err := run(context.Background(), []string{"compare", "--runs", " , "})
	if err == nil || !strings.Contains(err.Error(), "at least one run id") {
		t.Fatalf("expected missing run ids error, got %v", err)
	}
}

func TestInitAndResetCommands(t *testing.T) {
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"init"})
	})
	if err != nil {
		t.Fatalf("init command: %v", err)
	}
	if !strings.Contains(out, "initialized store=memory") {
		t.Fatalf("unexpected init output: %s", out)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), []string{"reset"})
	})
	if err != nil {
		t.Fatalf("reset command: %v", err)
	}
	if !strings.Contains(out, "reset store=memory") {
		t.Fatalf("unexpected reset output: %s", out)
	}
}

func TestGetterCommandValidation(t *testing.T) {
	for _, cmd := range []string{"history", "reports", "top"} {
		if err := run(context.Background(), []string{cmd}); err == nil || !strings.Contains(err.Error(), "requires --run-id or --latest") {
			t.Fatalf("%s: expected missing selector error, got %v", cmd, err)
		}
		if err := run(context.Background(), []string{cmd, "--run-id", "x", "--latest"}); err == nil || !strings.Contains(err.Error(), "not both") {
			t.Fatalf("%s: expected exclusivity error, got %v", cmd, err)
		}
	}
}

func TestRunCommandUsage(t *testing.T) {
	if err := run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "usage: eudoxusctl") {
		t.Fatalf("expected usage error for missing command, got %v", err)
	}
	if err := run(context.Background(), []string{"bogus"}); err == nil || !strings.Contains(err.Error(), "unknown command: bogus") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		_ = r.Close()
		return "", err
	}
	_ = r.Close()
	return buf.String(), runErr
}
