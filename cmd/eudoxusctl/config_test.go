package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	eudoapi "eudoxus/pkg/eudoxus"
)

func TestLoadEvolveConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	payload := `label: damped-spring
formula: "-cos(t)"
from: 0
to: 12
sample_step: 0.5
population: 48
generations: 6
elite_count: 4
workers: 3
seed: 99
selection: tournament
step: 0.25
max_len: 32
const_range: 10
cache_size: 512
top_k: 7
constants:
  PI: 3.14159
  HALF: 0.5
`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	req, src, err := loadEvolveConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if req.Label != "damped-spring" || req.Population != 48 || req.Generations != 6 {
		t.Fatalf("unexpected base fields: %+v", req)
	}
	if req.EliteCount != 4 || req.Workers != 3 || req.Seed != 99 {
		t.Fatalf("unexpected evolution controls: %+v", req)
	}
	if req.Selection != "tournament" || req.Step != 0.25 || req.MaxLen != 32 {
		t.Fatalf("unexpected scoring controls: %+v", req)
	}
	if req.ConstRange != 10 || req.CacheSize != 512 || req.TopK != 7 {
		t.Fatalf("unexpected tuning fields: %+v", req)
	}
	if len(req.Constants) != 2 || req.Constants["PI"] != 3.14159 || req.Constants["HALF"] != 0.5 {
		t.Fatalf("unexpected constants: %+v", req.Constants)
	}
	if src.Formula != "-cos(t)" || src.From != 0 || src.To != 12 || src.SampleStep != 0.5 {
		t.Fatalf("unexpected dataset source: %+v", src)
	}
	if src.CSVPath != "" {
		t.Fatalf("expected no csv path, got %q", src.CSVPath)
	}
}

func TestLoadEvolveConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.json")
	payload := map[string]any{
		"label":       "pendulum",
		"dataset_csv": "pendulum.csv",
		"population":  120,
		"generations": 15,
		"seed":        7,
		"step":        0.1,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	req, src, err := loadEvolveConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if req.Label != "pendulum" || req.Population != 120 || req.Generations != 15 {
		t.Fatalf("unexpected base fields: %+v", req)
	}
	if req.Seed != 7 || req.Step != 0.1 {
		t.Fatalf("unexpected seed/step: seed=%d step=%f", req.Seed, req.Step)
	}
	if src.CSVPath != "pendulum.csv" || src.Formula != "" {
		t.Fatalf("unexpected dataset source: %+v", src)
	}
}

func TestLoadEvolveConfigRejectsNonNumericConstant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad_constant.yaml")
	payload := "constants:\n  PI: three\n"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, err := loadEvolveConfig(path)
	if err == nil || !strings.Contains(err.Error(), "must be numeric") {
		t.Fatalf("expected non-numeric constant error, got %v", err)
	}
}

func TestLoadEvolveConfigMissingFile(t *testing.T) {
	_, _, err := loadEvolveConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected load error for missing file, got %v", err)
	}
}

func TestOverrideFromFlagsPrecedence(t *testing.T) {
	req := eudoapi.RunRequest{
		Label:       "from-file",
		Population:  100,
		Generations: 5,
		Seed:        1,
		Selection:   "exponential",
	}
	src := datasetSource{Formula: "sin(t)", To: 10}

	set := map[string]bool{"pop": true, "seed": true, "formula": true}
	flagValue := map[string]any{
		"pop":     60,
		"seed":    int64(42),
		"formula": "t*t",
		"gens":    99, // not in set, must not apply
	}
	overrideFromFlags(&req, &src, set, flagValue)

	if req.Population != 60 || req.Seed != 42 {
		t.Fatalf("expected set flags to win, got pop=%d seed=%d", req.Population, req.Seed)
	}
	if req.Generations != 5 || req.Label != "from-file" || req.Selection != "exponential" {
		t.Fatalf("expected unset flags to keep file values, got %+v", req)
	}
	if src.Formula != "t*t" || src.To != 10 {
		t.Fatalf("unexpected dataset source after override: %+v", src)
	}
}
