package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	eudoapi "eudoxus/pkg/eudoxus"
)

// datasetSource names where evolve's training data comes from. At most one
// of CSVPath and Formula may be set; neither selects the built-in demo
// trajectory.
type datasetSource struct {
	CSVPath    string
	Formula    string
	From       float64
	To         float64
	SampleStep float64
}

// loadEvolveConfig reads an experiment file. YAML and JSON both parse (JSON
// is a YAML subset); keys mirror the evolve flags.
func loadEvolveConfig(path string) (eudoapi.RunRequest, datasetSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return eudoapi.RunRequest{}, datasetSource{}, fmt.Errorf("load config: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return eudoapi.RunRequest{}, datasetSource{}, fmt.Errorf("parse config: %w", err)
	}

	var req eudoapi.RunRequest
	var src datasetSource
	if v, ok := asString(raw["label"]); ok {
		req.Label = v
	}
	if v, ok := asString(raw["dataset_csv"]); ok {
		src.CSVPath = v
	}
	if v, ok := asString(raw["formula"]); ok {
		src.Formula = v
	}
	if v, ok := asFloat64(raw["from"]); ok {
		src.From = v
	}
	if v, ok := asFloat64(raw["to"]); ok {
		src.To = v
	}
	if v, ok := asFloat64(raw["sample_step"]); ok {
		src.SampleStep = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt(raw["elite_count"]); ok {
		req.EliteCount = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asString(raw["selection"]); ok {
		req.Selection = v
	}
	if v, ok := asFloat64(raw["step"]); ok {
		req.Step = v
	}
	if v, ok := asInt(raw["max_len"]); ok {
		req.MaxLen = v
	}
	if v, ok := asFloat64(raw["const_range"]); ok {
		req.ConstRange = v
	}
	if v, ok := asInt(raw["cache_size"]); ok {
		req.CacheSize = v
	}
	if v, ok := asInt(raw["top_k"]); ok {
		req.TopK = v
	}
	if constants, ok := raw["constants"].(map[string]any); ok {
		req.Constants = make(map[string]float64, len(constants))
		for token, value := range constants {
			number, ok := asFloat64(value)
			if !ok {
				return eudoapi.RunRequest{}, datasetSource{}, fmt.Errorf("constant %s must be numeric", token)
			}
			req.Constants[token] = number
		}
	}

	return req, src, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies explicitly-set flags on top of file values, so
// precedence is defaults, then file, then flags.
func overrideFromFlags(req *eudoapi.RunRequest, src *datasetSource, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "label":
			req.Label = v.(string)
		case "data":
			src.CSVPath = v.(string)
		case "formula":
			src.Formula = v.(string)
		case "from":
			src.From = v.(float64)
		case "to":
			src.To = v.(float64)
		case "sample-step":
			src.SampleStep = v.(float64)
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "elite":
			req.EliteCount = v.(int)
		case "workers":
			req.Workers = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "selection":
			req.Selection = v.(string)
		case "step":
			req.Step = v.(float64)
		case "max-len":
			req.MaxLen = v.(int)
		case "const-range":
			req.ConstRange = v.(float64)
		case "cache-size":
			req.CacheSize = v.(int)
		case "top-k":
			req.TopK = v.(int)
		}
	}
}
