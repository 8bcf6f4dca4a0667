package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Fitness is a float64 that survives JSON round-trips even when NaN or
// infinite. Candidates that blow up numerically legitimately score NaN, and
// encoding/json rejects non-finite numbers, so those are encoded as strings.
type Fitness float64

func (f Fitness) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	default:
		return json.Marshal(v)
	}
}

func (f *Fitness) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "NaN":
			*f = Fitness(math.NaN())
		case "+Inf":
			*f = Fitness(math.Inf(1))
		case "-Inf":
			*f = Fitness(math.Inf(-1))
		default:
			return fmt.Errorf("invalid fitness value %q", s)
		}
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Fitness(v)
	return nil
}

// ScoredExpression is a candidate in its canonical prefix rendering paired
// with the fitness it earned. Lower fitness is better.
type ScoredExpression struct {
	Expression string  `json:"expression"`
	Fitness    Fitness `json:"fitness"`
}

// GenerationReport summarizes one scored generation. Mean and worst cover
// the candidates that produced a usable number; FailedCount tallies the rest.
type GenerationReport struct {
	Generation        int                `json:"generation"`
	BestFitness       Fitness            `json:"best_fitness"`
	MeanFitness       Fitness            `json:"mean_fitness"`
	WorstFitness      Fitness            `json:"worst_fitness"`
	FailedCount       int                `json:"failed_count"`
	UniqueExpressions int                `json:"unique_expressions"`
	MeanLength        float64            `json:"mean_length"`
	BestExpression    string             `json:"best_expression"`
	Top               []ScoredExpression `json:"top,omitempty"`
}

// RunRecord is the persistent summary of one evolution run. Generation
// reports and top expressions are stored under their own run-scoped keys.
type RunRecord struct {
	VersionedRecord
	ID             string           `json:"id"`
	Label          string           `json:"label"`
	DatasetLabel   string           `json:"dataset_label"`
	SampleCount    int              `json:"sample_count"`
	Seed           int64            `json:"seed"`
	PopulationSize int              `json:"population_size"`
	Generations    int              `json:"generations"`
	EliteCount     int              `json:"elite_count"`
	MaxLen         int              `json:"max_len"`
	ConstRange     float64          `json:"const_range"`
	Step           float64          `json:"step"`
	Selection      string           `json:"selection"`
	Best           ScoredExpression `json:"best"`
	CacheHits      int64            `json:"cache_hits"`
	CacheMisses    int64            `json:"cache_misses"`
	CreatedAtUTC   string           `json:"created_at_utc"`
}
