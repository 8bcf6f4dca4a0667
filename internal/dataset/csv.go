package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"eudoxus/internal/ode"
)

// FromCSV reads a two-column time,position file. A non-numeric first row is
// treated as a header. An empty label defaults to the file's base name.
func FromCSV(label, path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	rows, err := r.ReadAll()
	if err != nil {
		return Dataset{}, fmt.Errorf("dataset: read %s: %w", path, err)
	}

	samples := make([]ode.State, 0, len(rows))
	for i, row := range rows {
		t, errT := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		x, errX := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if errT != nil || errX != nil {
			if i == 0 {
				continue // header row
			}
			return Dataset{}, fmt.Errorf("dataset: %s row %d: bad sample %q,%q", path, i+1, row[0], row[1])
		}
		samples = append(samples, ode.State{Time: t, Position: x})
	}

	if label == "" {
		label = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return New(label, samples)
}

// WriteCSV writes the trajectory as a two-column time,position file with a
// header row, creating parent directories as needed.
func (d Dataset) WriteCSV(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("dataset: mkdir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	rows := [][]string{{"time", "position"}}
	for _, s := range d.Samples {
		rows = append(rows, []string{
			strconv.FormatFloat(s.Time, 'g', -1, 64),
			strconv.FormatFloat(s.Position, 'g', -1, 64),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("dataset: write %s: %w", path, err)
	}
	return f.Close()
}
