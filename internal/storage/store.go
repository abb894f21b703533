// Package storage persists finished runs to disk, one directory per
// run holding a JSON metadata record and a CSV of the tracked series.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/fieldsim/internal/config"
	"github.com/san-kum/fieldsim/internal/metrics"
	"github.com/san-kum/fieldsim/internal/sim"
)

// Store writes runs under BaseDir.
type Store struct {
	BaseDir string
}

func New(baseDir string) *Store { return &Store{BaseDir: baseDir} }

// Init creates the base directory.
func (s *Store) Init() error { return os.MkdirAll(s.BaseDir, 0755) }

// RunMetadata is the sidecar record saved with every run.
type RunMetadata struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Stepper    string             `json:"stepper"`
	Timestamp  time.Time          `json:"timestamp"`
	Dt         string             `json:"dt"`
	Steps      int                `json:"steps"`
	WallTime   string             `json:"wall_time"`
	Tracked    []string           `json:"tracked,omitempty"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
}

// SaveRun writes metadata.json and series.csv into a fresh
// {name}-{timestamp} directory under BaseDir and returns the run ID.
func (s *Store) SaveRun(name string, cfg *config.Config, result sim.Result, series *metrics.Series) (string, error) {
	now := time.Now().UTC()
	runID := fmt.Sprintf("%s-%s", name, now.Format("20060102-150405"))
	runDir := filepath.Join(s.BaseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("storage: create %s: %w", runDir, err)
	}

	meta := RunMetadata{
		ID:         runID,
		Model:      cfg.Model,
		Stepper:    cfg.Stepper,
		Timestamp:  now,
		Dt:         cfg.Dt.String(),
		Steps:      result.Steps,
		WallTime:   result.Elapsed.String(),
		Tracked:    series.Quantities(),
		Parameters: cfg.Parameters,
	}
	if err := writeMetadata(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeSeries(filepath.Join(runDir, "series.csv"), series); err != nil {
		return "", err
	}
	return runID, nil
}

func writeMetadata(path string, meta RunMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("storage: encode metadata: %w", err)
	}
	return nil
}

func writeSeries(path string, series *metrics.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	quantities := series.Quantities()
	header := append([]string{"step", "time"}, quantities...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("storage: write series: %w", err)
	}
	steps := series.Steps()
	times := series.Times()
	for i := range steps {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(steps[i]))
		row = append(row, times[i].Format(time.RFC3339Nano))
		for _, q := range quantities {
			row = append(row, strconv.FormatFloat(series.Values(q)[i], 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("storage: write series: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("storage: write series: %w", err)
	}
	return nil
}

// List returns the metadata of every saved run, newest first. Entries
// without a readable metadata file are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, fmt.Errorf("storage: %w", err)
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.LoadMetadata(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

// LoadMetadata reads one run's metadata record.
func (s *Store) LoadMetadata(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.BaseDir, runID, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: parse metadata for %s: %w", runID, err)
	}
	return &meta, nil
}

// SeriesData is a series.csv read back into memory.
type SeriesData struct {
	Names   []string
	Steps   []int
	Times   []time.Time
	Columns map[string][]float64
}

// LoadSeries reads a run's tracked series back from disk.
func (s *Store) LoadSeries(runID string) (*SeriesData, error) {
	f, err := os.Open(filepath.Join(s.BaseDir, runID, "series.csv"))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("storage: read series for %s: %w", runID, err)
	}
	data := &SeriesData{Columns: map[string][]float64{}}
	if len(records) == 0 {
		return data, nil
	}
	header := records[0]
	if len(header) < 2 || header[0] != "step" || header[1] != "time" {
		return nil, fmt.Errorf("storage: unexpected series header %v for %s", header, runID)
	}
	data.Names = header[2:]
	for i, record := range records[1:] {
		step, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("storage: series row %d for %s: %w", i+1, runID, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, record[1])
		if err != nil {
			return nil, fmt.Errorf("storage: series row %d for %s: %w", i+1, runID, err)
		}
		data.Steps = append(data.Steps, step)
		data.Times = append(data.Times, ts)
		for j, name := range data.Names {
			v, err := strconv.ParseFloat(record[j+2], 64)
			if err != nil {
				return nil, fmt.Errorf("storage: series row %d for %s: %w", i+1, runID, err)
			}
			data.Columns[name] = append(data.Columns[name], v)
		}
	}
	return data, nil
}
