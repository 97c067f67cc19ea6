package tracker

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// RunData is the persisted form of a tracked run: its metadata and the
// metric series recorded over the epochs.
type RunData struct {
	ID      string
	Project string
	Started time.Time

	Epochs []int
	Series map[string][]float64
}

// Run tracks a single training run, keyed by a fresh run ID and the
// configured tracking project.
type Run struct {
	data     RunData
	filename string
}

// NewRun returns a tracker that persists its series to
// <outDir>/run.bin when saved.
func NewRun(project, outDir string) *Run {
	return &Run{
		data: RunData{
			ID:      uuid.NewString(),
			Project: project,
			Started: time.Now(),
			Series:  make(map[string][]float64),
		},
		filename: filepath.Join(outDir, "run.bin"),
	}
}

// ID returns the run's unique identifier.
func (r *Run) ID() string {
	return r.data.ID
}

// Track records one epoch's metrics. Every series stays aligned with
// Epochs: a metric absent from an epoch repeats its last value, and a
// metric first reported mid-run backfills earlier epochs with zeros.
func (r *Run) Track(epoch int, metrics map[string]float64) {
	r.data.Epochs = append(r.data.Epochs, epoch)
	n := len(r.data.Epochs)

	for k, v := range metrics {
		series, ok := r.data.Series[k]
		if !ok && n > 1 {
			series = make([]float64, n-1)
		}
		r.data.Series[k] = append(series, v)
	}

	for k, series := range r.data.Series {
		for len(series) < n {
			last := 0.0
			if len(series) > 0 {
				last = series[len(series)-1]
			}
			series = append(series, last)
		}
		r.data.Series[k] = series
	}
}

// Save persists the run's metadata and metric series.
func (r *Run) Save() error {
	file, err := os.Create(r.filename)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(r.data); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
