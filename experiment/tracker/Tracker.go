// Package tracker implements experiment tracking: per-epoch metric
// series that are kept during a run and persisted when it finishes.
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Tracker records per-epoch metrics and saves them after the
// experiment has finished.
type Tracker interface {
	Track(epoch int, metrics map[string]float64)
	Save() error
}

// LoadData loads the metric series saved by a Run tracker.
func LoadData(filename string) (*RunData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadData: %w", err)
	}
	defer file.Close()

	var data RunData
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("loadData: %w", err)
	}
	return &data, nil
}
