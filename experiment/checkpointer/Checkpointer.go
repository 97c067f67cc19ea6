// Package checkpointer implements cadence-based checkpointing of
// training state. A Manager saves a snapshot every saveEvery epochs
// and prunes old snapshots, permanently keeping those whose epoch is a
// multiple of keepEvery.
package checkpointer

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Manager saves and restores gob-encoded training snapshots.
type Manager struct {
	dir       string
	saveEvery int
	keepEvery int
}

// NewManager returns a checkpoint manager writing under dir. Snapshots
// are saved every saveEvery epochs; on each save, earlier snapshots
// whose epoch is not a multiple of keepEvery are deleted.
func NewManager(dir string, saveEvery, keepEvery int) (*Manager, error) {
	if saveEvery <= 0 || keepEvery <= 0 {
		return nil, fmt.Errorf("newManager: cadences must be positive")
	}
	if saveEvery > keepEvery {
		return nil, fmt.Errorf("newManager: saveEvery (%d) must not exceed "+
			"keepEvery (%d)", saveEvery, keepEvery)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("newManager: %w", err)
	}

	return &Manager{dir: dir, saveEvery: saveEvery, keepEvery: keepEvery},
		nil
}

// ShouldSave reports whether the epoch falls on the save cadence.
func (m *Manager) ShouldSave(epoch int) bool {
	return epoch%m.saveEvery == 0
}

// Save writes a snapshot for the epoch if the epoch falls on the save
// cadence, then prunes old snapshots.
func (m *Manager) Save(epoch int, snapshot interface{}) error {
	if !m.ShouldSave(epoch) {
		return nil
	}

	file, err := os.Create(m.filename(epoch))
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(snapshot); err != nil {
		return fmt.Errorf("save: encoding epoch %d: %w", epoch, err)
	}

	return m.prune(epoch)
}

// Restore decodes the snapshot of the given epoch into target.
func (m *Manager) Restore(epoch int, target interface{}) error {
	file, err := os.Open(m.filename(epoch))
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(target); err != nil {
		return fmt.Errorf("restore: decoding epoch %d: %w", epoch, err)
	}
	return nil
}

// LatestEpoch returns the newest saved epoch, or 0 if no snapshot
// exists.
func (m *Manager) LatestEpoch() (int, error) {
	epochs, err := m.epochs()
	if err != nil {
		return 0, fmt.Errorf("latestEpoch: %w", err)
	}
	if len(epochs) == 0 {
		return 0, nil
	}
	return epochs[len(epochs)-1], nil
}

// prune deletes snapshots older than the current epoch that do not
// fall on the keep cadence.
func (m *Manager) prune(current int) error {
	epochs, err := m.epochs()
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	for _, epoch := range epochs {
		if epoch >= current || epoch%m.keepEvery == 0 {
			continue
		}
		if err := os.Remove(m.filename(epoch)); err != nil {
			return fmt.Errorf("prune: %w", err)
		}
	}
	return nil
}

// epochs returns the saved epochs in increasing order.
func (m *Manager) epochs() ([]int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}

	var out []int
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "ckpt-") ||
			!strings.HasSuffix(name, ".bin") {
			continue
		}
		epoch, err := strconv.Atoi(
			strings.TrimSuffix(strings.TrimPrefix(name, "ckpt-"), ".bin"))
		if err != nil {
			continue
		}
		out = append(out, epoch)
	}

	sort.Ints(out)
	return out, nil
}

func (m *Manager) filename(epoch int) string {
	return filepath.Join(m.dir, fmt.Sprintf("ckpt-%d.bin", epoch))
}
