package checkpointer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state struct {
	Epoch   int
	Weights []float64
}

func TestNewManagerValidatesCadences(t *testing.T) {
	dir := t.TempDir()

	_, err := NewManager(dir, 0, 10)
	assert.Error(t, err)

	_, err = NewManager(dir, 10, 0)
	assert.Error(t, err)

	// Saving less often than keeping makes the keep cadence skip
	// epochs that were never written.
	_, err = NewManager(dir, 200, 100)
	assert.Error(t, err)

	m, err := NewManager(filepath.Join(dir, "nested", "ckpts"), 10, 100)
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestShouldSave(t *testing.T) {
	m, err := NewManager(t.TempDir(), 10, 100)
	require.NoError(t, err)

	assert.False(t, m.ShouldSave(1))
	assert.False(t, m.ShouldSave(15))
	assert.True(t, m.ShouldSave(10))
	assert.True(t, m.ShouldSave(100))
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	m, err := NewManager(t.TempDir(), 10, 100)
	require.NoError(t, err)

	saved := state{Epoch: 10, Weights: []float64{0.1, -2.5, 3.0}}
	require.NoError(t, m.Save(10, &saved))

	var restored state
	require.NoError(t, m.Restore(10, &restored))
	assert.Equal(t, saved, restored)
}

func TestSaveSkipsOffCadenceEpochs(t *testing.T) {
	m, err := NewManager(t.TempDir(), 10, 100)
	require.NoError(t, err)

	require.NoError(t, m.Save(7, &state{Epoch: 7}))

	latest, err := m.LatestEpoch()
	require.NoError(t, err)
	assert.Zero(t, latest)
}

func TestPruneKeepsKeepCadence(t *testing.T) {
	m, err := NewManager(t.TempDir(), 10, 100)
	require.NoError(t, err)

	for epoch := 10; epoch <= 250; epoch += 10 {
		require.NoError(t, m.Save(epoch, &state{Epoch: epoch}))
	}

	epochs, err := m.epochs()
	require.NoError(t, err)

	// Keep-cadence epochs survive forever, plus the newest save.
	assert.Equal(t, []int{100, 200, 250}, epochs)

	var restored state
	require.NoError(t, m.Restore(100, &restored))
	assert.Equal(t, 100, restored.Epoch)

	assert.Error(t, m.Restore(110, &restored))
}

func TestLatestEpoch(t *testing.T) {
	m, err := NewManager(t.TempDir(), 10, 100)
	require.NoError(t, err)

	latest, err := m.LatestEpoch()
	require.NoError(t, err)
	assert.Zero(t, latest)

	require.NoError(t, m.Save(10, &state{Epoch: 10}))
	require.NoError(t, m.Save(20, &state{Epoch: 20}))

	latest, err = m.LatestEpoch()
	require.NoError(t, err)
	assert.Equal(t, 20, latest)
}
