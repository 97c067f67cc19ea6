package tracker

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTrackAlignsSeries(t *testing.T) {
	r := NewRun("test", t.TempDir())

	r.Track(1, map[string]float64{"policy/loss": 0.5})
	r.Track(2, map[string]float64{
		"policy/loss": 0.4,
		"prior/loss":  -1.0,
	})
	r.Track(3, map[string]float64{"prior/loss": -1.5})

	assert.Equal(t, []int{1, 2, 3}, r.data.Epochs)

	// A metric appearing late backfills with zeros; one dropped later
	// carries its last value forward.
	assert.Equal(t, []float64{0.5, 0.4, 0.4}, r.data.Series["policy/loss"])
	assert.Equal(t, []float64{0, -1.0, -1.5}, r.data.Series["prior/loss"])
}

func TestRunSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := NewRun("experior-smoke", dir)
	r.Track(1, map[string]float64{"policy/regret": 2.0})
	r.Track(2, map[string]float64{"policy/regret": 1.5})

	require.NoError(t, r.Save())

	data, err := LoadData(filepath.Join(dir, "run.bin"))
	require.NoError(t, err)

	assert.Equal(t, r.ID(), data.ID)
	assert.Equal(t, "experior-smoke", data.Project)
	assert.Equal(t, []int{1, 2}, data.Epochs)
	assert.Equal(t, []float64{2.0, 1.5}, data.Series["policy/regret"])
}

func TestRunIDsUnique(t *testing.T) {
	dir := t.TempDir()
	assert.NotEqual(t, NewRun("p", dir).ID(), NewRun("p", dir).ID())
}

func TestLoadDataMissingFile(t *testing.T) {
	_, err := LoadData(filepath.Join(t.TempDir(), "run.bin"))
	assert.Error(t, err)
}

func TestConsoleTrack(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	c := NewConsole(log.WithField("run_id", "abc"))
	c.Track(3, map[string]float64{"policy/loss": 0.25})

	out := buf.String()
	assert.Contains(t, out, "epoch=3")
	assert.Contains(t, out, "policy/loss=0.25")
	assert.Contains(t, out, "run_id=abc")

	assert.NoError(t, c.Save())
}
