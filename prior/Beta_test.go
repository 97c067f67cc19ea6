package prior

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/experiorlab/experior/config"
)

func floatPtr(f float64) *float64 { return &f }

func betaConf(numActions int) config.PriorConfig {
	return config.PriorConfig{
		Name:       config.BetaPrior,
		NumActions: numActions,
		InitAlpha:  floatPtr(2.0),
		InitBeta:   floatPtr(3.0),
		Epsilon:    1e-6,
	}
}

func TestNewBetaShapes(t *testing.T) {
	b, err := NewBeta(betaConf(4), 1)
	require.NoError(t, err)

	assert.Equal(t, 4, b.NumActions())
	for j, alpha := range b.Alphas() {
		assert.InDelta(t, 4.0, alpha, 1e-5, "arm %d", j)
	}
	for j, beta := range b.Betas() {
		assert.InDelta(t, 9.0, beta, 1e-5, "arm %d", j)
	}
}

func TestNewBetaRandomInit(t *testing.T) {
	conf := betaConf(8)
	conf.InitAlpha = nil
	conf.InitBeta = nil

	b, err := NewBeta(conf, 7)
	require.NoError(t, err)

	for _, alpha := range b.Alphas() {
		assert.Greater(t, alpha, 0.0)
		assert.Less(t, alpha, 25.0+1e-5)
	}

	// The same seed draws the same initial shapes.
	b2, err := NewBeta(conf, 7)
	require.NoError(t, err)
	assert.Equal(t, b.Params(), b2.Params())
}

func TestNewBetaRejectsBadConfig(t *testing.T) {
	conf := betaConf(0)
	_, err := NewBeta(conf, 1)
	assert.Error(t, err)

	conf = betaConf(3)
	conf.Epsilon = 0
	_, err = NewBeta(conf, 1)
	assert.Error(t, err)
}

func TestBetaSample(t *testing.T) {
	b, err := NewBeta(betaConf(5), 13)
	require.NoError(t, err)

	mu := b.Sample(100)
	rows, cols := mu.Dims()
	assert.Equal(t, 100, rows)
	assert.Equal(t, 5, cols)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m := mu.At(i, j)
			assert.GreaterOrEqual(t, m, 0.0)
			assert.LessOrEqual(t, m, 1.0)
		}
	}
}

func TestBetaLogProbSymmetricPeak(t *testing.T) {
	conf := betaConf(2)
	conf.InitAlpha = floatPtr(math.Sqrt(2)) // alpha = beta = 2
	conf.InitBeta = floatPtr(math.Sqrt(2))

	b, err := NewBeta(conf, 1)
	require.NoError(t, err)

	// Beta(2, 2) peaks at 0.5.
	center := b.LogProb([]float64{0.5, 0.5})
	off := b.LogProb([]float64{0.1, 0.9})
	assert.Greater(t, center, off)
}

func TestBetaScoreGradAscendsLikelihood(t *testing.T) {
	b, err := NewBeta(betaConf(3), 1)
	require.NoError(t, err)

	mu := []float64{0.2, 0.5, 0.8}
	before := b.LogProb(mu)

	grad := b.ScoreGrad(mu)
	require.Len(t, grad, 6)
	require.NoError(t, b.Step(grad, 0.01))

	assert.Greater(t, b.LogProb(mu), before)
}

func TestBetaStepRejectsBadGradient(t *testing.T) {
	b, err := NewBeta(betaConf(3), 1)
	require.NoError(t, err)

	assert.Error(t, b.Step([]float64{1, 2, 3}, 0.1))
}

func TestBetaParamsCopy(t *testing.T) {
	b, err := NewBeta(betaConf(2), 1)
	require.NoError(t, err)

	params := b.Params()
	params[0] = -100

	assert.NotEqual(t, params[0], b.Params()[0])
}

func TestBetaGobRoundTrip(t *testing.T) {
	b, err := NewBeta(betaConf(4), 99)
	require.NoError(t, err)

	raw, err := b.GobEncode()
	require.NoError(t, err)

	var restored Beta
	require.NoError(t, restored.GobDecode(raw))

	assert.Equal(t, b.Params(), restored.Params())
	assert.Equal(t, b.Alphas(), restored.Alphas())
}

func TestNewDispatch(t *testing.T) {
	p, err := New(betaConf(3), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, p.NumActions())

	conf := betaConf(3)
	conf.Name = "dirichlet"
	_, err = New(conf, 5)
	assert.Error(t, err)
}
