package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func testConf() TransformerConfig {
	return TransformerConfig{
		HDim:     8,
		NumHeads: 2,
		NBlocks:  1,
		DropP:    0,
		Dtype:    tensor.Float64,
	}
}

func TestNewTransformer(t *testing.T) {
	net, err := NewTransformer(testConf(), 2, 5, 3)
	require.NoError(t, err)

	assert.Equal(t, 2, net.BatchSize())
	assert.Equal(t, 5, net.SeqLen())
	assert.Equal(t, 3, net.NumActions())
	assert.NotEmpty(t, net.Learnables())
	assert.Len(t, net.Model(), len(net.Learnables()))
}

func TestNewTransformerRejectsBadConfig(t *testing.T) {
	conf := testConf()
	conf.HDim = 0
	_, err := NewTransformer(conf, 2, 5, 3)
	assert.Error(t, err)

	conf = testConf()
	conf.NumHeads = 3 // does not divide HDim
	_, err = NewTransformer(conf, 2, 5, 3)
	assert.Error(t, err)

	_, err = NewTransformer(testConf(), 0, 5, 3)
	assert.Error(t, err)
}

func TestSetInputsValidatesHistories(t *testing.T) {
	net, err := NewTransformer(testConf(), 2, 5, 3)
	require.NoError(t, err)

	n := net.BatchSize() * net.SeqLen()

	// Wrong length.
	err = net.SetInputs(make([]int, n-1), make([]int, n), make([]float64, n))
	assert.Error(t, err)

	// Timestep beyond the padded sequence.
	timesteps := make([]int, n)
	timesteps[0] = net.SeqLen()
	err = net.SetInputs(timesteps, make([]int, n), make([]float64, n))
	assert.Error(t, err)

	// Action out of range.
	actions := make([]int, n)
	actions[3] = net.NumActions()
	err = net.SetInputs(make([]int, n), actions, make([]float64, n))
	assert.Error(t, err)

	err = net.SetInputs(make([]int, n), make([]int, n), make([]float64, n))
	assert.NoError(t, err)
}

func TestSetCopiesWeights(t *testing.T) {
	source, err := NewTransformer(testConf(), 2, 5, 3)
	require.NoError(t, err)
	dest, err := NewTransformer(testConf(), 2, 5, 3)
	require.NoError(t, err)

	// Fresh networks initialize differently.
	assert.NotEqual(t, Weights(source), Weights(dest))

	require.NoError(t, dest.Set(source))
	assert.Equal(t, Weights(source), Weights(dest))
}

func TestSetRejectsDifferentArchitecture(t *testing.T) {
	source, err := NewTransformer(testConf(), 2, 5, 3)
	require.NoError(t, err)

	conf := testConf()
	conf.NBlocks = 2
	dest, err := NewTransformer(conf, 2, 5, 3)
	require.NoError(t, err)

	assert.Error(t, dest.Set(source))
}

func TestCloneWithBatchSharesWeights(t *testing.T) {
	net, err := NewTransformer(testConf(), 2, 5, 3)
	require.NoError(t, err)

	clone, err := net.CloneWithBatch(7)
	require.NoError(t, err)

	assert.Equal(t, 7, clone.BatchSize())
	assert.Equal(t, net.SeqLen(), clone.SeqLen())
	assert.Equal(t, Weights(net), Weights(clone))
}

func TestWeightsRoundTrip(t *testing.T) {
	net, err := NewTransformer(testConf(), 2, 5, 3)
	require.NoError(t, err)
	other, err := NewTransformer(testConf(), 2, 5, 3)
	require.NoError(t, err)

	require.NoError(t, SetWeights(other, Weights(net)))
	assert.Equal(t, Weights(net), Weights(other))
}

func TestWeightsRoundTripFloat32(t *testing.T) {
	conf := testConf()
	conf.Dtype = tensor.Float32

	net, err := NewTransformer(conf, 2, 5, 3)
	require.NoError(t, err)
	other, err := NewTransformer(conf, 2, 5, 3)
	require.NoError(t, err)

	require.NoError(t, SetWeights(other, Weights(net)))
	assert.Equal(t, Weights(net), Weights(other))
}

func TestSetWeightsRejectsMismatch(t *testing.T) {
	net, err := NewTransformer(testConf(), 2, 5, 3)
	require.NoError(t, err)

	weights := Weights(net)
	for name := range weights {
		weights[name] = weights[name][:len(weights[name])-1]
		break
	}
	assert.Error(t, SetWeights(net, weights))

	assert.Error(t, SetWeights(net, map[string][]float64{}))
}
