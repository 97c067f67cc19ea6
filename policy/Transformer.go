package policy

import (
	"fmt"

	"github.com/experiorlab/experior/config"
	"github.com/experiorlab/experior/network"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Transformer is a transformer policy over bandit arms. The underlying
// network is exposed for trainers that build a loss on its graph; the
// policy's own virtual machine is created lazily, so a trainer can
// extend the graph before the first forward pass.
type Transformer struct {
	net network.NeuralNet
	vm  G.VM
}

// NewTransformer returns a new transformer policy.
func NewTransformer(conf config.PolicyConfig, batch, seq,
	numActions int) (*Transformer, error) {
	dt := tensor.Float64
	if conf.Dtype == "float32" {
		dt = tensor.Float32
	}

	net, err := network.NewTransformer(network.TransformerConfig{
		HDim:     conf.HDim,
		NumHeads: conf.NumHeads,
		NBlocks:  conf.NBlocks,
		DropP:    conf.DropP,
		Dtype:    dt,
	}, batch, seq, numActions)
	if err != nil {
		return nil, fmt.Errorf("newTransformer: %v", err)
	}

	return &Transformer{net: net}, nil
}

// Network returns the policy's underlying neural network.
func (t *Transformer) Network() network.NeuralNet {
	return t.net
}

// LogProbs runs the forward pass on a batch of padded histories and
// returns the log-probabilities over arms.
func (t *Transformer) LogProbs(timesteps, actions []int,
	rewards []float64) (*mat.Dense, error) {
	if err := t.net.SetInputs(timesteps, actions, rewards); err != nil {
		return nil, fmt.Errorf("logProbs: %v", err)
	}

	if t.vm == nil {
		t.vm = G.NewTapeMachine(t.net.Graph())
	}

	t.vm.Reset()
	if err := t.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("logProbs: %v", err)
	}

	return valueToDense(t.net.Output(), t.BatchSize(), t.NumActions())
}

// BatchSize returns the number of histories per forward pass.
func (t *Transformer) BatchSize() int {
	return t.net.BatchSize()
}

// SeqLen returns the padded history length the policy accepts.
func (t *Transformer) SeqLen() int {
	return t.net.SeqLen()
}

// NumActions returns the number of arms the policy chooses between.
func (t *Transformer) NumActions() int {
	return t.net.NumActions()
}

// Sync copies the weights of another transformer policy into this one.
func (t *Transformer) Sync(source *Transformer) error {
	return t.net.Set(source.net)
}

// CloneWithBatch returns a policy with the same weights accepting a
// different batch size, for behaviour/train instance splits.
func (t *Transformer) CloneWithBatch(batch int) (*Transformer, error) {
	net, err := t.net.CloneWithBatch(batch)
	if err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %v", err)
	}
	return &Transformer{net: net}, nil
}

// valueToDense converts a network output value to a gonum matrix.
func valueToDense(v G.Value, rows, cols int) (*mat.Dense, error) {
	if v == nil {
		return nil, fmt.Errorf("logProbs: no output value")
	}

	var data []float64
	switch backing := v.Data().(type) {
	case []float64:
		data = make([]float64, len(backing))
		copy(data, backing)
	case []float32:
		data = make([]float64, len(backing))
		for i, f := range backing {
			data[i] = float64(f)
		}
	default:
		return nil, fmt.Errorf("logProbs: unexpected output type %T",
			v.Data())
	}

	if len(data) != rows*cols {
		return nil, fmt.Errorf("logProbs: expected %d values, got %d",
			rows*cols, len(data))
	}
	return mat.NewDense(rows, cols, data), nil
}
