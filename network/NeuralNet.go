// Package network implements the neural networks used by policies,
// built on Gorgonia computational graphs.
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet is a history-conditioned action network. Implementations
// own their input nodes: callers feed a batch of padded histories with
// SetInputs, run a virtual machine over Graph(), and read the
// log-probabilities from Output().
type NeuralNet interface {
	Graph() *G.ExprGraph

	// BatchSize returns the number of histories per forward pass.
	BatchSize() int

	// SeqLen returns the padded history length the network accepts.
	SeqLen() int

	// NumActions returns the size of the action distribution.
	NumActions() int

	// SetInputs feeds a batch of histories. Timesteps and actions are
	// index sequences and rewards are scalar sequences, each of
	// length BatchSize()*SeqLen() in row-major order.
	SetInputs(timesteps, actions []int, rewards []float64) error

	// Set copies the learnable weights of another network of the same
	// architecture into this one.
	Set(NeuralNet) error

	// CloneWithBatch returns a network with the same architecture and
	// weights on a fresh graph, accepting a different batch size.
	CloneWithBatch(int) (NeuralNet, error)

	Learnables() G.Nodes
	Model() []G.ValueGrad

	// Prediction returns the graph node holding the action
	// log-probabilities, shape (BatchSize, NumActions).
	Prediction() *G.Node

	// Output returns the value of Prediction after the last run.
	Output() G.Value
}
