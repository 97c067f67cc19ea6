package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Weights extracts the learnable weights of a network as float64
// slices keyed by node name, for serialization.
func Weights(net NeuralNet) map[string][]float64 {
	out := make(map[string][]float64, len(net.Learnables()))
	for _, node := range net.Learnables() {
		switch data := node.Value().Data().(type) {
		case []float64:
			out[node.Name()] = append([]float64(nil), data...)
		case []float32:
			converted := make([]float64, len(data))
			for i, v := range data {
				converted[i] = float64(v)
			}
			out[node.Name()] = converted
		}
	}
	return out
}

// SetWeights loads extracted weights back into a network of the same
// architecture.
func SetWeights(net NeuralNet, weights map[string][]float64) error {
	for _, node := range net.Learnables() {
		data, ok := weights[node.Name()]
		if !ok {
			return fmt.Errorf("setWeights: no weights for node %q",
				node.Name())
		}
		if len(data) != node.Shape().TotalSize() {
			return fmt.Errorf("setWeights: node %q expects %d values, "+
				"got %d", node.Name(), node.Shape().TotalSize(), len(data))
		}

		var backing interface{}
		if node.Dtype() == tensor.Float32 {
			converted := make([]float32, len(data))
			for i, v := range data {
				converted[i] = float32(v)
			}
			backing = converted
		} else {
			backing = append([]float64(nil), data...)
		}

		err := G.Let(node, tensor.New(
			tensor.WithBacking(backing),
			tensor.WithShape(node.Shape()...),
		))
		if err != nil {
			return fmt.Errorf("setWeights: node %q: %v", node.Name(), err)
		}
	}
	return nil
}
