// Package expert implements demonstration generators. An expert owns
// its own prior over environments and plays them with full knowledge
// of the arm means; its demonstrations anchor maximum-likelihood
// training of the learned prior.
package expert

import (
	"fmt"

	"github.com/experiorlab/experior/config"
	"gonum.org/v1/gonum/mat"
)

// Trajectory is one expert demonstration: the environment's arm means
// and an oracle play over a horizon.
type Trajectory struct {
	Mu      []float64
	Actions []int
	Rewards []float64
}

// Expert generates bandit demonstrations.
type Expert interface {
	// SampleEnvs returns n arm-mean vectors drawn from the expert's
	// prior, one per row.
	SampleEnvs(n int) *mat.Dense

	// Demonstrate plays each environment for horizon steps and
	// returns the resulting trajectories.
	Demonstrate(muVectors *mat.Dense, horizon int) []Trajectory

	NumActions() int
}

// New returns the expert described by the configuration.
func New(conf config.ExpertConfig, seed uint64) (Expert, error) {
	switch conf.Name {
	case config.SyntheticExpert:
		return NewSynthetic(conf, seed)
	}
	return nil, fmt.Errorf("new: no such expert %q", conf.Name)
}
