package expert

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/experiorlab/experior/config"
	"github.com/experiorlab/experior/prior"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Synthetic generates demonstrations by drawing environments from its
// nested prior and playing the best arm of each.
type Synthetic struct {
	prior prior.Prior
	rng   *rand.Rand
}

// NewSynthetic returns a new synthetic expert.
func NewSynthetic(conf config.ExpertConfig, seed uint64) (*Synthetic, error) {
	p, err := prior.New(conf.Prior, seed)
	if err != nil {
		return nil, fmt.Errorf("newSynthetic: %v", err)
	}

	return &Synthetic{
		prior: p,
		rng:   rand.New(rand.NewSource(seed)),
	}, nil
}

// SampleEnvs returns n arm-mean vectors drawn from the expert's prior.
func (s *Synthetic) SampleEnvs(n int) *mat.Dense {
	return s.prior.Sample(n)
}

// Demonstrate plays each environment for horizon steps, always pulling
// the arm with the largest mean.
func (s *Synthetic) Demonstrate(muVectors *mat.Dense,
	horizon int) []Trajectory {
	n, _ := muVectors.Dims()

	out := make([]Trajectory, n)
	for i := 0; i < n; i++ {
		mu := muVectors.RawRowView(i)
		best := floats.MaxIdx(mu)

		reward := distuv.Bernoulli{P: mu[best], Src: s.rng}

		traj := Trajectory{
			Mu:      append([]float64(nil), mu...),
			Actions: make([]int, horizon),
			Rewards: make([]float64, horizon),
		}
		for t := 0; t < horizon; t++ {
			traj.Actions[t] = best
			traj.Rewards[t] = reward.Rand()
		}
		out[i] = traj
	}
	return out
}

// NumActions returns the number of arms of the expert's environments.
func (s *Synthetic) NumActions() int {
	return s.prior.NumActions()
}

// Prior returns the expert's nested prior.
func (s *Synthetic) Prior() prior.Prior {
	return s.prior
}
