// Package eval implements offline evaluation of bandit policies:
// Bayesian regret against environments drawn from a flat prior, and
// reference baselines to compare a learned policy against.
package eval

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/experiorlab/experior/policy"
	"github.com/experiorlab/experior/rollout"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// BayesRegret returns the cumulative expected regret of the policy at
// every step of play, averaged over environments whose arm means are
// drawn uniformly from [0, 1). The policy must accept batches of
// mcSamples histories.
func BayesRegret(rng *rand.Rand, pol policy.Policy, numActions, horizon,
	mcSamples int) ([]float64, error) {
	if pol.BatchSize() != mcSamples {
		return nil, fmt.Errorf("bayesRegret: policy expects a batch of %d, "+
			"need %d", pol.BatchSize(), mcSamples)
	}
	if pol.NumActions() != numActions {
		return nil, fmt.Errorf("bayesRegret: policy plays %d arms, need %d",
			pol.NumActions(), numActions)
	}

	muVectors := mat.NewDense(mcSamples, numActions, nil)
	for i := 0; i < mcSamples; i++ {
		for j := 0; j < numActions; j++ {
			muVectors.Set(i, j, rng.Float64())
		}
	}

	res, err := rollout.Run(rng, pol, muVectors, horizon)
	if err != nil {
		return nil, fmt.Errorf("bayesRegret: %v", err)
	}

	regret := make([]float64, horizon)
	cumulative := 0.0
	for t := 0; t < horizon; t++ {
		stepGap := 0.0
		for i := 0; i < mcSamples; i++ {
			mu := muVectors.RawRowView(i)
			stepGap += floats.Max(mu) - mu[res.Actions[i][t]]
		}
		cumulative += stepGap / float64(mcSamples)
		regret[t] = cumulative
	}

	return regret, nil
}
