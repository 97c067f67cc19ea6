// Package trainer implements minimax training of a policy and a
// prior. The policy is trained to minimize Bayesian regret under the
// current prior while the prior performs score-function ascent on the
// same regret, searching for the environment distribution the policy
// handles worst.
package trainer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Regret returns the expected regret of each trajectory: the gap
// between always playing the best arm and the expected reward of the
// arms actually played. Actions is indexed [env][step] and muVectors
// holds one environment's arm means per row.
func Regret(actions [][]int, muVectors *mat.Dense) []float64 {
	n, _ := muVectors.Dims()
	if len(actions) != n {
		panic(fmt.Sprintf("regret: %d action rows for %d environments",
			len(actions), n))
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		mu := muVectors.RawRowView(i)
		best := floats.Max(mu)

		collected := 0.0
		for _, arm := range actions[i] {
			collected += mu[arm]
		}
		out[i] = float64(len(actions[i]))*best - collected
	}
	return out
}

// PriorMaxLoss returns the loss of the prior's maximization objective:
// the negated mean expected regret of the policy's trajectories under
// the sampled environments. The score-function gradient of this loss
// weights each environment's score by its trajectory regret, so the
// importance ratio of the original objective reduces to one.
func PriorMaxLoss(actions [][]int, muVectors *mat.Dense) float64 {
	regrets := Regret(actions, muVectors)
	total := 0.0
	for _, r := range regrets {
		total += r
	}
	return -total / float64(len(regrets))
}

// PriorMLELoss returns the weighted negative log-likelihood of sampled
// environments under the prior. A nil density weights every sample
// equally.
func PriorMLELoss(logProbs, density []float64) float64 {
	if density == nil {
		density = make([]float64, len(logProbs))
		for i := range density {
			density[i] = 1
		}
	}
	if len(density) != len(logProbs) {
		panic(fmt.Sprintf("priorMLELoss: %d densities for %d log "+
			"probabilities", len(density), len(logProbs)))
	}

	return -floats.Dot(density, logProbs) / floats.Sum(density)
}
