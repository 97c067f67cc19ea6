// Package prior implements priors over the arm means of a Bernoulli
// bandit. A prior has learnable parameters: the minimax trainer
// performs score-function ascent on them to find the regret-maximizing
// environment distribution.
package prior

import (
	"fmt"

	"github.com/experiorlab/experior/config"
	"gonum.org/v1/gonum/mat"
)

// Prior is a learnable distribution over mean-reward vectors.
type Prior interface {
	// Sample returns n draws from the prior as an (n × numActions)
	// matrix of arm means.
	Sample(n int) *mat.Dense

	// LogProb returns the log density of an arm-mean vector.
	LogProb(mu []float64) float64

	// ScoreGrad returns the gradient of LogProb(mu) with respect to
	// the prior's learnable parameters, in the same layout as
	// Params().
	ScoreGrad(mu []float64) []float64

	// Params returns a copy of the learnable parameters.
	Params() []float64

	// Step applies a gradient-ascent update with the given step size.
	Step(grad []float64, stepSize float64) error

	NumActions() int
}

// New returns the prior described by the configuration.
func New(conf config.PriorConfig, seed uint64) (Prior, error) {
	switch conf.Name {
	case config.BetaPrior:
		return NewBeta(conf, seed)
	}
	return nil, fmt.Errorf("new: no such prior %q", conf.Name)
}
