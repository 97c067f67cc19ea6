// Package policy implements history-conditioned bandit policies. A
// policy maps a batch of padded interaction histories to a
// log-probability distribution over the arms.
package policy

import (
	"fmt"

	"github.com/experiorlab/experior/config"
	"gonum.org/v1/gonum/mat"
)

// Policy is a distribution over arms conditioned on interaction
// history. Histories are padded to a fixed length: timesteps holds the
// step indices filled so far (zero beyond the current step), actions
// the arms pulled and rewards the rewards received, each flattened
// row-major to BatchSize()*SeqLen() entries.
type Policy interface {
	// LogProbs returns the log-probabilities over arms for each
	// history in the batch, shape (BatchSize, NumActions).
	LogProbs(timesteps, actions []int, rewards []float64) (*mat.Dense, error)

	BatchSize() int
	SeqLen() int
	NumActions() int
}

// New returns the policy described by the configuration, accepting
// batch histories padded to seq steps over numActions arms.
func New(conf config.PolicyConfig, batch, seq,
	numActions int) (Policy, error) {
	switch conf.Name {
	case config.TransformerPolicy:
		return NewTransformer(conf, batch, seq, numActions)
	}
	return nil, fmt.Errorf("new: no such policy %q", conf.Name)
}
