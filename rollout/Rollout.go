// Package rollout implements Bernoulli-bandit rollouts of a policy
// against a batch of sampled environments.
package rollout

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/experiorlab/experior/policy"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Result holds the trajectories of one batch rollout. Actions and
// Rewards have one row per environment and one column per step.
// LogProbs holds the policy's full log-distribution at each step,
// indexed [step](env, arm).
type Result struct {
	Actions  [][]int
	Rewards  [][]float64
	LogProbs []*mat.Dense
}

// Return returns the sum of rewards collected by an environment's
// trajectory.
func (r *Result) Return(env int) float64 {
	total := 0.0
	for _, rew := range r.Rewards[env] {
		total += rew
	}
	return total
}

// Run rolls the policy out for horizon steps in one Bernoulli bandit
// per row of muVectors. Histories are padded to the policy's sequence
// length with a zero sentinel step at index 0, so the played history
// proper starts at step 1. Pulling arm a in environment i yields a
// Bernoulli reward with mean muVectors[i, a].
func Run(rng *rand.Rand, pol policy.Policy, muVectors *mat.Dense,
	horizon int) (*Result, error) {
	n, numActions := muVectors.Dims()
	if n != pol.BatchSize() {
		return nil, fmt.Errorf("run: policy expects a batch of %d "+
			"environments, got %d", pol.BatchSize(), n)
	}
	if numActions != pol.NumActions() {
		return nil, fmt.Errorf("run: policy plays %d arms but environments "+
			"have %d", pol.NumActions(), numActions)
	}
	if horizon <= 0 || horizon >= pol.SeqLen() {
		return nil, fmt.Errorf("run: horizon must be in [1, %d), got %d",
			pol.SeqLen(), horizon)
	}

	seq := pol.SeqLen()
	timesteps := make([]int, n*seq)
	actions := make([]int, n*seq)
	rewards := make([]float64, n*seq)

	out := &Result{
		Actions:  make([][]int, n),
		Rewards:  make([][]float64, n),
		LogProbs: make([]*mat.Dense, horizon),
	}
	for i := range out.Actions {
		out.Actions[i] = make([]int, horizon)
		out.Rewards[i] = make([]float64, horizon)
	}

	for step := 0; step < horizon; step++ {
		logProbs, err := pol.LogProbs(timesteps, actions, rewards)
		if err != nil {
			return nil, fmt.Errorf("run: step %d: %v", step, err)
		}
		out.LogProbs[step] = logProbs

		for env := 0; env < n; env++ {
			arm := sampleArm(rng, logProbs.RawRowView(env))
			reward := distuv.Bernoulli{
				P:   muVectors.At(env, arm),
				Src: rng,
			}.Rand()

			at := env*seq + step + 1
			timesteps[at] = step + 1
			actions[at] = arm
			rewards[at] = reward

			out.Actions[env][step] = arm
			out.Rewards[env][step] = reward
		}
	}

	return out, nil
}

// sampleArm draws an arm index from a log-probability row.
func sampleArm(rng *rand.Rand, logProbs []float64) int {
	u := rng.Float64()
	cum := 0.0
	for arm, lp := range logProbs {
		cum += math.Exp(lp)
		if u < cum {
			return arm
		}
	}
	// Guard against distributions summing marginally below one.
	return len(logProbs) - 1
}
