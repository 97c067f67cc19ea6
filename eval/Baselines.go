package eval

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Uniform is a baseline policy that plays every arm with equal
// probability, ignoring history.
type Uniform struct {
	batch, seq, numActions int
}

// NewUniform returns a uniform-random baseline over numActions arms.
func NewUniform(batch, seq, numActions int) *Uniform {
	return &Uniform{batch: batch, seq: seq, numActions: numActions}
}

// LogProbs returns the uniform log-distribution for every history.
func (u *Uniform) LogProbs(timesteps, actions []int,
	rewards []float64) (*mat.Dense, error) {
	logP := -math.Log(float64(u.numActions))

	out := mat.NewDense(u.batch, u.numActions, nil)
	for i := 0; i < u.batch; i++ {
		for j := 0; j < u.numActions; j++ {
			out.Set(i, j, logP)
		}
	}
	return out, nil
}

func (u *Uniform) BatchSize() int  { return u.batch }
func (u *Uniform) SeqLen() int     { return u.seq }
func (u *Uniform) NumActions() int { return u.numActions }

// UCB is the UCB1 index baseline. It plays each arm once and then the
// arm with the highest upper confidence bound, deterministically: the
// chosen arm receives almost all probability mass.
type UCB struct {
	batch, seq, numActions int

	// c scales the exploration bonus.
	c float64
}

// NewUCB returns a UCB1 baseline over numActions arms.
func NewUCB(batch, seq, numActions int, c float64) *UCB {
	return &UCB{batch: batch, seq: seq, numActions: numActions, c: c}
}

// LogProbs computes arm counts and empirical means from each padded
// history and concentrates the distribution on the arm with the
// highest index.
func (u *UCB) LogProbs(timesteps, actions []int,
	rewards []float64) (*mat.Dense, error) {
	// A tiny floor keeps the distribution a valid support for
	// categorical sampling.
	const floorP = 1e-9

	out := mat.NewDense(u.batch, u.numActions, nil)

	for env := 0; env < u.batch; env++ {
		counts := make([]float64, u.numActions)
		sums := make([]float64, u.numActions)

		steps := 0.0
		for s := 1; s < u.seq; s++ {
			at := env*u.seq + s
			if timesteps[at] == 0 {
				break
			}
			counts[actions[at]]++
			sums[actions[at]] += rewards[at]
			steps++
		}

		best, bestIndex := 0, math.Inf(-1)
		for j := 0; j < u.numActions; j++ {
			index := math.Inf(1) // unplayed arms first
			if counts[j] > 0 {
				index = sums[j]/counts[j] +
					u.c*math.Sqrt(math.Log(math.Max(steps, 1))/counts[j])
			}
			if index > bestIndex {
				best, bestIndex = j, index
			}
		}

		for j := 0; j < u.numActions; j++ {
			p := floorP
			if j == best {
				p = 1 - float64(u.numActions-1)*floorP
			}
			out.Set(env, j, math.Log(p))
		}
	}

	return out, nil
}

func (u *UCB) BatchSize() int  { return u.batch }
func (u *UCB) SeqLen() int     { return u.seq }
func (u *UCB) NumActions() int { return u.numActions }
