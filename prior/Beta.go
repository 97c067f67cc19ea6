package prior

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/experiorlab/experior/config"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// Beta is a per-arm beta distribution over the mean rewards of a
// Bernoulli bandit. The learnable parameters are square roots of the
// shape parameters, so that any real-valued update keeps the shapes
// positive: alpha_i = alphasSq_i² + epsilon, and likewise for beta.
type Beta struct {
	alphasSq []float64
	betasSq  []float64
	epsilon  float64

	seed uint64
	rng  *rand.Rand
}

// NewBeta returns a new beta prior. Nil init_alpha or init_beta in the
// configuration draw the corresponding initial shape uniformly from
// (0, 5), matching a flat random restart; non-nil values initialize
// every arm to the configured shape.
func NewBeta(conf config.PriorConfig, seed uint64) (*Beta, error) {
	if conf.NumActions <= 0 {
		return nil, fmt.Errorf("newBeta: need a positive number of actions, "+
			"got %d", conf.NumActions)
	}
	if conf.Epsilon <= 0 {
		return nil, fmt.Errorf("newBeta: epsilon must be positive, got %v",
			conf.Epsilon)
	}

	rng := rand.New(rand.NewSource(seed))

	initShape := func(init *float64) float64 {
		if init == nil {
			return 5.0 * rng.Float64()
		}
		return *init
	}

	b := &Beta{
		alphasSq: make([]float64, conf.NumActions),
		betasSq:  make([]float64, conf.NumActions),
		epsilon:  conf.Epsilon,
		seed:     seed,
		rng:      rng,
	}

	alpha := initShape(conf.InitAlpha)
	beta := initShape(conf.InitBeta)
	for i := range b.alphasSq {
		b.alphasSq[i] = alpha
		b.betasSq[i] = beta
	}

	return b, nil
}

// NumActions returns the number of bandit arms the prior covers.
func (b *Beta) NumActions() int {
	return len(b.alphasSq)
}

// Alphas returns the effective per-arm alpha shape parameters.
func (b *Beta) Alphas() []float64 {
	out := make([]float64, len(b.alphasSq))
	for i, a := range b.alphasSq {
		out[i] = a*a + b.epsilon
	}
	return out
}

// Betas returns the effective per-arm beta shape parameters.
func (b *Beta) Betas() []float64 {
	out := make([]float64, len(b.betasSq))
	for i, v := range b.betasSq {
		out[i] = v*v + b.epsilon
	}
	return out
}

// Sample returns n arm-mean vectors drawn from the prior.
func (b *Beta) Sample(n int) *mat.Dense {
	alphas, betas := b.Alphas(), b.Betas()

	out := mat.NewDense(n, b.NumActions(), nil)
	for j := 0; j < b.NumActions(); j++ {
		dist := distuv.Beta{Alpha: alphas[j], Beta: betas[j], Src: b.rng}
		for i := 0; i < n; i++ {
			out.Set(i, j, dist.Rand())
		}
	}
	return out
}

// LogProb returns the log density of an arm-mean vector, the sum of
// the per-arm beta log densities.
func (b *Beta) LogProb(mu []float64) float64 {
	if len(mu) != b.NumActions() {
		panic(fmt.Sprintf("logProb: expected %d arm means, got %d",
			b.NumActions(), len(mu)))
	}

	alphas, betas := b.Alphas(), b.Betas()
	total := 0.0
	for j, m := range mu {
		dist := distuv.Beta{Alpha: alphas[j], Beta: betas[j]}
		total += dist.LogProb(m)
	}
	return total
}

// ScoreGrad returns the gradient of LogProb(mu) with respect to the
// square-root parameters, alphas first then betas.
//
// For a single arm, d log p / d alpha = ln(mu) - ψ(alpha) + ψ(alpha +
// beta); the chain rule through alpha = alphasSq² contributes a factor
// of 2·alphasSq.
func (b *Beta) ScoreGrad(mu []float64) []float64 {
	if len(mu) != b.NumActions() {
		panic(fmt.Sprintf("scoreGrad: expected %d arm means, got %d",
			b.NumActions(), len(mu)))
	}

	n := b.NumActions()
	alphas, betas := b.Alphas(), b.Betas()

	grad := make([]float64, 2*n)
	for j, m := range mu {
		digammaSum := mathext.Digamma(alphas[j] + betas[j])
		dAlpha := logOf(m) - mathext.Digamma(alphas[j]) + digammaSum
		dBeta := logOf(1-m) - mathext.Digamma(betas[j]) + digammaSum

		grad[j] = dAlpha * 2 * b.alphasSq[j]
		grad[n+j] = dBeta * 2 * b.betasSq[j]
	}
	return grad
}

// Params returns a copy of the learnable square-root parameters,
// alphas first then betas.
func (b *Beta) Params() []float64 {
	out := make([]float64, 0, 2*b.NumActions())
	out = append(out, b.alphasSq...)
	return append(out, b.betasSq...)
}

// Step applies a gradient-ascent update to the square-root parameters.
func (b *Beta) Step(grad []float64, stepSize float64) error {
	n := b.NumActions()
	if len(grad) != 2*n {
		return fmt.Errorf("step: expected gradient of length %d, got %d",
			2*n, len(grad))
	}

	for j := 0; j < n; j++ {
		b.alphasSq[j] += stepSize * grad[j]
		b.betasSq[j] += stepSize * grad[n+j]
	}
	return nil
}

// betaGob is the gob wire form of a Beta prior.
type betaGob struct {
	AlphasSq []float64
	BetasSq  []float64
	Epsilon  float64
	Seed     uint64
}

// GobEncode implements the gob.GobEncoder interface.
func (b *Beta) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	err := enc.Encode(betaGob{
		AlphasSq: b.alphasSq,
		BetasSq:  b.betasSq,
		Epsilon:  b.epsilon,
		Seed:     b.seed,
	})
	if err != nil {
		return nil, fmt.Errorf("gobencode: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface.
func (b *Beta) GobDecode(data []byte) error {
	var w betaGob
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}

	b.alphasSq = w.AlphasSq
	b.betasSq = w.BetasSq
	b.epsilon = w.Epsilon
	b.seed = w.Seed
	b.rng = rand.New(rand.NewSource(w.Seed))
	return nil
}

// logOf guards the score computation against mu values at the support
// boundary, where the log density is unbounded.
func logOf(x float64) float64 {
	const floor = 1e-12
	if x < floor {
		x = floor
	}
	return math.Log(x)
}
