package trainer

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/experiorlab/experior/config"
	"github.com/experiorlab/experior/expert"
	"github.com/experiorlab/experior/policy"
	"github.com/experiorlab/experior/prior"
	"github.com/experiorlab/experior/rollout"
	"github.com/experiorlab/experior/solver"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MiniMax alternates two objectives each epoch: a REINFORCE update of
// the policy against environments sampled from the current prior, and
// a score-function ascent step of the prior on the policy's regret.
// Two policy instances share weights: the behaviour instance rolls out
// trajectories at the rollout batch size, the training instance
// carries the loss graph, and Sync copies updated weights back after
// each policy pass.
type MiniMax struct {
	conf   config.TrainerConfig
	prior  prior.Prior
	expert expert.Expert

	behaviour *policy.Transformer
	train     *policy.Transformer

	// Loss graph inputs on the training instance.
	actionMask *G.Node // (batch, numActions) one-hot of the step's action
	advantages *G.Node // (batch,) stop-gradient regret weights

	lossVal      G.Value
	vm           G.VM
	policySolver *solver.Solver

	rng *rand.Rand
}

// NewMiniMax returns a new minimax trainer. The policy argument
// becomes the behaviour instance and must accept batches of the policy
// trainer's batch size.
func NewMiniMax(conf *config.Config, pr prior.Prior,
	pol *policy.Transformer, exp expert.Expert,
	seed uint64) (*MiniMax, error) {
	tc := conf.Trainer
	if pol.BatchSize() != tc.PolicyTrainer.BatchSize {
		return nil, fmt.Errorf("newMiniMax: policy accepts batches of %d "+
			"but the policy trainer uses %d", pol.BatchSize(),
			tc.PolicyTrainer.BatchSize)
	}
	if est := tc.PolicyTrainer.GradEst; est != "" && est != config.Reinforce {
		return nil, fmt.Errorf("newMiniMax: no such gradient estimator %q",
			est)
	}

	train, err := pol.CloneWithBatch(tc.PolicyTrainer.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("newMiniMax: %v", err)
	}

	m := &MiniMax{
		conf:      tc,
		prior:     pr,
		expert:    exp,
		behaviour: pol,
		train:     train,
		rng:       rand.New(rand.NewSource(seed)),
	}

	if err := m.buildLoss(); err != nil {
		return nil, fmt.Errorf("newMiniMax: %v", err)
	}

	m.policySolver, err = newPolicySolver(tc.PolicyTrainer)
	if err != nil {
		return nil, fmt.Errorf("newMiniMax: %v", err)
	}

	return m, nil
}

// newPolicySolver creates the solver of the policy objective. An
// empty optim selects Adam.
func newPolicySolver(tc config.SubTrainerConfig) (*solver.Solver, error) {
	switch tc.Optim {
	case "", config.AdamSolver:
		return solver.NewDefaultAdam(tc.LR, tc.BatchSize)
	case config.VanillaSolver:
		return solver.NewVanilla(tc.LR, tc.BatchSize)
	}
	return nil, fmt.Errorf("newPolicySolver: no such optimizer %q", tc.Optim)
}

// buildLoss adds the REINFORCE objective to the training instance's
// graph: the advantage-weighted log-probability of the selected
// actions, negated for minimization.
func (m *MiniMax) buildLoss() error {
	net := m.train.Network()
	g := net.Graph()
	pred := net.Prediction()
	dt := pred.Dtype()
	batch := net.BatchSize()

	m.actionMask = G.NewMatrix(g, dt,
		G.WithShape(batch, net.NumActions()),
		G.WithName("actionMask"), G.WithInit(G.Zeroes()))
	m.advantages = G.NewVector(g, dt, G.WithShape(batch),
		G.WithName("advantages"), G.WithInit(G.Zeroes()))

	selected := G.Must(G.Sum(G.Must(G.HadamardProd(pred, m.actionMask)), 1))
	weighted := G.Must(G.HadamardProd(selected, m.advantages))
	loss := G.Must(G.Neg(G.Must(G.Mean(weighted))))
	G.Read(loss, &m.lossVal)

	if _, err := G.Grad(loss, net.Learnables()...); err != nil {
		return fmt.Errorf("buildLoss: %v", err)
	}

	m.vm = G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))
	return nil
}

// Initialize anchors the prior to the expert before minimax training
// starts: one maximum-likelihood pass over environments drawn from the
// expert's own prior.
func (m *MiniMax) Initialize() error {
	tc := m.conf.PriorTrainer
	envs := m.expert.SampleEnvs(tc.MCSamples)

	for start := 0; start < tc.MCSamples; start += tc.BatchSize {
		batch := denseRows(envs, start, start+tc.BatchSize)
		grad := meanScoreGrad(m.prior, batch, nil)
		if err := m.prior.Step(grad, tc.LR); err != nil {
			return fmt.Errorf("initialize: %v", err)
		}
	}
	return nil
}

// TrainEpoch runs one policy objective pass and one prior objective
// pass, returning the epoch's metrics.
func (m *MiniMax) TrainEpoch(epoch int) (map[string]float64, error) {
	logs := make(map[string]float64)

	if err := m.policyStep(logs); err != nil {
		return nil, fmt.Errorf("trainEpoch %d: %v", epoch, err)
	}
	if err := m.priorStep(logs); err != nil {
		return nil, fmt.Errorf("trainEpoch %d: %v", epoch, err)
	}

	return logs, nil
}

// policyStep performs the REINFORCE minimization of the policy's
// Bayesian regret under the current prior.
func (m *MiniMax) policyStep(logs map[string]float64) error {
	tc := m.conf.PolicyTrainer
	horizon := m.conf.MaxHorizon
	net := m.train.Network()

	muVectors := m.prior.Sample(tc.MCSamples)

	var lossSum, regretSum float64
	var steps int

	for start := 0; start < tc.MCSamples; start += tc.BatchSize {
		batchMu := denseRows(muVectors, start, start+tc.BatchSize)

		res, err := rollout.Run(m.rng, m.behaviour, batchMu, horizon)
		if err != nil {
			return fmt.Errorf("policyStep: %v", err)
		}

		regrets := Regret(res.Actions, batchMu)
		for _, r := range regrets {
			regretSum += r
		}

		if err := m.letVector(m.advantages, regrets); err != nil {
			return fmt.Errorf("policyStep: %v", err)
		}

		// One gradient step per trajectory position: log-probability
		// of the position's action given the history before it,
		// weighted by the trajectory's regret.
		for t := 0; t < horizon; t++ {
			timesteps, actions, rewards := history(res, net.SeqLen(), t)
			if err := net.SetInputs(timesteps, actions, rewards); err != nil {
				return fmt.Errorf("policyStep: %v", err)
			}
			if err := m.letMask(res, t); err != nil {
				return fmt.Errorf("policyStep: %v", err)
			}

			m.vm.Reset()
			if err := m.vm.RunAll(); err != nil {
				return fmt.Errorf("policyStep: %v", err)
			}
			if err := m.policySolver.Step(net.Model()); err != nil {
				return fmt.Errorf("policyStep: %v", err)
			}

			lossSum += scalarOf(m.lossVal)
			steps++
		}
	}

	if err := m.behaviour.Sync(m.train); err != nil {
		return fmt.Errorf("policyStep: %v", err)
	}

	logs["policy/loss"] = lossSum / float64(steps)
	logs["policy/regret"] = regretSum / float64(tc.MCSamples)
	return nil
}

// priorStep performs score-function ascent of the prior on the
// policy's regret.
func (m *MiniMax) priorStep(logs map[string]float64) error {
	tc := m.conf.PriorTrainer
	horizon := m.conf.MaxHorizon

	muVectors := m.prior.Sample(tc.MCSamples)

	var lossSum float64
	var batches int

	for start := 0; start < tc.MCSamples; start += tc.BatchSize {
		batchMu := denseRows(muVectors, start, start+tc.BatchSize)

		res, err := rollout.Run(m.rng, m.behaviour, batchMu, horizon)
		if err != nil {
			return fmt.Errorf("priorStep: %v", err)
		}

		regrets := Regret(res.Actions, batchMu)
		grad := meanScoreGrad(m.prior, batchMu, regrets)
		if err := m.prior.Step(grad, tc.LR); err != nil {
			return fmt.Errorf("priorStep: %v", err)
		}

		lossSum += PriorMaxLoss(res.Actions, batchMu)
		batches++
	}

	logs["prior/loss"] = lossSum / float64(batches)
	return nil
}

// Policy returns the behaviour policy.
func (m *MiniMax) Policy() policy.Policy {
	return m.behaviour
}

// Prior returns the prior being trained.
func (m *MiniMax) Prior() prior.Prior {
	return m.prior
}

// letMask binds the one-hot mask of the actions taken at trajectory
// position t.
func (m *MiniMax) letMask(res *rollout.Result, t int) error {
	numActions := m.train.NumActions()
	mask := make([]float64, m.train.BatchSize()*numActions)
	for env := range res.Actions {
		mask[env*numActions+res.Actions[env][t]] = 1
	}
	return m.letNode(m.actionMask, mask)
}

func (m *MiniMax) letVector(node *G.Node, data []float64) error {
	return m.letNode(node, data)
}

// letNode binds float data to a graph node, converting to the node's
// dtype.
func (m *MiniMax) letNode(node *G.Node, data []float64) error {
	var backing interface{} = data
	if node.Dtype() == tensor.Float32 {
		converted := make([]float32, len(data))
		for i, v := range data {
			converted[i] = float32(v)
		}
		backing = converted
	}

	return G.Let(node, tensor.New(
		tensor.WithBacking(backing),
		tensor.WithShape(node.Shape()...),
	))
}

// history rebuilds the padded history inputs of a rollout truncated to
// the first upTo steps.
func history(res *rollout.Result, seq, upTo int) ([]int, []int, []float64) {
	n := len(res.Actions)
	timesteps := make([]int, n*seq)
	actions := make([]int, n*seq)
	rewards := make([]float64, n*seq)

	for env := 0; env < n; env++ {
		for s := 0; s < upTo; s++ {
			at := env*seq + s + 1
			timesteps[at] = s + 1
			actions[at] = res.Actions[env][s]
			rewards[at] = res.Rewards[env][s]
		}
	}
	return timesteps, actions, rewards
}

// meanScoreGrad returns the weighted mean score-function gradient of
// the prior over a batch of environments. A nil weight slice weights
// every environment equally, giving the maximum-likelihood gradient.
func meanScoreGrad(pr prior.Prior, muVectors *mat.Dense,
	weights []float64) []float64 {
	n, _ := muVectors.Dims()

	var grad []float64
	for i := 0; i < n; i++ {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}

		score := pr.ScoreGrad(muVectors.RawRowView(i))
		if grad == nil {
			grad = make([]float64, len(score))
		}
		for j, s := range score {
			grad[j] += w * s / float64(n)
		}
	}
	return grad
}

// denseRows returns the [start, end) row block of a matrix.
func denseRows(d *mat.Dense, start, end int) *mat.Dense {
	_, cols := d.Dims()
	return d.Slice(start, end, 0, cols).(*mat.Dense)
}

// scalarOf extracts a scalar value from a graph output.
func scalarOf(v G.Value) float64 {
	switch data := v.Data().(type) {
	case float64:
		return data
	case float32:
		return float64(data)
	}
	panic(fmt.Sprintf("scalarOf: unexpected value type %T", v.Data()))
}
