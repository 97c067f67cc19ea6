package network

import (
	"fmt"

	"github.com/experiorlab/experior/initwfn"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// TransformerConfig collects the architecture hyperparameters of a
// Transformer network.
type TransformerConfig struct {
	HDim     int
	NumHeads int
	NBlocks  int
	DropP    float64
	Dtype    tensor.Dtype
}

// transformer conditions an action distribution on a padded history of
// (reward, action) pairs. Time, action and reward embeddings are
// summed, the reward and action embeddings of each step interleave
// into one sequence behind a learnable class token, and the class
// token's final representation predicts action log-probabilities.
type transformer struct {
	g    *G.ExprGraph
	conf TransformerConfig

	batch      int
	seq        int
	numActions int

	// Input nodes, fed by SetInputs.
	timeOneHot   *G.Node // (batch*seq, seq)
	actionOneHot *G.Node // (batch*seq, numActions)
	rewards      *G.Node // (batch*seq, 1)

	timeEmbed   *dense
	actionEmbed *dense
	rewardEmbed *dense
	classToken  *G.Node // (1, hDim)
	normIn      *layerNorm
	blocks      []*block
	head        *dense

	learnables G.Nodes
	prediction *G.Node
	predVal    G.Value
}

// NewTransformer returns a new transformer policy network on its own
// graph. The network accepts batch histories padded to seq steps over
// numActions actions.
func NewTransformer(conf TransformerConfig, batch, seq,
	numActions int) (NeuralNet, error) {
	if conf.HDim <= 0 || conf.NumHeads <= 0 || conf.NBlocks <= 0 {
		return nil, fmt.Errorf("newTransformer: dimensions must be positive")
	}
	if conf.HDim%conf.NumHeads != 0 {
		return nil, fmt.Errorf("newTransformer: hDim (%d) is not divisible "+
			"by numHeads (%d)", conf.HDim, conf.NumHeads)
	}
	if batch <= 0 || seq <= 0 || numActions <= 0 {
		return nil, fmt.Errorf("newTransformer: batch, seq and numActions " +
			"must be positive")
	}

	dt := conf.Dtype
	if dt != tensor.Float32 && dt != tensor.Float64 {
		dt = tensor.Float64
	}

	g := G.NewGraph()
	// The class token prepends one position to the interleaved
	// (reward, action) sequence.
	seqLen := 2*seq + 1

	t := &transformer{
		g:          g,
		conf:       conf,
		batch:      batch,
		seq:        seq,
		numActions: numActions,

		timeOneHot: G.NewMatrix(g, dt, G.WithShape(batch*seq, seq),
			G.WithName("timeOneHot"), G.WithInit(zeroInit)),
		actionOneHot: G.NewMatrix(g, dt, G.WithShape(batch*seq, numActions),
			G.WithName("actionOneHot"), G.WithInit(zeroInit)),
		rewards: G.NewMatrix(g, dt, G.WithShape(batch*seq, 1),
			G.WithName("rewards"), G.WithInit(zeroInit)),

		timeEmbed: newDense(g, dt, seq, conf.HDim, false, "timeEmbed"),
		actionEmbed: newDense(g, dt, numActions, conf.HDim, false,
			"actionEmbed"),
		rewardEmbed: newDense(g, dt, 1, conf.HDim, true, "rewardEmbed"),
		classToken: G.NewMatrix(g, dt, G.WithShape(1, conf.HDim),
			G.WithName("classToken"),
			G.WithInit(mustInit(initwfn.NewGaussian(0.0, 1e-6)))),
		normIn: newLayerNorm(g, dt, conf.HDim, "lnIn"),
		head:   newDense(g, dt, conf.HDim, numActions, true, "head"),
	}

	for i := 0; i < conf.NBlocks; i++ {
		t.blocks = append(t.blocks, newBlock(g, dt, batch, seqLen,
			conf.NumHeads, conf.HDim, conf.DropP, fmt.Sprintf("block%d", i)))
	}

	if err := t.fwd(dt); err != nil {
		return nil, fmt.Errorf("newTransformer: %v", err)
	}
	t.collectLearnables()

	return t, nil
}

// fwd adds the network's forward pass to the graph.
func (t *transformer) fwd(dt tensor.Dtype) error {
	h := t.conf.HDim
	seqLen := 2*t.seq + 1

	timeE := t.timeEmbed.fwd(t.timeOneHot)
	actionE := G.Must(G.Add(t.actionEmbed.fwd(t.actionOneHot), timeE))
	rewardE := G.Must(G.Add(t.rewardEmbed.fwd(t.rewards), timeE))

	// Interleave into (r_0, a_0, r_1, a_1, ...).
	rewardSeq := G.Must(G.Reshape(rewardE, tensor.Shape{t.batch, t.seq, 1,
		h}))
	actionSeq := G.Must(G.Reshape(actionE, tensor.Shape{t.batch, t.seq, 1,
		h}))
	seq := G.Must(G.Concat(2, rewardSeq, actionSeq))
	seq = G.Must(G.Reshape(seq, tensor.Shape{t.batch, 2 * t.seq, h}))

	// Tile the class token along the batch dimension.
	ones := G.NewConstant(tensor.Ones(dt, t.batch, 1),
		G.WithName("classOnes"))
	class := G.Must(G.Mul(ones, t.classToken))
	class = G.Must(G.Reshape(class, tensor.Shape{t.batch, 1, h}))

	x := G.Must(G.Concat(1, class, seq))
	x = G.Must(G.Reshape(x, tensor.Shape{t.batch * seqLen, h}))
	x = t.normIn.fwd(x)

	for _, b := range t.blocks {
		x = b.fwd(x)
	}

	// The class token's representation carries the prediction.
	x = G.Must(G.Reshape(x, tensor.Shape{t.batch, seqLen, h}))
	x = G.Must(G.Slice(x, nil, G.S(0)))

	logits := t.head.fwd(x)
	probs := G.Must(G.SoftMax(logits, 1))
	t.prediction = G.Must(G.Log(probs))

	G.Read(t.prediction, &t.predVal)
	return nil
}

func (t *transformer) collectLearnables() {
	out := t.timeEmbed.learnables()
	out = append(out, t.actionEmbed.learnables()...)
	out = append(out, t.rewardEmbed.learnables()...)
	out = append(out, t.classToken)
	out = append(out, t.normIn.learnables()...)
	for _, b := range t.blocks {
		out = append(out, b.learnables()...)
	}
	t.learnables = append(out, t.head.learnables()...)
}

// Graph returns the computational graph of the network.
func (t *transformer) Graph() *G.ExprGraph {
	return t.g
}

// BatchSize returns the number of histories per forward pass.
func (t *transformer) BatchSize() int {
	return t.batch
}

// SeqLen returns the padded history length the network accepts.
func (t *transformer) SeqLen() int {
	return t.seq
}

// NumActions returns the size of the action distribution.
func (t *transformer) NumActions() int {
	return t.numActions
}

// SetInputs feeds a batch of padded histories, one-hot encoding the
// timestep and action indices.
func (t *transformer) SetInputs(timesteps, actions []int,
	rewards []float64) error {
	n := t.batch * t.seq
	if len(timesteps) != n || len(actions) != n || len(rewards) != n {
		return fmt.Errorf("setInputs: invalid history length "+
			"\n\twant(%v) \n\thave(%v, %v, %v)", n, len(timesteps),
			len(actions), len(rewards))
	}

	timeOH := make([]float64, n*t.seq)
	actionOH := make([]float64, n*t.numActions)
	for i := 0; i < n; i++ {
		if timesteps[i] < 0 || timesteps[i] >= t.seq {
			return fmt.Errorf("setInputs: timestep %d out of range [0, %d)",
				timesteps[i], t.seq)
		}
		if actions[i] < 0 || actions[i] >= t.numActions {
			return fmt.Errorf("setInputs: action %d out of range [0, %d)",
				actions[i], t.numActions)
		}
		timeOH[i*t.seq+timesteps[i]] = 1
		actionOH[i*t.numActions+actions[i]] = 1
	}

	if err := t.let(t.timeOneHot, timeOH); err != nil {
		return fmt.Errorf("setInputs: %v", err)
	}
	if err := t.let(t.actionOneHot, actionOH); err != nil {
		return fmt.Errorf("setInputs: %v", err)
	}
	if err := t.let(t.rewards, rewards); err != nil {
		return fmt.Errorf("setInputs: %v", err)
	}
	return nil
}

// let binds data to an input node, converting to the network's dtype.
func (t *transformer) let(node *G.Node, data []float64) error {
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

// Set copies the learnable weights of another network into this one.
func (dest *transformer) Set(source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: architectures differ: %d vs %d learnables",
			len(nodes), len(sourceNodes))
	}
	for i, destLearnable := range nodes {
		sourceLearnable := sourceNodes[i].Clone()
		err := G.Let(destLearnable, sourceLearnable.(*G.Node).Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// CloneWithBatch returns a network with the same architecture and
// weights on a fresh graph, accepting a different batch size.
func (t *transformer) CloneWithBatch(batch int) (NeuralNet, error) {
	clone, err := NewTransformer(t.conf, batch, t.seq, t.numActions)
	if err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %v", err)
	}
	if err := clone.Set(t); err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %v", err)
	}
	return clone, nil
}

// Learnables returns the learnable nodes of the network.
func (t *transformer) Learnables() G.Nodes {
	return t.learnables
}

// Model returns the learnables as ValueGrads for use with a solver.
func (t *transformer) Model() []G.ValueGrad {
	model := make([]G.ValueGrad, 0, len(t.learnables))
	for _, node := range t.learnables {
		model = append(model, node)
	}
	return model
}

// Prediction returns the log-probability node of the graph.
func (t *transformer) Prediction() *G.Node {
	return t.prediction
}

// Output returns the log-probabilities computed by the last run.
func (t *transformer) Output() G.Value {
	return t.predVal
}
