package network

import (
	"math"

	"github.com/experiorlab/experior/initwfn"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Default initializers of the network's parameters.
var (
	glorotInit = mustInit(initwfn.NewGlorotN(1.0))
	zeroInit   = mustInit(initwfn.NewZeroes())
	onesInit   = mustInit(initwfn.NewOnes())
)

func mustInit(w *initwfn.InitWFn, err error) G.InitWFn {
	if err != nil {
		panic(err)
	}
	return w.InitWFn()
}

// constOf returns a scalar constant node of the graph's dtype.
func constOf(dt tensor.Dtype, v float64) *G.Node {
	if dt == tensor.Float32 {
		return G.NewConstant(float32(v))
	}
	return G.NewConstant(v)
}

// dense implements a fully connected layer operating on matrices of
// shape (rows, in).
type dense struct {
	weights *G.Node // (in, out)
	bias    *G.Node // (out), nil for no bias
}

func newDense(g *G.ExprGraph, dt tensor.Dtype, in, out int, bias bool,
	name string) *dense {
	d := &dense{
		weights: G.NewMatrix(g, dt, G.WithShape(in, out),
			G.WithName(name+".w"), G.WithInit(glorotInit)),
	}
	if bias {
		d.bias = G.NewVector(g, dt, G.WithShape(out),
			G.WithName(name+".b"), G.WithInit(zeroInit))
	}
	return d
}

// fwd adds the layer's forward pass to the graph. The bias broadcasts
// along the row dimension.
func (d *dense) fwd(x *G.Node) *G.Node {
	x = G.Must(G.Mul(x, d.weights))
	if d.bias != nil {
		x = G.Must(G.BroadcastAdd(x, d.bias, nil, []byte{0}))
	}
	return x
}

func (d *dense) learnables() G.Nodes {
	if d.bias == nil {
		return G.Nodes{d.weights}
	}
	return G.Nodes{d.weights, d.bias}
}

// layerNorm normalizes each row of a (rows, features) matrix to zero
// mean and unit variance, then applies a learnable affine transform.
type layerNorm struct {
	gamma *G.Node // (features)
	beta  *G.Node // (features)
	eps   *G.Node
}

func newLayerNorm(g *G.ExprGraph, dt tensor.Dtype, features int,
	name string) *layerNorm {
	return &layerNorm{
		gamma: G.NewVector(g, dt, G.WithShape(features),
			G.WithName(name+".gamma"), G.WithInit(onesInit)),
		beta: G.NewVector(g, dt, G.WithShape(features),
			G.WithName(name+".beta"), G.WithInit(zeroInit)),
		eps: constOf(dt, 1e-5),
	}
}

func (l *layerNorm) fwd(x *G.Node) *G.Node {
	rows := x.Shape()[0]

	mean := G.Must(G.Mean(x, 1))
	mean = G.Must(G.Reshape(mean, tensor.Shape{rows, 1}))
	dev := G.Must(G.BroadcastSub(x, mean, nil, []byte{1}))

	variance := G.Must(G.Mean(G.Must(G.Square(dev)), 1))
	variance = G.Must(G.Reshape(variance, tensor.Shape{rows, 1}))
	std := G.Must(G.Sqrt(G.Must(G.Add(variance, l.eps))))

	norm := G.Must(G.BroadcastHadamardDiv(dev, std, nil, []byte{1}))
	norm = G.Must(G.BroadcastHadamardProd(norm, l.gamma, nil, []byte{0}))
	return G.Must(G.BroadcastAdd(norm, l.beta, nil, []byte{0}))
}

func (l *layerNorm) learnables() G.Nodes {
	return G.Nodes{l.gamma, l.beta}
}

// attention implements multi-head self-attention over a sequence.
// Inputs and outputs are flattened matrices of shape (batch*seq,
// hDim); the sequence structure is recovered internally for the
// batched attention products.
type attention struct {
	query *dense
	key   *dense
	value *dense
	proj  *dense

	batch, seq, heads, hDim int
	scale                   *G.Node
	dropP                   float64
}

func newAttention(g *G.ExprGraph, dt tensor.Dtype, batch, seq, heads,
	hDim int, dropP float64, name string) *attention {
	headDim := hDim / heads
	return &attention{
		query: newDense(g, dt, hDim, hDim, false, name+".q"),
		key:   newDense(g, dt, hDim, hDim, false, name+".k"),
		value: newDense(g, dt, hDim, hDim, false, name+".v"),
		proj:  newDense(g, dt, hDim, hDim, true, name+".proj"),

		batch: batch,
		seq:   seq,
		heads: heads,
		hDim:  hDim,
		scale: constOf(dt, 1.0/math.Sqrt(float64(headDim))),
		dropP: dropP,
	}
}

// split reorders a (batch*seq, hDim) matrix into per-head sequences of
// shape (batch*heads, seq, headDim).
func (a *attention) split(x *G.Node) *G.Node {
	headDim := a.hDim / a.heads
	x = G.Must(G.Reshape(x, tensor.Shape{a.batch, a.seq, a.heads, headDim}))
	x = G.Must(G.Transpose(x, 0, 2, 1, 3))
	return G.Must(G.Reshape(x, tensor.Shape{a.batch * a.heads, a.seq,
		headDim}))
}

func (a *attention) fwd(x *G.Node) *G.Node {
	headDim := a.hDim / a.heads

	q := a.split(a.query.fwd(x))
	k := a.split(a.key.fwd(x))
	v := a.split(a.value.fwd(x))

	kT := G.Must(G.Transpose(k, 0, 2, 1))
	scores := G.Must(G.BatchedMatMul(q, kT))
	scores = G.Must(G.HadamardProd(scores, a.scale))

	probs := G.Must(G.SoftMax(scores, 2))
	if a.dropP > 0 {
		probs = G.Must(G.Dropout(probs, a.dropP))
	}

	out := G.Must(G.BatchedMatMul(probs, v))
	out = G.Must(G.Reshape(out, tensor.Shape{a.batch, a.heads, a.seq,
		headDim}))
	out = G.Must(G.Transpose(out, 0, 2, 1, 3))
	out = G.Must(G.Reshape(out, tensor.Shape{a.batch * a.seq, a.hDim}))

	return a.proj.fwd(out)
}

func (a *attention) learnables() G.Nodes {
	out := a.query.learnables()
	out = append(out, a.key.learnables()...)
	out = append(out, a.value.learnables()...)
	return append(out, a.proj.learnables()...)
}

// block is one transformer block: self-attention and a pointwise
// feedforward, each with a residual connection and a trailing layer
// norm.
type block struct {
	attn   *attention
	normA  *layerNorm
	ffUp   *dense
	ffDown *dense
	normF  *layerNorm
	dropP  float64
}

func newBlock(g *G.ExprGraph, dt tensor.Dtype, batch, seq, heads, hDim int,
	dropP float64, name string) *block {
	return &block{
		attn:   newAttention(g, dt, batch, seq, heads, hDim, dropP, name),
		normA:  newLayerNorm(g, dt, hDim, name+".ln1"),
		ffUp:   newDense(g, dt, hDim, 4*hDim, true, name+".ff1"),
		ffDown: newDense(g, dt, 4*hDim, hDim, true, name+".ff2"),
		normF:  newLayerNorm(g, dt, hDim, name+".ln2"),
		dropP:  dropP,
	}
}

func (b *block) fwd(x *G.Node) *G.Node {
	sub := b.attn.fwd(x)
	if b.dropP > 0 {
		sub = G.Must(G.Dropout(sub, b.dropP))
	}
	x = b.normA.fwd(G.Must(G.Add(x, sub)))

	sub = b.ffDown.fwd(G.Must(G.Rectify(b.ffUp.fwd(x))))
	if b.dropP > 0 {
		sub = G.Must(G.Dropout(sub, b.dropP))
	}
	return b.normF.fwd(G.Must(G.Add(x, sub)))
}

func (b *block) learnables() G.Nodes {
	out := b.attn.learnables()
	out = append(out, b.normA.learnables()...)
	out = append(out, b.ffUp.learnables()...)
	out = append(out, b.ffDown.learnables()...)
	return append(out, b.normF.learnables()...)
}
