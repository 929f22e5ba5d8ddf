// Package nn provides the trainable feature network used by deep bandit
// policy learners: a feed-forward network mapping a (state, action) feature
// row to a fixed-length embedding, with a scalar head regressing the observed
// reward.
package nn

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	erand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// linear is one fully connected layer with Adam moment estimates.
type linear struct {
	w  *mat.Dense    // in x out
	b  *mat.VecDense // out
	mw *mat.Dense
	vw *mat.Dense
	mb *mat.VecDense
	vb *mat.VecDense
}

func newLinear(in, out int, rng *erand.Rand) *linear {
	// He initialization, matching the ReLU hidden activations.
	std := math.Sqrt(2.0 / float64(in))
	data := make([]float64, in*out)
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}
	return &linear{
		w:  mat.NewDense(in, out, data),
		b:  mat.NewVecDense(out, nil),
		mw: mat.NewDense(in, out, nil),
		vw: mat.NewDense(in, out, nil),
		mb: mat.NewVecDense(out, nil),
		vb: mat.NewVecDense(out, nil),
	}
}

// MLP is a feed-forward network with ReLU hidden layers and a linear scalar
// head. The activation of the last hidden layer is the embedding handed to
// the exploration module. One TrainStep call performs exactly one Adam step.
//
// An MLP is owned by a single policy learner and is not safe for concurrent
// use.
type MLP struct {
	layers   []*linear // hidden layers followed by the scalar head
	inputDim int
	embedDim int

	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	step  int
}

// Option configures an MLP.
type Option func(*config)

type config struct {
	lr   float64
	seed uint64
}

// WithLearningRate sets the Adam learning rate.
func WithLearningRate(lr float64) Option {
	return func(c *config) {
		c.lr = lr
	}
}

// WithSeed fixes the weight initialization RNG.
func WithSeed(seed uint64) Option {
	return func(c *config) {
		c.seed = seed
	}
}

// NewMLP creates a network mapping inputDim features through the given hidden
// layer sizes to a scalar prediction. The embedding dimension is the last
// hidden size.
func NewMLP(inputDim int, hiddenDims []int, options ...Option) (*MLP, error) {
	if inputDim <= 0 {
		return nil, fmt.Errorf("nn: input dimension must be positive, got %d", inputDim)
	}
	if len(hiddenDims) == 0 {
		return nil, errors.New("nn: at least one hidden layer is required")
	}
	for _, h := range hiddenDims {
		if h <= 0 {
			return nil, fmt.Errorf("nn: hidden dimensions must be positive, got %v", hiddenDims)
		}
	}
	cfg := &config{
		lr:   0.01,
		seed: uint64(time.Now().UnixNano()),
	}
	for _, opt := range options {
		opt(cfg)
	}

	rng := erand.New(erand.NewSource(cfg.seed))
	m := &MLP{
		inputDim: inputDim,
		embedDim: hiddenDims[len(hiddenDims)-1],
		lr:       cfg.lr,
		beta1:    0.9,
		beta2:    0.999,
		eps:      1e-8,
	}
	in := inputDim
	for _, h := range hiddenDims {
		m.layers = append(m.layers, newLinear(in, h, rng))
		in = h
	}
	m.layers = append(m.layers, newLinear(in, 1, rng))
	return m, nil
}

// InputDim returns the expected feature dimension.
func (m *MLP) InputDim() int {
	return m.inputDim
}

// EmbeddingDim returns the dimension of the embedding rows.
func (m *MLP) EmbeddingDim() int {
	return m.embedDim
}

// forward runs the network on X and returns the activation of every layer:
// acts[0] is X, acts[i] the post-ReLU output of hidden layer i, and the last
// entry the N x 1 linear prediction.
func (m *MLP) forward(x *mat.Dense) []*mat.Dense {
	acts := make([]*mat.Dense, len(m.layers)+1)
	acts[0] = x
	for li, l := range m.layers {
		in := acts[li]
		n, _ := in.Dims()
		_, out := l.w.Dims()
		z := mat.NewDense(n, out, nil)
		z.Mul(in, l.w)
		for i := 0; i < n; i++ {
			row := z.RawRowView(i)
			for j := 0; j < out; j++ {
				row[j] += l.b.AtVec(j)
				if li < len(m.layers)-1 && row[j] < 0 {
					row[j] = 0
				}
			}
		}
		acts[li+1] = z
	}
	return acts
}

// Forward returns the reward predictions and the embeddings for X.
func (m *MLP) Forward(x *mat.Dense) (*mat.VecDense, *mat.Dense, error) {
	if _, d := x.Dims(); d != m.inputDim {
		return nil, nil, fmt.Errorf("nn: input dimension %d != network input %d", d, m.inputDim)
	}
	acts := m.forward(x)
	n, _ := x.Dims()
	pred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		pred.SetVec(i, acts[len(acts)-1].At(i, 0))
	}
	return pred, acts[len(acts)-2], nil
}

// Embed returns the embedding rows for X without touching parameters.
func (m *MLP) Embed(x *mat.Dense) (*mat.Dense, error) {
	_, embed, err := m.Forward(x)
	return embed, err
}

// TrainStep performs one weighted mean-squared-error gradient step against y
// and returns the loss together with the embeddings used to compute it. A nil
// w means uniform weights. When the loss is not finite the parameter update
// is skipped and the loss is returned for the caller to inspect; TrainStep
// never retries.
func (m *MLP) TrainStep(x *mat.Dense, y, w *mat.VecDense) (float64, *mat.Dense, error) {
	n, d := x.Dims()
	if d != m.inputDim {
		return 0, nil, fmt.Errorf("nn: input dimension %d != network input %d", d, m.inputDim)
	}
	if y.Len() != n {
		return 0, nil, fmt.Errorf("nn: target length %d != input rows %d", y.Len(), n)
	}
	if w != nil && w.Len() != n {
		return 0, nil, fmt.Errorf("nn: weight length %d != input rows %d", w.Len(), n)
	}

	acts := m.forward(x)
	out := acts[len(acts)-1]
	embed := mat.DenseCopyOf(acts[len(acts)-2])

	wsum := 0.0
	for i := 0; i < n; i++ {
		if w != nil {
			wsum += w.AtVec(i)
		} else {
			wsum++
		}
	}
	if wsum <= 0 {
		return 0, nil, errors.New("nn: weights must have positive sum")
	}

	loss := 0.0
	delta := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		wi := 1.0
		if w != nil {
			wi = w.AtVec(i)
		}
		diff := out.At(i, 0) - y.AtVec(i)
		loss += wi * diff * diff / wsum
		delta.Set(i, 0, 2*wi*diff/wsum)
	}

	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		// Surface divergence through the loss value; do not poison the
		// parameters with a non-finite step.
		return loss, embed, nil
	}

	m.step++
	for li := len(m.layers) - 1; li >= 0; li-- {
		l := m.layers[li]
		in := acts[li]
		inDim, outDim := l.w.Dims()

		gradW := mat.NewDense(inDim, outDim, nil)
		gradW.Mul(in.T(), delta)
		gradB := mat.NewVecDense(outDim, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < outDim; j++ {
				gradB.SetVec(j, gradB.AtVec(j)+delta.At(i, j))
			}
		}

		if li > 0 {
			prev := mat.NewDense(n, inDim, nil)
			prev.Mul(delta, l.w.T())
			// ReLU gate of the previous layer: its activations are
			// already rectified, so a zero activation means a dead unit.
			for i := 0; i < n; i++ {
				row := prev.RawRowView(i)
				actRow := in.RawRowView(i)
				for j := 0; j < inDim; j++ {
					if actRow[j] <= 0 {
						row[j] = 0
					}
				}
			}
			delta = prev
		}

		m.adamStep(l.w.RawMatrix().Data, l.mw.RawMatrix().Data, l.vw.RawMatrix().Data, gradW.RawMatrix().Data)
		m.adamStep(l.b.RawVector().Data, l.mb.RawVector().Data, l.vb.RawVector().Data, gradB.RawVector().Data)
	}

	return loss, embed, nil
}

// adamStep applies one Adam update to the parameter slice in place.
func (m *MLP) adamStep(param, mom, vel, grad []float64) {
	c1 := 1 - math.Pow(m.beta1, float64(m.step))
	c2 := 1 - math.Pow(m.beta2, float64(m.step))
	for i := range param {
		g := grad[i]
		mom[i] = m.beta1*mom[i] + (1-m.beta1)*g
		vel[i] = m.beta2*vel[i] + (1-m.beta2)*g*g
		mhat := mom[i] / c1
		vhat := vel[i] / c2
		param[i] -= m.lr * mhat / (math.Sqrt(vhat) + m.eps)
	}
}

// mlpState is the gob-serializable snapshot of an MLP.
type mlpState struct {
	Version  int
	InputDim int
	Dims     []int // output size of every layer, scalar head last
	LR       float64
	Step     int
	Weights  [][]float64
	Biases   [][]float64
}

// Save serializes the network parameters to gob format. Adam moments are not
// checkpointed; a restored network restarts its moment estimates.
func (m *MLP) Save(w io.Writer) error {
	state := mlpState{
		Version:  1,
		InputDim: m.inputDim,
		LR:       m.lr,
		Step:     m.step,
	}
	for _, l := range m.layers {
		_, out := l.w.Dims()
		state.Dims = append(state.Dims, out)
		state.Weights = append(state.Weights, append([]float64(nil), l.w.RawMatrix().Data...))
		state.Biases = append(state.Biases, append([]float64(nil), l.b.RawVector().Data...))
	}
	return gob.NewEncoder(w).Encode(state)
}

// LoadMLP deserializes a network saved with Save.
func LoadMLP(r io.Reader) (*MLP, error) {
	var state mlpState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return nil, err
	}
	if state.Version != 1 {
		return nil, errors.New("nn: unsupported gob version")
	}
	if len(state.Dims) < 2 || state.Dims[len(state.Dims)-1] != 1 {
		return nil, errors.New("nn: invalid layer dimensions")
	}
	hidden := state.Dims[:len(state.Dims)-1]
	m, err := NewMLP(state.InputDim, hidden, WithLearningRate(state.LR))
	if err != nil {
		return nil, err
	}
	m.step = state.Step
	in := state.InputDim
	for li, out := range state.Dims {
		if len(state.Weights[li]) != in*out || len(state.Biases[li]) != out {
			return nil, errors.New("nn: invalid parameter data length")
		}
		m.layers[li].w = mat.NewDense(in, out, append([]float64(nil), state.Weights[li]...))
		m.layers[li].b = mat.NewVecDense(out, append([]float64(nil), state.Biases[li]...))
		in = out
	}
	return m, nil
}
