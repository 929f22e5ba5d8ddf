// Package policies implements the policy learners that drive agents: the
// deep linear bandit combining a trainable feature network with a LinUCB
// exploration head, and a uniform random baseline.
package policies

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"deepbandit/core"
	"deepbandit/exploration"
	"deepbandit/nn"
	"deepbandit/replay"
)

// DeepLinearBandit learns a nonlinear feature embedding of (state, action)
// pairs with a neural network and runs LinUCB on top of the embeddings. Every
// LearnBatch call performs one network gradient step and folds the embeddings
// of the batch into the LinUCB statistics.
//
// The LinUCB update uses the embeddings computed before the gradient step,
// the same ones the loss was computed from.
type DeepLinearBandit struct {
	net *nn.MLP
	ucb *exploration.LinUCB

	inputDim   int
	hiddenDims []int
	lr         float64
	alpha      float64
	ridge      float64
	seed       uint64

	logger zerolog.Logger
}

type deepLinearConfig struct {
	lr     float64
	alpha  float64
	ridge  float64
	seed   uint64
	logger zerolog.Logger
}

// DeepLinearOption configures a DeepLinearBandit.
type DeepLinearOption func(*deepLinearConfig)

// WithLearningRate sets the feature network learning rate.
func WithLearningRate(lr float64) DeepLinearOption {
	return func(c *deepLinearConfig) {
		c.lr = lr
	}
}

// WithAlpha sets the LinUCB exploration coefficient.
func WithAlpha(alpha float64) DeepLinearOption {
	return func(c *deepLinearConfig) {
		c.alpha = alpha
	}
}

// WithRidge sets the LinUCB ridge prior.
func WithRidge(ridge float64) DeepLinearOption {
	return func(c *deepLinearConfig) {
		c.ridge = ridge
	}
}

// WithSeed fixes the network initialization seed. Reset reinitializes with
// the same seed, so a reset learner retraces its learning deterministically.
func WithSeed(seed uint64) DeepLinearOption {
	return func(c *deepLinearConfig) {
		c.seed = seed
	}
}

// WithLogger attaches a logger to the learner.
func WithLogger(logger zerolog.Logger) DeepLinearOption {
	return func(c *deepLinearConfig) {
		c.logger = logger.With().Str("component", "deep_linear_bandit").Logger()
	}
}

// NewDeepLinearBandit creates a learner over (state, action) feature vectors
// of dimension inputDim, with the given hidden layer sizes. The embedding
// dimension of the LinUCB head is the last hidden size.
func NewDeepLinearBandit(inputDim int, hiddenDims []int, options ...DeepLinearOption) (*DeepLinearBandit, error) {
	cfg := &deepLinearConfig{
		lr:     0.01,
		alpha:  1.0,
		ridge:  1.0,
		seed:   uint64(time.Now().UnixNano()),
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(cfg)
	}

	d := &DeepLinearBandit{
		inputDim:   inputDim,
		hiddenDims: append([]int(nil), hiddenDims...),
		lr:         cfg.lr,
		alpha:      cfg.alpha,
		ridge:      cfg.ridge,
		seed:       cfg.seed,
		logger:     cfg.logger,
	}
	if err := d.build(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DeepLinearBandit) build() error {
	net, err := nn.NewMLP(d.inputDim, d.hiddenDims, nn.WithLearningRate(d.lr), nn.WithSeed(d.seed))
	if err != nil {
		return err
	}
	ucb, err := exploration.NewLinUCB(net.EmbeddingDim(), exploration.WithAlpha(d.alpha), exploration.WithRidge(d.ridge))
	if err != nil {
		return err
	}
	d.net = net
	d.ucb = ucb
	return nil
}

// featureRows stacks one feature row per candidate action for every state
// row: row k*space.Count()+i is state k concatenated with action i.
func (d *DeepLinearBandit) featureRows(states *mat.Dense, space core.ActionSpace) (*mat.Dense, error) {
	n, ds := states.Dims()
	count := space.Count()
	if count == 0 {
		return nil, errors.New("policies: empty action space")
	}
	da := space.Dim()
	if ds+da != d.inputDim {
		return nil, fmt.Errorf("policies: state dim %d + action dim %d != network input %d", ds, da, d.inputDim)
	}
	out := mat.NewDense(n*count, ds+da, nil)
	for k := 0; k < n; k++ {
		state := states.RawRowView(k)
		for i := 0; i < count; i++ {
			row := out.RawRowView(k*count + i)
			copy(row[:ds], state)
			copy(row[ds:], space.Get(i))
		}
	}
	return out, nil
}

// Act scores every candidate action with the UCB rule and returns the index
// of the highest-scoring one. Ties keep the lowest index.
func (d *DeepLinearBandit) Act(state core.SubjectiveState, space core.ActionSpace) (int, error) {
	states := mat.NewDense(1, len(state), append([]float64(nil), state...))
	picks, err := d.ActBatch(states, space)
	if err != nil {
		return 0, err
	}
	return picks[0], nil
}

// ActBatch selects one action index per state row.
func (d *DeepLinearBandit) ActBatch(states *mat.Dense, space core.ActionSpace) ([]int, error) {
	features, err := d.featureRows(states, space)
	if err != nil {
		return nil, err
	}
	embed, err := d.net.Embed(features)
	if err != nil {
		return nil, err
	}
	scores, err := d.ucb.Scores(embed)
	if err != nil {
		return nil, err
	}

	n, _ := states.Dims()
	count := space.Count()
	picks := make([]int, n)
	for k := 0; k < n; k++ {
		best := 0
		bestScore := scores.AtVec(k * count)
		for i := 1; i < count; i++ {
			if s := scores.AtVec(k*count + i); s > bestScore {
				best = i
				bestScore = s
			}
		}
		picks[k] = best
	}
	return picks, nil
}

// ScoreActions returns the UCB score of every candidate action for one state,
// in action space order.
func (d *DeepLinearBandit) ScoreActions(state core.SubjectiveState, space core.ActionSpace) (*mat.VecDense, error) {
	states := mat.NewDense(1, len(state), append([]float64(nil), state...))
	features, err := d.featureRows(states, space)
	if err != nil {
		return nil, err
	}
	embed, err := d.net.Embed(features)
	if err != nil {
		return nil, err
	}
	return d.ucb.Scores(embed)
}

// LearnBatch performs one network gradient step on the batch and folds its
// embeddings into the LinUCB statistics. The returned metrics contain the
// training loss under the key "mlp_loss". A non-finite loss is reported in
// the metrics and logged; the LinUCB statistics are left untouched in that
// case so a diverged network cannot corrupt them.
func (d *DeepLinearBandit) LearnBatch(batch *replay.TransitionBatch) (map[string]float64, error) {
	features := batch.Features()
	loss, embed, err := d.net.TrainStep(features, batch.Reward, batch.Weight)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		d.logger.Warn().Float64("mlp_loss", loss).Msg("non-finite training loss, skipping exploration update")
		return map[string]float64{"mlp_loss": loss}, nil
	}
	if err := d.ucb.Update(embed, batch.Reward, batch.Weight); err != nil {
		return nil, err
	}
	return map[string]float64{"mlp_loss": loss}, nil
}

// Reset discards all learned state. The network reinitializes from the
// configured seed and the LinUCB statistics return to the ridge prior.
func (d *DeepLinearBandit) Reset() {
	// build only fails on invalid dimensions, which the constructor already
	// rejected.
	if err := d.build(); err != nil {
		panic(err)
	}
}

// Exploration exposes the LinUCB head, mainly for inspection in tests and
// analysis.
func (d *DeepLinearBandit) Exploration() *exploration.LinUCB {
	return d.ucb
}

// Network exposes the feature network.
func (d *DeepLinearBandit) Network() *nn.MLP {
	return d.net
}

// deepLinearState is the gob-serializable snapshot of a DeepLinearBandit.
// The network and exploration head serialize themselves into nested blobs.
type deepLinearState struct {
	Version    int
	InputDim   int
	HiddenDims []int
	LR         float64
	Alpha      float64
	Ridge      float64
	Seed       uint64
	Net        []byte
	UCB        []byte
}

// Save serializes the learner, including network parameters and exploration
// statistics.
func (d *DeepLinearBandit) Save(w io.Writer) error {
	var netBuf, ucbBuf bytes.Buffer
	if err := d.net.Save(&netBuf); err != nil {
		return err
	}
	if err := d.ucb.Save(&ucbBuf); err != nil {
		return err
	}
	state := deepLinearState{
		Version:    1,
		InputDim:   d.inputDim,
		HiddenDims: d.hiddenDims,
		LR:         d.lr,
		Alpha:      d.alpha,
		Ridge:      d.ridge,
		Seed:       d.seed,
		Net:        netBuf.Bytes(),
		UCB:        ucbBuf.Bytes(),
	}
	return gob.NewEncoder(w).Encode(state)
}

// LoadDeepLinearBandit deserializes a learner saved with Save.
func LoadDeepLinearBandit(r io.Reader) (*DeepLinearBandit, error) {
	var state deepLinearState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return nil, err
	}
	if state.Version != 1 {
		return nil, errors.New("policies: unsupported gob version")
	}
	net, err := nn.LoadMLP(bytes.NewReader(state.Net))
	if err != nil {
		return nil, err
	}
	ucb, err := exploration.Load(bytes.NewReader(state.UCB))
	if err != nil {
		return nil, err
	}
	if net.EmbeddingDim() != ucb.Dim() {
		return nil, fmt.Errorf("policies: embedding dim %d != exploration dim %d", net.EmbeddingDim(), ucb.Dim())
	}
	return &DeepLinearBandit{
		net:        net,
		ucb:        ucb,
		inputDim:   state.InputDim,
		hiddenDims: state.HiddenDims,
		lr:         state.LR,
		alpha:      state.Alpha,
		ridge:      state.Ridge,
		seed:       state.Seed,
		logger:     zerolog.Nop(),
	}, nil
}

// DeepLinearBanditConstructor builds one learner per worker instance, with
// per-instance seeds derived from the base seed.
type DeepLinearBanditConstructor struct {
	InputDim   int
	HiddenDims []int
	Options    []DeepLinearOption
	Seed       uint64
}

var _ core.PolicyLearnerConstructor = (*DeepLinearBanditConstructor)(nil)

func (c *DeepLinearBanditConstructor) NewPolicyLearner(instance int) core.PolicyLearner {
	opts := append([]DeepLinearOption(nil), c.Options...)
	if c.Seed != 0 {
		opts = append(opts, WithSeed(c.Seed+uint64(instance)))
	}
	d, err := NewDeepLinearBandit(c.InputDim, c.HiddenDims, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

var _ core.PolicyLearner = (*DeepLinearBandit)(nil)
