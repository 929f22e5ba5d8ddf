package envs

import (
	"fmt"
	"time"

	erand "golang.org/x/exp/rand"

	"deepbandit/core"
)

// LinearBanditEnvironment is a single-step synthetic environment. Every reset
// draws a fresh Gaussian context; the reward of an action is the sum of the
// context entries plus the sum of the action entries plus Gaussian noise, so
// the optimal arm is the one with the largest entry sum. Episodes terminate
// after one step.
type LinearBanditEnvironment struct {
	stateDim int
	space    *DiscreteActionSpace
	noise    float64
	rand     *erand.Rand

	state []float64
}

var _ core.Environment = (*LinearBanditEnvironment)(nil)

// LinearBanditOption configures a LinearBanditEnvironment.
type LinearBanditOption func(*LinearBanditEnvironment)

// WithNoise sets the reward noise standard deviation. The default is 0.
func WithNoise(std float64) LinearBanditOption {
	return func(e *LinearBanditEnvironment) {
		e.noise = std
	}
}

// WithSeed fixes the context and noise RNG.
func WithSeed(seed uint64) LinearBanditOption {
	return func(e *LinearBanditEnvironment) {
		e.rand = erand.New(erand.NewSource(seed))
	}
}

// NewLinearBanditEnvironment creates an environment with stateDim context
// features and the given fixed arms.
func NewLinearBanditEnvironment(stateDim int, arms [][]float64, options ...LinearBanditOption) (*LinearBanditEnvironment, error) {
	if stateDim <= 0 {
		return nil, fmt.Errorf("envs: state dimension must be positive, got %d", stateDim)
	}
	space, err := NewDiscreteActionSpace(arms)
	if err != nil {
		return nil, err
	}
	e := &LinearBanditEnvironment{
		stateDim: stateDim,
		space:    space,
		rand:     erand.New(erand.NewSource(uint64(time.Now().UnixNano()))),
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// NewGaussianArms draws count arm vectors of the given dimension from the
// standard normal distribution.
func NewGaussianArms(count, dim int, seed uint64) [][]float64 {
	rng := erand.New(erand.NewSource(seed))
	arms := make([][]float64, count)
	for i := range arms {
		arm := make([]float64, dim)
		for j := range arm {
			arm[j] = rng.NormFloat64()
		}
		arms[i] = arm
	}
	return arms
}

func (e *LinearBanditEnvironment) ActionSpace() core.ActionSpace {
	return e.space
}

func (e *LinearBanditEnvironment) Reset() (core.Observation, error) {
	state := make([]float64, e.stateDim)
	for i := range state {
		state[i] = e.rand.NormFloat64()
	}
	e.state = state
	return append([]float64(nil), state...), nil
}

func (e *LinearBanditEnvironment) Step(action []float64) (*core.ActionResult, error) {
	if e.state == nil {
		return nil, fmt.Errorf("envs: Step called before Reset")
	}
	if len(action) != e.space.Dim() {
		return nil, fmt.Errorf("envs: action dimension %d != space dimension %d", len(action), e.space.Dim())
	}
	reward := 0.0
	for _, v := range e.state {
		reward += v
	}
	for _, v := range action {
		reward += v
	}
	if e.noise > 0 {
		reward += e.rand.NormFloat64() * e.noise
	}
	obs := append([]float64(nil), e.state...)
	e.state = nil
	return &core.ActionResult{
		Observation: obs,
		Reward:      reward,
		Terminated:  true,
	}, nil
}

// LinearBanditSummarizer passes the context vector through unchanged.
var LinearBanditSummarizer = core.SummarizerFunc(func(obs core.Observation) core.SubjectiveState {
	return append(core.SubjectiveState(nil), obs.([]float64)...)
})

// LinearBanditEnvConstructor builds one environment per worker. All workers
// share the same arms; context seeds differ per instance.
type LinearBanditEnvConstructor struct {
	StateDim int
	Arms     [][]float64
	Noise    float64
	Seed     uint64
}

var _ core.EnvironmentConstructor = (*LinearBanditEnvConstructor)(nil)

func (c *LinearBanditEnvConstructor) NewEnvironment(instance int) core.Environment {
	opts := []LinearBanditOption{WithNoise(c.Noise)}
	if c.Seed != 0 {
		opts = append(opts, WithSeed(c.Seed+uint64(instance)))
	}
	e, err := NewLinearBanditEnvironment(c.StateDim, c.Arms, opts...)
	if err != nil {
		panic(err)
	}
	return e
}
