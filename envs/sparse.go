package envs

import (
	"fmt"
	"math"
	"time"

	erand "golang.org/x/exp/rand"

	"deepbandit/core"
)

// SparseRewardObservation reports the agent and goal positions in the arena.
type SparseRewardObservation struct {
	AgentX float64
	AgentY float64
	GoalX  float64
	GoalY  float64
}

// SparseRewardEnvironment is a 2D box arena. The agent starts in the center,
// the goal is drawn uniformly inside the box on every reset, and the reward
// is -1 per step until the agent comes within rewardDistance of the goal,
// which ends the episode with reward 0.
type SparseRewardEnvironment struct {
	length         float64
	height         float64
	maxDuration    int
	rewardDistance float64

	space *DiscreteActionSpace
	rand  *erand.Rand

	agentX, agentY float64
	goalX, goalY   float64
	stepCount      int
}

var _ core.Environment = (*SparseRewardEnvironment)(nil)

// SparseRewardOption configures a SparseRewardEnvironment.
type SparseRewardOption func(*SparseRewardEnvironment)

// WithMaxDuration caps the episode length. The default is 500 steps.
func WithMaxDuration(steps int) SparseRewardOption {
	return func(e *SparseRewardEnvironment) {
		e.maxDuration = steps
	}
}

// WithRewardDistance sets the win radius around the goal.
func WithRewardDistance(d float64) SparseRewardOption {
	return func(e *SparseRewardEnvironment) {
		e.rewardDistance = d
	}
}

// WithEnvSeed fixes the goal placement RNG.
func WithEnvSeed(seed uint64) SparseRewardOption {
	return func(e *SparseRewardEnvironment) {
		e.rand = erand.New(erand.NewSource(seed))
	}
}

// NewSparseRewardEnvironment creates an arena of the given size whose action
// space holds actionCount movement deltas of length stepSize, uniformly
// spaced around the circle. The win radius defaults to stepSize so the goal
// is always reachable.
func NewSparseRewardEnvironment(length, height float64, actionCount int, stepSize float64, options ...SparseRewardOption) (*SparseRewardEnvironment, error) {
	if length <= 0 || height <= 0 {
		return nil, fmt.Errorf("envs: arena size must be positive, got %gx%g", length, height)
	}
	space, err := NewDirectionActionSpace(actionCount, stepSize)
	if err != nil {
		return nil, err
	}
	e := &SparseRewardEnvironment{
		length:         length,
		height:         height,
		maxDuration:    500,
		rewardDistance: stepSize,
		space:          space,
		rand:           erand.New(erand.NewSource(uint64(time.Now().UnixNano()))),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.maxDuration <= 0 {
		return nil, fmt.Errorf("envs: max episode duration must be positive, got %d", e.maxDuration)
	}
	return e, nil
}

func (e *SparseRewardEnvironment) ActionSpace() core.ActionSpace {
	return e.space
}

// Reset places the agent in the center and draws a fresh goal.
func (e *SparseRewardEnvironment) Reset() (core.Observation, error) {
	e.agentX = e.length / 2
	e.agentY = e.height / 2
	e.goalX = e.rand.Float64() * e.length
	e.goalY = e.rand.Float64() * e.height
	e.stepCount = 0
	return e.observation(), nil
}

// Step moves the agent by the given delta, clipped to the arena bounds.
func (e *SparseRewardEnvironment) Step(action []float64) (*core.ActionResult, error) {
	if len(action) != 2 {
		return nil, fmt.Errorf("envs: expected 2d movement delta, got %d dims", len(action))
	}
	e.agentX = clamp(e.agentX+action[0], 0, e.length)
	e.agentY = clamp(e.agentY+action[1], 0, e.height)
	e.stepCount++

	won := math.Hypot(e.agentX-e.goalX, e.agentY-e.goalY) < e.rewardDistance
	reward := -1.0
	if won {
		reward = 0
	}
	return &core.ActionResult{
		Observation: e.observation(),
		Reward:      reward,
		Terminated:  won,
		Truncated:   !won && e.stepCount >= e.maxDuration,
	}, nil
}

func (e *SparseRewardEnvironment) observation() SparseRewardObservation {
	return SparseRewardObservation{
		AgentX: e.agentX,
		AgentY: e.agentY,
		GoalX:  e.goalX,
		GoalY:  e.goalY,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SparseRewardSummarizer maps the observation to the 4-dim subjective state
// [agent_x, agent_y, goal_x, goal_y].
var SparseRewardSummarizer = core.SummarizerFunc(func(obs core.Observation) core.SubjectiveState {
	o := obs.(SparseRewardObservation)
	return core.SubjectiveState{o.AgentX, o.AgentY, o.GoalX, o.GoalY}
})

// SparseRewardEnvConstructor builds one arena per worker, with per-instance
// goal placement seeds.
type SparseRewardEnvConstructor struct {
	Length      float64
	Height      float64
	ActionCount int
	StepSize    float64
	Seed        uint64
	Options     []SparseRewardOption
}

var _ core.EnvironmentConstructor = (*SparseRewardEnvConstructor)(nil)

func (c *SparseRewardEnvConstructor) NewEnvironment(instance int) core.Environment {
	opts := append([]SparseRewardOption(nil), c.Options...)
	if c.Seed != 0 {
		opts = append(opts, WithEnvSeed(c.Seed+uint64(instance)))
	}
	e, err := NewSparseRewardEnvironment(c.Length, c.Height, c.ActionCount, c.StepSize, opts...)
	if err != nil {
		panic(err)
	}
	return e
}
