package core

import (
	"fmt"

	"github.com/rs/zerolog"

	"deepbandit/replay"
)

// Agent ties an environment's observations to a policy learner through a
// history summarizer and a replay buffer. It follows the observe-act-learn
// cycle: Act selects an action for the latest observation, Observe stores the
// resulting transition, Learn samples a batch and hands it to the learner.
//
// An Agent serves a single interaction loop and is not safe for concurrent
// use.
type Agent struct {
	Summarizer HistorySummarizer
	Learner    PolicyLearner
	Buffer     *replay.Buffer

	logger zerolog.Logger

	lastState  SubjectiveState
	lastAction []float64
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithLogger attaches a logger to the agent.
func WithLogger(logger zerolog.Logger) AgentOption {
	return func(a *Agent) {
		a.logger = logger.With().Str("component", "agent").Logger()
	}
}

// NewAgent creates an agent over the given learner and replay buffer.
func NewAgent(summarizer HistorySummarizer, learner PolicyLearner, buffer *replay.Buffer, options ...AgentOption) *Agent {
	a := &Agent{
		Summarizer: summarizer,
		Learner:    learner,
		Buffer:     buffer,
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Act summarizes the observation and asks the learner to pick an action from
// the space. The selected action is remembered so the next Observe call can
// store the full transition.
func (a *Agent) Act(obs Observation, space ActionSpace) (int, []float64, error) {
	state := a.Summarizer.Summarize(obs)
	idx, err := a.Learner.Act(state, space)
	if err != nil {
		return 0, nil, fmt.Errorf("agent: selecting action: %w", err)
	}
	action := space.Get(idx)
	a.lastState = append([]float64(nil), state...)
	a.lastAction = append([]float64(nil), action...)
	return idx, action, nil
}

// Observe stores the transition formed by the last Act call and the given
// result into the replay buffer. Calling Observe without a preceding Act is a
// programming error.
func (a *Agent) Observe(result *ActionResult) error {
	if a.lastState == nil {
		return fmt.Errorf("agent: Observe called before Act")
	}
	a.Buffer.Push(a.lastState, a.lastAction, result.Reward)
	a.lastState = nil
	a.lastAction = nil
	return nil
}

// Learn samples batchSize transitions and performs one learner step. A replay
// InsufficientDataError passes through unchanged so callers can skip learning
// until the buffer has filled.
func (a *Agent) Learn(batchSize int) (map[string]float64, error) {
	batch, err := a.Buffer.Sample(batchSize)
	if err != nil {
		return nil, err
	}
	metrics, err := a.Learner.LearnBatch(batch)
	if err != nil {
		return nil, fmt.Errorf("agent: learning from batch: %w", err)
	}
	a.logger.Debug().Fields(map[string]interface{}{"metrics": metrics}).Msg("learn step")
	return metrics, nil
}

// Reset clears the learner state and the pending transition. Stored replay
// data is kept.
func (a *Agent) Reset() {
	a.Learner.Reset()
	a.lastState = nil
	a.lastAction = nil
}
