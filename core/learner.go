package core

import (
	"gonum.org/v1/gonum/mat"

	"deepbandit/replay"
)

// PolicyLearner selects actions from an action space and improves from
// sampled transition batches. Implementations own their model state and are
// driven by a single goroutine.
type PolicyLearner interface {
	// Act scores every candidate in the action space for the given state and
	// returns the index of the selected action.
	Act(state SubjectiveState, space ActionSpace) (int, error)
	// ActBatch selects one action index per row of states against the same
	// action space.
	ActBatch(states *mat.Dense, space ActionSpace) ([]int, error)
	// LearnBatch performs one learning step on the batch and returns scalar
	// metrics of the step, keyed by metric name.
	LearnBatch(batch *replay.TransitionBatch) (map[string]float64, error)
	// Reset discards all learned state.
	Reset()
}

type PolicyLearnerConstructor interface {
	// NewPolicyLearner creates a fresh learner for the given worker instance.
	NewPolicyLearner(instance int) PolicyLearner
}
