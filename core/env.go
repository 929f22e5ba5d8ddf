package core

// Observation is the raw output of an environment interaction. Environments
// are free to emit any shape; a HistorySummarizer turns it into the numeric
// view the policy learner consumes.
type Observation interface{}

// SubjectiveState is the numeric view of the world a policy learner acts on.
type SubjectiveState = []float64

// ActionResult is what an environment reports after a step.
type ActionResult struct {
	Observation Observation
	Reward      float64
	Terminated  bool
	Truncated   bool
}

// ActionSpace is an enumerable set of candidate actions, each represented as
// a fixed-dimension vector.
type ActionSpace interface {
	// Count returns the number of candidate actions.
	Count() int
	// Get returns the action vector at index i.
	Get(i int) []float64
	// Dim returns the dimension of every action vector in the space.
	Dim() int
	// Contains reports whether the given vector is a member of the space.
	Contains(action []float64) bool
}

type Environment interface {
	Reset() (Observation, error)
	Step(action []float64) (*ActionResult, error)
	ActionSpace() ActionSpace
}

type EnvironmentConstructor interface {
	// NewEnvironment creates a new environment for the given worker instance.
	NewEnvironment(instance int) Environment
}

// HistorySummarizer maps a raw observation to the subjective state fed to the
// policy learner.
type HistorySummarizer interface {
	Summarize(obs Observation) SubjectiveState
}

// SummarizerFunc adapts a plain function to the HistorySummarizer interface.
type SummarizerFunc func(obs Observation) SubjectiveState

func (f SummarizerFunc) Summarize(obs Observation) SubjectiveState {
	return f(obs)
}
