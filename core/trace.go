package core

import "sync"

// Step records one environment interaction.
type Step struct {
	State       SubjectiveState
	ActionIndex int
	Action      []float64
	Reward      float64
	Terminated  bool
	Truncated   bool

	Misc map[string]interface{}
}

// Trace is the ordered record of steps taken in one episode.
type Trace struct {
	mtx   *sync.Mutex
	steps []*Step
}

func NewTrace() *Trace {
	return &Trace{
		steps: make([]*Step, 0),
		mtx:   &sync.Mutex{},
	}
}

func (t *Trace) AddStep(s *Step) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.steps = append(t.steps, s)
}

func (t *Trace) Step(i int) *Step {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.steps[i]
}

func (t *Trace) Len() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return len(t.steps)
}

func (t *Trace) Last() *Step {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.steps[len(t.steps)-1]
}

// TotalReward sums the rewards of all recorded steps.
func (t *Trace) TotalReward() float64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	total := 0.0
	for _, s := range t.steps {
		total += s.Reward
	}
	return total
}
