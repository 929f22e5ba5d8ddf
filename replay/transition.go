package replay

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition is a single observed interaction. It is immutable once created
// and owned by the buffer after Push.
type Transition struct {
	State  []float64
	Action []float64
	Reward float64
}

// TransitionBatch holds N transitions stacked row-wise. Row i of State
// corresponds to row i of Action and to element i of Reward, and of Weight
// when present. A nil Weight means uniform weight 1.
type TransitionBatch struct {
	State  *mat.Dense    // N x Ds
	Action *mat.Dense    // N x Da
	Reward *mat.VecDense // N
	Weight *mat.VecDense // N or nil
}

// NewTransitionBatch builds a batch and checks that all fields share the same
// leading dimension. Weight may be nil.
func NewTransitionBatch(state, action *mat.Dense, reward, weight *mat.VecDense) (*TransitionBatch, error) {
	if state == nil || action == nil || reward == nil {
		return nil, fmt.Errorf("replay: state, action and reward are required")
	}
	n, _ := state.Dims()
	if an, _ := action.Dims(); an != n {
		return nil, fmt.Errorf("replay: action rows %d != state rows %d", an, n)
	}
	if reward.Len() != n {
		return nil, fmt.Errorf("replay: reward length %d != state rows %d", reward.Len(), n)
	}
	if weight != nil && weight.Len() != n {
		return nil, fmt.Errorf("replay: weight length %d != state rows %d", weight.Len(), n)
	}
	return &TransitionBatch{State: state, Action: action, Reward: reward, Weight: weight}, nil
}

// Len returns the number of rows in the batch.
func (b *TransitionBatch) Len() int {
	n, _ := b.State.Dims()
	return n
}

// Features returns the N x (Ds+Da) matrix of state rows concatenated with
// action rows, the input form consumed by feature networks.
func (b *TransitionBatch) Features() *mat.Dense {
	n, ds := b.State.Dims()
	_, da := b.Action.Dims()
	out := mat.NewDense(n, ds+da, nil)
	for i := 0; i < n; i++ {
		copy(out.RawRowView(i)[:ds], b.State.RawRowView(i))
		copy(out.RawRowView(i)[ds:], b.Action.RawRowView(i))
	}
	return out
}

// WeightAt returns the weight of row i, defaulting to 1 when no weights are
// attached.
func (b *TransitionBatch) WeightAt(i int) float64 {
	if b.Weight == nil {
		return 1.0
	}
	return b.Weight.AtVec(i)
}
