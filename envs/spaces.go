// Package envs provides bandit environments and their action spaces: a 2D
// sparse reward arena and a synthetic linear reward environment for
// benchmarking learners.
package envs

import (
	"fmt"
	"math"

	"deepbandit/core"
)

// DiscreteActionSpace is a finite, ordered list of action vectors sharing one
// dimension. Iteration order is the construction order.
type DiscreteActionSpace struct {
	actions [][]float64
	dim     int
}

var _ core.ActionSpace = (*DiscreteActionSpace)(nil)

// NewDiscreteActionSpace builds a space from the given action vectors. All
// vectors must be non-empty and share the same dimension.
func NewDiscreteActionSpace(actions [][]float64) (*DiscreteActionSpace, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("envs: action space needs at least one action")
	}
	dim := len(actions[0])
	if dim == 0 {
		return nil, fmt.Errorf("envs: actions must be non-empty vectors")
	}
	copied := make([][]float64, len(actions))
	for i, a := range actions {
		if len(a) != dim {
			return nil, fmt.Errorf("envs: action %d has dimension %d, expected %d", i, len(a), dim)
		}
		copied[i] = append([]float64(nil), a...)
	}
	return &DiscreteActionSpace{actions: copied, dim: dim}, nil
}

func (s *DiscreteActionSpace) Count() int {
	return len(s.actions)
}

func (s *DiscreteActionSpace) Dim() int {
	return s.dim
}

// Get returns the action vector at index i. The returned slice is owned by
// the space and must not be mutated.
func (s *DiscreteActionSpace) Get(i int) []float64 {
	return s.actions[i]
}

// Contains reports whether the vector matches a member exactly.
func (s *DiscreteActionSpace) Contains(action []float64) bool {
	if len(action) != s.dim {
		return false
	}
	for _, a := range s.actions {
		match := true
		for j := range a {
			if a[j] != action[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Actions returns copies of all action vectors in order.
func (s *DiscreteActionSpace) Actions() [][]float64 {
	out := make([][]float64, len(s.actions))
	for i, a := range s.actions {
		out[i] = append([]float64(nil), a...)
	}
	return out
}

// NewDirectionActionSpace builds the space of count movement deltas spaced
// uniformly around the circle, each of length stepSize: action i moves by
// (cos(2π·i/count)·stepSize, sin(2π·i/count)·stepSize).
func NewDirectionActionSpace(count int, stepSize float64) (*DiscreteActionSpace, error) {
	if count <= 0 {
		return nil, fmt.Errorf("envs: direction count must be positive, got %d", count)
	}
	actions := make([][]float64, count)
	for i := 0; i < count; i++ {
		angle := 2 * math.Pi / float64(count) * float64(i)
		actions[i] = []float64{math.Cos(angle) * stepSize, math.Sin(angle) * stepSize}
	}
	return NewDiscreteActionSpace(actions)
}
