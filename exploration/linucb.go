// Package exploration implements the linear bandit exploration head used by
// deep linear bandit policy learners. It maintains the running least-squares
// statistics A = λI + Σ w·x·xᵀ and b = Σ w·r·x over embeddings and scores
// candidate actions with an upper confidence bound.
package exploration

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SingularMatrixError is returned when the covariance statistics cannot be
// factorized even after a ridge boost. With a positive ridge prior this does
// not happen in normal operation.
type SingularMatrixError struct {
	Dim int
}

func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("exploration: %dx%d statistics matrix is not positive definite", e.Dim, e.Dim)
}

// LinUCB keeps a single shared linear model relating embeddings to rewards
// and computes UCB scores: θᵀx + α·sqrt(xᵀA⁻¹x) with θ = A⁻¹b.
//
// A starts as ridge·I and only ever receives positively weighted rank-1
// additions, so it stays symmetric positive definite. Statistics accumulate
// monotonically; there is no rollback. Not safe for concurrent use.
type LinUCB struct {
	d     int
	alpha float64
	ridge float64

	a        *mat.SymDense
	b        *mat.VecDense
	nUpdates uint64
}

// Option configures a LinUCB module.
type Option func(*LinUCB)

// WithAlpha sets the exploration coefficient. Larger values bias selection
// toward under-explored regions.
func WithAlpha(alpha float64) Option {
	return func(l *LinUCB) {
		l.alpha = alpha
	}
}

// WithRidge sets the positive diagonal prior on A.
func WithRidge(ridge float64) Option {
	return func(l *LinUCB) {
		l.ridge = ridge
	}
}

// NewLinUCB creates a LinUCB module over embeddings of dimension d.
func NewLinUCB(d int, options ...Option) (*LinUCB, error) {
	if d <= 0 {
		return nil, fmt.Errorf("exploration: embedding dimension must be positive, got %d", d)
	}
	l := &LinUCB{
		d:     d,
		alpha: 1.0,
		ridge: 1.0,
		a:     mat.NewSymDense(d, nil),
		b:     mat.NewVecDense(d, nil),
	}
	for _, opt := range options {
		opt(l)
	}
	if l.ridge <= 0 {
		return nil, fmt.Errorf("exploration: ridge must be positive, got %v", l.ridge)
	}
	for i := 0; i < d; i++ {
		l.a.SetSym(i, i, l.ridge)
	}
	return l, nil
}

// Dim returns the embedding dimension.
func (l *LinUCB) Dim() int {
	return l.d
}

// Alpha returns the exploration coefficient.
func (l *LinUCB) Alpha() float64 {
	return l.alpha
}

// NumUpdates returns the number of observed samples folded into A and b.
func (l *LinUCB) NumUpdates() uint64 {
	return l.nUpdates
}

// Update folds a batch of (embedding, reward) observations into the running
// statistics: A += w·x⊗x and b += w·r·x per row. weights may be nil for
// uniform weight 1. Updating with two batches is equivalent to updating once
// with their concatenation, up to floating-point rounding.
func (l *LinUCB) Update(embeddings *mat.Dense, rewards, weights *mat.VecDense) error {
	n, d := embeddings.Dims()
	if d != l.d {
		return fmt.Errorf("exploration: embedding dimension %d != model dimension %d", d, l.d)
	}
	if rewards.Len() != n {
		return fmt.Errorf("exploration: reward length %d != embedding rows %d", rewards.Len(), n)
	}
	if weights != nil && weights.Len() != n {
		return fmt.Errorf("exploration: weight length %d != embedding rows %d", weights.Len(), n)
	}

	for k := 0; k < n; k++ {
		x := embeddings.RawRowView(k)
		w := 1.0
		if weights != nil {
			w = weights.AtVec(k)
		}
		r := rewards.AtVec(k)
		for i := 0; i < l.d; i++ {
			wi := w * x[i]
			for j := i; j < l.d; j++ {
				l.a.SetSym(i, j, l.a.At(i, j)+wi*x[j])
			}
			l.b.SetVec(i, l.b.AtVec(i)+w*r*x[i])
		}
		l.nUpdates++
	}
	return nil
}

// factorize returns a Cholesky factorization of A, retrying once with an
// additional ridge boost before giving up.
func (l *LinUCB) factorize() (*mat.Cholesky, error) {
	var chol mat.Cholesky
	if chol.Factorize(l.a) {
		return &chol, nil
	}
	boosted := mat.NewSymDense(l.d, nil)
	boosted.CopySym(l.a)
	for i := 0; i < l.d; i++ {
		boosted.SetSym(i, i, boosted.At(i, i)+l.ridge)
	}
	if chol.Factorize(boosted) {
		return &chol, nil
	}
	return nil, &SingularMatrixError{Dim: l.d}
}

// Scores computes the UCB score for every embedding row: the predicted mean
// reward θᵀx plus the exploration bonus α·sqrt(xᵀA⁻¹x). Both terms use a
// Cholesky solve rather than an explicit inverse.
func (l *LinUCB) Scores(embeddings *mat.Dense) (*mat.VecDense, error) {
	n, d := embeddings.Dims()
	if d != l.d {
		return nil, fmt.Errorf("exploration: embedding dimension %d != model dimension %d", d, l.d)
	}

	chol, err := l.factorize()
	if err != nil {
		return nil, err
	}

	theta := mat.NewVecDense(l.d, nil)
	if err := chol.SolveVecTo(theta, l.b); err != nil {
		return nil, &SingularMatrixError{Dim: l.d}
	}

	scores := mat.NewVecDense(n, nil)
	v := mat.NewVecDense(l.d, nil)
	for i := 0; i < n; i++ {
		x := mat.NewVecDense(l.d, embeddings.RawRowView(i))
		if err := chol.SolveVecTo(v, x); err != nil {
			return nil, &SingularMatrixError{Dim: l.d}
		}
		variance := mat.Dot(x, v)
		if variance < 0 {
			// Rounding can push a tiny variance below zero.
			variance = 0
		}
		scores.SetVec(i, mat.Dot(theta, x)+l.alpha*math.Sqrt(variance))
	}
	return scores, nil
}

// linUCBState is the gob-serializable snapshot of a LinUCB module.
type linUCBState struct {
	Version  int
	D        int
	Alpha    float64
	Ridge    float64
	AData    []float64
	BData    []float64
	NUpdates uint64
}

// Save serializes the statistics to gob format.
func (l *LinUCB) Save(w io.Writer) error {
	raw := l.a.RawSymmetric()
	state := linUCBState{
		Version:  1,
		D:        l.d,
		Alpha:    l.alpha,
		Ridge:    l.ridge,
		AData:    append([]float64(nil), raw.Data...),
		BData:    append([]float64(nil), l.b.RawVector().Data...),
		NUpdates: l.nUpdates,
	}
	return gob.NewEncoder(w).Encode(state)
}

// Load deserializes a LinUCB module saved with Save.
func Load(r io.Reader) (*LinUCB, error) {
	var state linUCBState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return nil, err
	}
	if state.Version != 1 {
		return nil, errors.New("exploration: unsupported gob version")
	}
	l, err := NewLinUCB(state.D, WithAlpha(state.Alpha), WithRidge(state.Ridge))
	if err != nil {
		return nil, err
	}
	if len(state.AData) != state.D*state.D {
		return nil, errors.New("exploration: invalid A data length")
	}
	if len(state.BData) != state.D {
		return nil, errors.New("exploration: invalid b data length")
	}
	l.a = mat.NewSymDense(state.D, append([]float64(nil), state.AData...))
	l.b = mat.NewVecDense(state.D, append([]float64(nil), state.BData...))
	l.nUpdates = state.NUpdates
	return l, nil
}
