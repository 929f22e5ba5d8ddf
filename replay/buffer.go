package replay

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	erand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// InsufficientDataError is returned by Sample when more transitions are
// requested than the buffer currently holds.
type InsufficientDataError struct {
	Requested int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("replay: requested %d transitions, only %d available", e.Requested, e.Available)
}

// Buffer is a bounded FIFO store of transitions. When full, Push evicts the
// oldest entry. Sampling is uniform without replacement and read-only.
//
// A Buffer is not safe for concurrent use; callers running multiple training
// loops must serialize access or give each loop its own buffer.
type Buffer struct {
	entries []Transition
	head    int // next write position
	size    int

	rand   *erand.Rand
	logger zerolog.Logger
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithSeed fixes the sampling RNG for reproducible draws.
func WithSeed(seed uint64) Option {
	return func(b *Buffer) {
		b.rand = erand.New(erand.NewSource(seed))
	}
}

// WithLogger attaches a logger to the buffer.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Buffer) {
		b.logger = logger.With().Str("component", "replay_buffer").Logger()
	}
}

// NewBuffer creates a buffer with the given fixed capacity.
func NewBuffer(capacity int, options ...Option) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("replay: capacity must be positive, got %d", capacity)
	}
	b := &Buffer{
		entries: make([]Transition, capacity),
		rand:    erand.New(erand.NewSource(uint64(time.Now().UnixNano()))),
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(b)
	}
	return b, nil
}

// Push appends one transition, evicting the oldest entry when the buffer is
// at capacity. The state and action vectors are copied so later mutation by
// the caller cannot reach stored transitions.
func (b *Buffer) Push(state, action []float64, reward float64) {
	t := Transition{
		State:  append([]float64(nil), state...),
		Action: append([]float64(nil), action...),
		Reward: reward,
	}
	if b.size == len(b.entries) {
		b.logger.Debug().Int("capacity", len(b.entries)).Msg("buffer full, evicting oldest transition")
	} else {
		b.size++
	}
	b.entries[b.head] = t
	b.head = (b.head + 1) % len(b.entries)
}

// Len returns the number of transitions currently stored.
func (b *Buffer) Len() int {
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.entries)
}

// at returns the stored transition i steps from the oldest entry.
func (b *Buffer) at(i int) Transition {
	oldest := (b.head - b.size + len(b.entries)) % len(b.entries)
	return b.entries[(oldest+i)%len(b.entries)]
}

// Snapshot returns copies of the stored transitions in insertion order,
// oldest first.
func (b *Buffer) Snapshot() []Transition {
	out := make([]Transition, b.size)
	for i := 0; i < b.size; i++ {
		t := b.at(i)
		out[i] = Transition{
			State:  append([]float64(nil), t.State...),
			Action: append([]float64(nil), t.Action...),
			Reward: t.Reward,
		}
	}
	return out
}

// Sample draws batchSize transitions uniformly at random without replacement
// and stacks them into a TransitionBatch. It fails before touching any output
// when batchSize is not positive or exceeds the current length; it never
// returns fewer rows than requested.
func (b *Buffer) Sample(batchSize int) (*TransitionBatch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("replay: batch size must be positive, got %d", batchSize)
	}
	if batchSize > b.size {
		return nil, &InsufficientDataError{Requested: batchSize, Available: b.size}
	}

	picks := b.rand.Perm(b.size)[:batchSize]

	first := b.at(picks[0])
	ds, da := len(first.State), len(first.Action)
	state := mat.NewDense(batchSize, ds, nil)
	action := mat.NewDense(batchSize, da, nil)
	reward := mat.NewVecDense(batchSize, nil)
	for i, p := range picks {
		t := b.at(p)
		if len(t.State) != ds || len(t.Action) != da {
			return nil, fmt.Errorf("replay: inconsistent transition dimensions (state %d/%d, action %d/%d)",
				len(t.State), ds, len(t.Action), da)
		}
		copy(state.RawRowView(i), t.State)
		copy(action.RawRowView(i), t.Action)
		reward.SetVec(i, t.Reward)
	}
	return NewTransitionBatch(state, action, reward, nil)
}
