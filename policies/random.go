package policies

import (
	"errors"
	"time"

	erand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"deepbandit/core"
	"deepbandit/replay"
)

// RandomBandit selects actions uniformly at random and learns nothing. It is
// the baseline other learners are compared against.
type RandomBandit struct {
	rand *erand.Rand
}

var _ core.PolicyLearner = (*RandomBandit)(nil)

func NewRandomBandit() *RandomBandit {
	return &RandomBandit{
		rand: erand.New(erand.NewSource(uint64(time.Now().UnixNano()))),
	}
}

func NewRandomBanditWithSeed(seed uint64) *RandomBandit {
	return &RandomBandit{
		rand: erand.New(erand.NewSource(seed)),
	}
}

func (r *RandomBandit) Act(_ core.SubjectiveState, space core.ActionSpace) (int, error) {
	if space.Count() == 0 {
		return 0, errors.New("policies: empty action space")
	}
	return r.rand.Intn(space.Count()), nil
}

func (r *RandomBandit) ActBatch(states *mat.Dense, space core.ActionSpace) ([]int, error) {
	if space.Count() == 0 {
		return nil, errors.New("policies: empty action space")
	}
	n, _ := states.Dims()
	picks := make([]int, n)
	for i := range picks {
		picks[i] = r.rand.Intn(space.Count())
	}
	return picks, nil
}

func (r *RandomBandit) LearnBatch(_ *replay.TransitionBatch) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func (r *RandomBandit) Reset() {}

type RandomBanditConstructor struct {
	Seed uint64
}

func (c *RandomBanditConstructor) NewPolicyLearner(instance int) core.PolicyLearner {
	if c.Seed != 0 {
		return NewRandomBanditWithSeed(c.Seed + uint64(instance))
	}
	return NewRandomBandit()
}
