package envs

import (
	"math"
	"testing"
)

func TestSparseRewardReset(t *testing.T) {
	e, err := NewSparseRewardEnvironment(10, 6, 4, 0.1, WithEnvSeed(1))
	if err != nil {
		t.Fatal(err)
	}
	obs, err := e.Reset()
	if err != nil {
		t.Fatal(err)
	}
	o := obs.(SparseRewardObservation)
	if o.AgentX != 5 || o.AgentY != 3 {
		t.Errorf("agent should start in the center, got (%v, %v)", o.AgentX, o.AgentY)
	}
	if o.GoalX < 0 || o.GoalX > 10 || o.GoalY < 0 || o.GoalY > 6 {
		t.Errorf("goal outside arena: (%v, %v)", o.GoalX, o.GoalY)
	}
}

func TestSparseRewardStepClipsToArena(t *testing.T) {
	e, err := NewSparseRewardEnvironment(1, 1, 4, 0.1, WithEnvSeed(2), WithRewardDistance(1e-12))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Reset(); err != nil {
		t.Fatal(err)
	}
	var o SparseRewardObservation
	for i := 0; i < 20; i++ {
		res, err := e.Step([]float64{0.1, 0})
		if err != nil {
			t.Fatal(err)
		}
		o = res.Observation.(SparseRewardObservation)
	}
	if o.AgentX != 1 {
		t.Errorf("agent should be clipped at the right wall, got x=%v", o.AgentX)
	}
}

func TestSparseRewardWin(t *testing.T) {
	// win radius larger than the arena diagonal: first step wins
	e, err := NewSparseRewardEnvironment(2, 2, 4, 0.1, WithEnvSeed(3), WithRewardDistance(10))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Reset(); err != nil {
		t.Fatal(err)
	}
	res, err := e.Step(e.ActionSpace().Get(0))
	if err != nil {
		t.Fatal(err)
	}
	if res.Reward != 0 {
		t.Errorf("winning step should give reward 0, got %v", res.Reward)
	}
	if !res.Terminated {
		t.Error("winning step should terminate the episode")
	}
	if res.Truncated {
		t.Error("winning step should not be truncated")
	}
}

func TestSparseRewardTruncation(t *testing.T) {
	e, err := NewSparseRewardEnvironment(100, 100, 4, 0.001,
		WithEnvSeed(4), WithRewardDistance(1e-12), WithMaxDuration(3))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Reset(); err != nil {
		t.Fatal(err)
	}
	var last bool
	for i := 0; i < 3; i++ {
		res, err := e.Step([]float64{0.001, 0})
		if err != nil {
			t.Fatal(err)
		}
		if res.Reward != -1 {
			t.Errorf("non-winning step should give reward -1, got %v", res.Reward)
		}
		last = res.Truncated
		if i < 2 && res.Truncated {
			t.Errorf("episode truncated early at step %d", i)
		}
	}
	if !last {
		t.Error("episode should be truncated at the duration limit")
	}
}

func TestSparseRewardSummarizer(t *testing.T) {
	obs := SparseRewardObservation{AgentX: 1, AgentY: 2, GoalX: 3, GoalY: 4}
	state := SparseRewardSummarizer.Summarize(obs)
	want := []float64{1, 2, 3, 4}
	if len(state) != len(want) {
		t.Fatalf("expected state of length 4, got %d", len(state))
	}
	for i := range want {
		if state[i] != want[i] {
			t.Errorf("state[%d] = %v, want %v", i, state[i], want[i])
		}
	}
}

func TestSparseRewardStepValidation(t *testing.T) {
	e, err := NewSparseRewardEnvironment(1, 1, 4, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Step([]float64{1}); err == nil {
		t.Error("expected error for non-2d action")
	}
}

func TestLinearBanditEnvironment(t *testing.T) {
	arms := [][]float64{{1, 1}, {-1, -1}}
	e, err := NewLinearBanditEnvironment(3, arms, WithSeed(5))
	if err != nil {
		t.Fatal(err)
	}
	obs, err := e.Reset()
	if err != nil {
		t.Fatal(err)
	}
	state := obs.([]float64)
	if len(state) != 3 {
		t.Fatalf("expected 3d context, got %d", len(state))
	}

	res, err := e.Step(arms[0])
	if err != nil {
		t.Fatal(err)
	}
	want := state[0] + state[1] + state[2] + 2
	if math.Abs(res.Reward-want) > 1e-12 {
		t.Errorf("expected reward %v, got %v", want, res.Reward)
	}
	if !res.Terminated {
		t.Error("bandit episodes should terminate after one step")
	}

	// stepping again without reset fails
	if _, err := e.Step(arms[0]); err == nil {
		t.Error("expected error for Step without Reset")
	}
}

func TestNewGaussianArms(t *testing.T) {
	arms := NewGaussianArms(5, 3, 7)
	if len(arms) != 5 {
		t.Fatalf("expected 5 arms, got %d", len(arms))
	}
	for i, a := range arms {
		if len(a) != 3 {
			t.Errorf("arm %d has dim %d, want 3", i, len(a))
		}
	}
	same := NewGaussianArms(5, 3, 7)
	for i := range arms {
		for j := range arms[i] {
			if arms[i][j] != same[i][j] {
				t.Fatal("same seed should reproduce the same arms")
			}
		}
	}
}
