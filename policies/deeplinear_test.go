package policies_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	erand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"deepbandit/envs"
	"deepbandit/policies"
	"deepbandit/replay"
)

// sumBatch builds a batch whose reward is the sum of the state entries plus
// the sum of the action entries.
func sumBatch(n, stateDim, actionDim int, seed uint64) *replay.TransitionBatch {
	rng := erand.New(erand.NewSource(seed))
	state := mat.NewDense(n, stateDim, nil)
	action := mat.NewDense(n, actionDim, nil)
	reward := mat.NewVecDense(n, nil)
	weight := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < stateDim; j++ {
			v := rng.NormFloat64()
			state.Set(i, j, v)
			sum += v
		}
		for j := 0; j < actionDim; j++ {
			v := rng.NormFloat64()
			action.Set(i, j, v)
			sum += v
		}
		reward.SetVec(i, sum)
		weight.SetVec(i, 1)
	}
	batch, err := replay.NewTransitionBatch(state, action, reward, weight)
	if err != nil {
		panic(err)
	}
	return batch
}

func TestDeepLinearBanditLearnsSumReward(t *testing.T) {
	featureDim := 15
	stateDim := 3
	batchSize := featureDim * 4

	learner, err := policies.NewDeepLinearBandit(
		featureDim,
		[]int{16, 16},
		policies.WithLearningRate(0.01),
		policies.WithAlpha(0.1),
		policies.WithSeed(42),
	)
	require.NoError(t, err)

	batch := sumBatch(batchSize, stateDim, featureDim-stateDim, 17)

	var loss float64
	for i := 0; i < 1000; i++ {
		metrics, err := learner.LearnBatch(batch)
		require.NoError(t, err)
		var ok bool
		loss, ok = metrics["mlp_loss"]
		require.True(t, ok, "metrics must contain mlp_loss")
	}
	assert.Less(t, loss, 1e-2, "training loss after 1000 steps")

	// the action rows of the batch double as the action space
	space, err := envs.NewDiscreteActionSpace(rows(batch.Action))
	require.NoError(t, err)

	scores, err := learner.ScoreActions(batch.State.RawRowView(0), space)
	require.NoError(t, err)
	assert.Equal(t, batchSize, scores.Len())

	idx, err := learner.Act(batch.State.RawRowView(0), space)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, idx, 0)
	assert.Less(t, idx, batchSize)

	picks, err := learner.ActBatch(batch.State, space)
	require.NoError(t, err)
	assert.Len(t, picks, batchSize)
	for _, p := range picks {
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, batchSize)
	}
}

func rows(m *mat.Dense) [][]float64 {
	n, d := m.Dims()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = append([]float64(nil), m.RawRowView(i)[:d]...)
	}
	return out
}

func TestDeepLinearBanditDimensionMismatch(t *testing.T) {
	learner, err := policies.NewDeepLinearBandit(5, []int{4}, policies.WithSeed(1))
	require.NoError(t, err)

	space, err := envs.NewDiscreteActionSpace([][]float64{{1, 2, 3}})
	require.NoError(t, err)

	// state dim 3 + action dim 3 != input dim 5
	_, err = learner.Act([]float64{1, 2, 3}, space)
	require.Error(t, err)
}

func TestDeepLinearBanditReset(t *testing.T) {
	learner, err := policies.NewDeepLinearBandit(4, []int{6}, policies.WithSeed(5))
	require.NoError(t, err)

	batch := sumBatch(12, 2, 2, 3)
	_, err = learner.LearnBatch(batch)
	require.NoError(t, err)
	require.Equal(t, uint64(12), learner.Exploration().NumUpdates())

	learner.Reset()
	assert.Equal(t, uint64(0), learner.Exploration().NumUpdates())
}

func TestDeepLinearBanditSaveLoad(t *testing.T) {
	learner, err := policies.NewDeepLinearBandit(4, []int{6, 5}, policies.WithSeed(8), policies.WithAlpha(0.3))
	require.NoError(t, err)

	batch := sumBatch(20, 2, 2, 9)
	for i := 0; i < 10; i++ {
		_, err = learner.LearnBatch(batch)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, learner.Save(&buf))
	restored, err := policies.LoadDeepLinearBandit(&buf)
	require.NoError(t, err)

	space, err := envs.NewDiscreteActionSpace(rows(batch.Action))
	require.NoError(t, err)

	want, err := learner.ActBatch(batch.State, space)
	require.NoError(t, err)
	got, err := restored.ActBatch(batch.State, space)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRandomBanditStaysInRange(t *testing.T) {
	learner := policies.NewRandomBanditWithSeed(7)
	space, err := envs.NewDiscreteActionSpace([][]float64{{0}, {1}, {2}})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		idx, err := learner.Act([]float64{0}, space)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 3)
	}

	states := mat.NewDense(5, 1, nil)
	picks, err := learner.ActBatch(states, space)
	require.NoError(t, err)
	assert.Len(t, picks, 5)
}
