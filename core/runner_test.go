package core_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepbandit/analysis"
	"deepbandit/core"
	"deepbandit/envs"
	"deepbandit/policies"
)

// captureComparator records what the runner hands to the comparison stage.
type captureComparator struct {
	names    []string
	datasets []core.DataSet
}

func (c *captureComparator) Compare(names []string, datasets []core.DataSet) {
	c.names = append([]string(nil), names...)
	c.datasets = append([]core.DataSet(nil), datasets...)
}

type captureComparatorConstructor struct {
	cmp *captureComparator
}

func (c *captureComparatorConstructor) NewComparator(_ int) core.Comparator {
	return c.cmp
}

// Many experiments through few workers: every experiment's dataset must
// arrive at the comparator, none dropped or lost to a worker still
// delivering its result while the run winds down.
func TestParallelComparisonDeliversAllResults(t *testing.T) {
	const experiments = 12

	cmp := core.NewParallelComparison()
	for i := 0; i < experiments; i++ {
		cmp.AddExperiment(&core.ParallelExperiment{
			Name:        fmt.Sprintf("random-%d", i),
			Environment: &envs.LinearBanditEnvConstructor{StateDim: 2, Arms: [][]float64{{1, 0}, {0, 1}}, Seed: uint64(i + 1)},
			Summarizer:  envs.LinearBanditSummarizer,
			Learner:     &policies.RandomBanditConstructor{Seed: uint64(i + 1)},
		})
	}

	capture := &captureComparator{}
	cmp.AddAnalysis("reward",
		analysis.NewRewardAnalyzerConstructor(),
		&captureComparatorConstructor{cmp: capture},
	)

	cmp.Run(context.Background(), 1, &core.RunConfig{
		Episodes:                   3,
		Horizon:                    1,
		BatchSize:                  2,
		LearnEvery:                 1,
		BufferCapacity:             50,
		Seed:                       13,
		ThresholdConsecutiveErrors: 3,
	}, 3)

	require.Len(t, capture.names, experiments)
	require.Len(t, capture.datasets, experiments)

	seen := make(map[string]bool)
	for i, name := range capture.names {
		seen[name] = true
		assert.NotNil(t, capture.datasets[i], "dataset for %s", name)
	}
	assert.Len(t, seen, experiments, "every experiment reported exactly once")
}

func TestParallelComparisonStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmp := core.NewParallelComparison()
	cmp.AddExperiment(&core.ParallelExperiment{
		Name:        "random",
		Environment: &envs.LinearBanditEnvConstructor{StateDim: 2, Arms: [][]float64{{1, 0}}, Seed: 1},
		Summarizer:  envs.LinearBanditSummarizer,
		Learner:     &policies.RandomBanditConstructor{Seed: 1},
	})

	capture := &captureComparator{}
	cmp.AddAnalysis("reward",
		analysis.NewRewardAnalyzerConstructor(),
		&captureComparatorConstructor{cmp: capture},
	)

	// must return without hanging on workers or the gatherer
	cmp.Run(ctx, 1, &core.RunConfig{
		Episodes:                   3,
		Horizon:                    1,
		BatchSize:                  2,
		ThresholdConsecutiveErrors: 3,
	}, 2)

	assert.Empty(t, capture.names, "comparisons must not run after cancellation")
}
