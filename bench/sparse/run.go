// Package sparse prepares the sparse reward arena benchmark: the deep linear
// bandit against the random baseline on the 2D goal-seeking task.
package sparse

import (
	"deepbandit/analysis"
	"deepbandit/bench/common"
	"deepbandit/core"
	"deepbandit/envs"
	"deepbandit/policies"
)

func PrepareComparison(flags *common.Flags) *core.ParallelComparison {
	cmp := core.NewParallelComparison()

	envConstructor := &envs.SparseRewardEnvConstructor{
		Length:      flags.Length,
		Height:      flags.Height,
		ActionCount: flags.ActionCount,
		StepSize:    flags.StepSize,
		Seed:        flags.Seed,
		Options: []envs.SparseRewardOption{
			envs.WithMaxDuration(flags.MaxDuration),
		},
	}

	// state is [agent_x, agent_y, goal_x, goal_y], actions are 2d deltas
	inputDim := 4 + 2

	cmp.AddExperiment(&core.ParallelExperiment{
		Name:        "deep-linucb",
		Environment: envConstructor,
		Summarizer:  envs.SparseRewardSummarizer,
		Learner: &policies.DeepLinearBanditConstructor{
			InputDim:   inputDim,
			HiddenDims: flags.HiddenDims,
			Seed:       flags.Seed,
			Options: []policies.DeepLinearOption{
				policies.WithLearningRate(flags.LearningRate),
				policies.WithAlpha(flags.Alpha),
				policies.WithRidge(flags.Ridge),
			},
		},
	})
	cmp.AddExperiment(&core.ParallelExperiment{
		Name:        "random",
		Environment: envConstructor,
		Summarizer:  envs.SparseRewardSummarizer,
		Learner:     &policies.RandomBanditConstructor{Seed: flags.Seed},
	})

	cmp.AddAnalysis(
		"reward",
		analysis.NewRewardAnalyzerConstructor(),
		analysis.NewRewardComparatorConstructor(flags.SavePath),
	)

	return cmp
}
