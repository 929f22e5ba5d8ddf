// Package synthetic prepares the synthetic linear bandit benchmark, where the
// reward of an arm is the sum of context and arm features plus noise.
package synthetic

import (
	"deepbandit/analysis"
	"deepbandit/bench/common"
	"deepbandit/core"
	"deepbandit/envs"
	"deepbandit/policies"
)

func PrepareComparison(flags *common.Flags) *core.ParallelComparison {
	cmp := core.NewParallelComparison()

	armSeed := flags.Seed
	if armSeed == 0 {
		armSeed = 1
	}
	envConstructor := &envs.LinearBanditEnvConstructor{
		StateDim: flags.StateDim,
		Arms:     envs.NewGaussianArms(flags.NumArms, flags.ActionDim, armSeed),
		Noise:    flags.Noise,
		Seed:     flags.Seed,
	}

	inputDim := flags.StateDim + flags.ActionDim

	cmp.AddExperiment(&core.ParallelExperiment{
		Name:        "deep-linucb",
		Environment: envConstructor,
		Summarizer:  envs.LinearBanditSummarizer,
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
		Summarizer:  envs.LinearBanditSummarizer,
		Learner:     &policies.RandomBanditConstructor{Seed: flags.Seed},
	})

	cmp.AddAnalysis(
		"reward",
		analysis.NewRewardAnalyzerConstructor(),
		analysis.NewRewardComparatorConstructor(flags.SavePath),
	)

	return cmp
}
