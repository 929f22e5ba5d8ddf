// Package analysis collects per-episode statistics from experiment traces and
// compares them across learners.
package analysis

import (
	"path"
	"strconv"

	"github.com/rs/zerolog/log"

	"deepbandit/core"
	"deepbandit/util"
)

type rewardDataset struct {
	EpisodeRewards  []float64
	EpisodeLengths  []int
	CumulativeSteps []int

	FirstSuccessEpisode int
	SuccessEpisodes     int
	ErrorEpisodes       int
}

func (r *rewardDataset) Copy() *rewardDataset {
	return &rewardDataset{
		EpisodeRewards:  util.CopyFloatSlice(r.EpisodeRewards),
		EpisodeLengths:  util.CopyIntSlice(r.EpisodeLengths),
		CumulativeSteps: util.CopyIntSlice(r.CumulativeSteps),

		FirstSuccessEpisode: r.FirstSuccessEpisode,
		SuccessEpisodes:     r.SuccessEpisodes,
		ErrorEpisodes:       r.ErrorEpisodes,
	}
}

func newRewardDataset() *rewardDataset {
	return &rewardDataset{
		EpisodeRewards:      make([]float64, 0),
		EpisodeLengths:      make([]int, 0),
		CumulativeSteps:     make([]int, 0),
		FirstSuccessEpisode: -1,
	}
}

// RewardAnalyzer records the total reward and length of every episode. An
// episode counts as a success when its last step terminated, as opposed to
// running out the horizon.
type RewardAnalyzer struct {
	dataset    *rewardDataset
	totalSteps int
}

var _ core.Analyzer = &RewardAnalyzer{}

func NewRewardAnalyzer() *RewardAnalyzer {
	return &RewardAnalyzer{
		dataset: newRewardDataset(),
	}
}

func (r *RewardAnalyzer) Reset() {
	r.dataset = newRewardDataset()
	r.totalSteps = 0
}

func (r *RewardAnalyzer) Analyze(eCtx *core.EpisodeContext, trace *core.Trace) {
	if eCtx.IsError() {
		r.dataset.ErrorEpisodes++
		return
	}

	r.totalSteps += trace.Len()
	r.dataset.EpisodeRewards = append(r.dataset.EpisodeRewards, trace.TotalReward())
	r.dataset.EpisodeLengths = append(r.dataset.EpisodeLengths, trace.Len())
	r.dataset.CumulativeSteps = append(r.dataset.CumulativeSteps, r.totalSteps)

	if trace.Len() > 0 && trace.Last().Terminated {
		r.dataset.SuccessEpisodes++
		if r.dataset.FirstSuccessEpisode == -1 {
			r.dataset.FirstSuccessEpisode = eCtx.Episode
		}
	}
}

func (r *RewardAnalyzer) DataSet() core.DataSet {
	return r.dataset.Copy()
}

type RewardAnalyzerConstructor struct{}

var _ core.AnalyzerConstructor = &RewardAnalyzerConstructor{}

func NewRewardAnalyzerConstructor() *RewardAnalyzerConstructor {
	return &RewardAnalyzerConstructor{}
}

func (r *RewardAnalyzerConstructor) NewAnalyzer(_ string, _ int) core.Analyzer {
	return NewRewardAnalyzer()
}

// RewardComparator writes the datasets of all experiments side by side to a
// JSON file.
type RewardComparator struct {
	savePath string
}

var _ core.Comparator = &RewardComparator{}

func NewRewardComparator(savePath string) *RewardComparator {
	return &RewardComparator{
		savePath: path.Join(savePath, "reward_comparison.json"),
	}
}

func (r *RewardComparator) Compare(experiments []string, datasets []core.DataSet) {
	out := make(map[string]*rewardDataset)
	for i, name := range experiments {
		if datasets[i] == nil {
			continue
		}
		out[name] = datasets[i].(*rewardDataset)
	}

	if err := util.SaveJson(r.savePath, out); err != nil {
		log.Warn().Err(err).Str("path", r.savePath).Msg("failed to save reward comparison")
	}
}

type RewardComparatorConstructor struct {
	savePath string
}

var _ core.ComparatorConstructor = &RewardComparatorConstructor{}

func NewRewardComparatorConstructor(savePath string) *RewardComparatorConstructor {
	return &RewardComparatorConstructor{
		savePath: savePath,
	}
}

func (r *RewardComparatorConstructor) NewComparator(run int) core.Comparator {
	return NewRewardComparator(path.Join(r.savePath, strconv.Itoa(run)))
}
