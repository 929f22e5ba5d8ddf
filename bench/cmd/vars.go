package cmd

import (
	"github.com/spf13/cobra"

	"deepbandit/bench/common"
)

var (
	flags      *common.Flags = common.DefaultFlags()
	configPath string
	savePath   string

	length      float64
	height      float64
	actionCount int
	stepSize    float64
	maxDuration int

	stateDim  int
	actionDim int
	numArms   int
	noise     float64

	hiddenDims   []int
	learningRate float64
	alpha        float64
	ridge        float64

	numRuns              int
	episodes             int
	horizon              int
	batchSize            int
	learnEvery           int
	bufferCapacity       int
	seed                 uint64
	maxConsecutiveErrors int
	parallelism          int
	debug                bool
)

func AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file")
	cmd.PersistentFlags().StringVar(&savePath, "save-path", flags.SavePath, "Path to save results")

	cmd.PersistentFlags().Float64Var(&length, "length", flags.Length, "Arena length")
	cmd.PersistentFlags().Float64Var(&height, "height", flags.Height, "Arena height")
	cmd.PersistentFlags().IntVar(&actionCount, "action-count", flags.ActionCount, "Number of movement directions")
	cmd.PersistentFlags().Float64Var(&stepSize, "step-size", flags.StepSize, "Movement step size")
	cmd.PersistentFlags().IntVar(&maxDuration, "max-duration", flags.MaxDuration, "Maximum episode duration")

	cmd.PersistentFlags().IntVar(&stateDim, "state-dim", flags.StateDim, "Context dimension")
	cmd.PersistentFlags().IntVar(&actionDim, "action-dim", flags.ActionDim, "Arm feature dimension")
	cmd.PersistentFlags().IntVar(&numArms, "num-arms", flags.NumArms, "Number of arms")
	cmd.PersistentFlags().Float64Var(&noise, "noise", flags.Noise, "Reward noise standard deviation")

	cmd.PersistentFlags().IntSliceVar(&hiddenDims, "hidden-dims", flags.HiddenDims, "Hidden layer sizes")
	cmd.PersistentFlags().Float64Var(&learningRate, "learning-rate", flags.LearningRate, "Network learning rate")
	cmd.PersistentFlags().Float64Var(&alpha, "alpha", flags.Alpha, "Exploration coefficient")
	cmd.PersistentFlags().Float64Var(&ridge, "ridge", flags.Ridge, "Ridge prior")

	cmd.PersistentFlags().IntVar(&numRuns, "num-runs", flags.NumRuns, "Number of runs")
	cmd.PersistentFlags().IntVar(&episodes, "episodes", flags.Episodes, "Number of episodes")
	cmd.PersistentFlags().IntVar(&horizon, "horizon", flags.Horizon, "Horizon")
	cmd.PersistentFlags().IntVar(&batchSize, "batch-size", flags.BatchSize, "Learning batch size")
	cmd.PersistentFlags().IntVar(&learnEvery, "learn-every", flags.LearnEvery, "Environment steps per learn step")
	cmd.PersistentFlags().IntVar(&bufferCapacity, "buffer-capacity", flags.BufferCapacity, "Replay buffer capacity")
	cmd.PersistentFlags().Uint64Var(&seed, "seed", flags.Seed, "Base RNG seed, 0 for time-based")
	cmd.PersistentFlags().IntVar(&maxConsecutiveErrors, "max-consecutive-errors", flags.MaxConsecutiveErrors, "Maximum number of consecutive errors")
	cmd.PersistentFlags().IntVar(&parallelism, "parallelism", flags.Parallelism, "Number of parallel workers")
	cmd.PersistentFlags().BoolVar(&debug, "debug", flags.Debug, "Enable debug logging")
}

// UpdateFlags resolves the effective configuration: the config file when one
// is given, then any flags set explicitly on the command line on top.
func UpdateFlags(cmd *cobra.Command) error {
	if configPath != "" {
		loaded, err := common.LoadConfig(configPath)
		if err != nil {
			return err
		}
		flags = loaded
	}

	set := cmd.Flags().Changed
	if configPath == "" || set("save-path") {
		flags.SavePath = savePath
	}
	if configPath == "" || set("length") {
		flags.Length = length
	}
	if configPath == "" || set("height") {
		flags.Height = height
	}
	if configPath == "" || set("action-count") {
		flags.ActionCount = actionCount
	}
	if configPath == "" || set("step-size") {
		flags.StepSize = stepSize
	}
	if configPath == "" || set("max-duration") {
		flags.MaxDuration = maxDuration
	}
	if configPath == "" || set("state-dim") {
		flags.StateDim = stateDim
	}
	if configPath == "" || set("action-dim") {
		flags.ActionDim = actionDim
	}
	if configPath == "" || set("num-arms") {
		flags.NumArms = numArms
	}
	if configPath == "" || set("noise") {
		flags.Noise = noise
	}
	if configPath == "" || set("hidden-dims") {
		flags.HiddenDims = hiddenDims
	}
	if configPath == "" || set("learning-rate") {
		flags.LearningRate = learningRate
	}
	if configPath == "" || set("alpha") {
		flags.Alpha = alpha
	}
	if configPath == "" || set("ridge") {
		flags.Ridge = ridge
	}
	if configPath == "" || set("num-runs") {
		flags.NumRuns = numRuns
	}
	if configPath == "" || set("episodes") {
		flags.Episodes = episodes
	}
	if configPath == "" || set("horizon") {
		flags.Horizon = horizon
	}
	if configPath == "" || set("batch-size") {
		flags.BatchSize = batchSize
	}
	if configPath == "" || set("learn-every") {
		flags.LearnEvery = learnEvery
	}
	if configPath == "" || set("buffer-capacity") {
		flags.BufferCapacity = bufferCapacity
	}
	if configPath == "" || set("seed") {
		flags.Seed = seed
	}
	if configPath == "" || set("max-consecutive-errors") {
		flags.MaxConsecutiveErrors = maxConsecutiveErrors
	}
	if configPath == "" || set("parallelism") {
		flags.Parallelism = parallelism
	}
	if configPath == "" || set("debug") {
		flags.Debug = debug
	}
	return nil
}
