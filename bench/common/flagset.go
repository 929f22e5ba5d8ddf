// Package common holds the shared configuration of the benchmark commands.
package common

import (
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"deepbandit/util"
)

type Flags struct {
	SparseFlags
	BanditFlags
	LearnerFlags
	RunFlags
	SavePath    string
	Parallelism int
	Debug       bool

	RunID string
}

// SparseFlags configure the sparse reward arena.
type SparseFlags struct {
	Length      float64
	Height      float64
	ActionCount int
	StepSize    float64
	MaxDuration int
}

// BanditFlags configure the synthetic linear bandit environment.
type BanditFlags struct {
	StateDim  int
	ActionDim int
	NumArms   int
	Noise     float64
}

// LearnerFlags configure the deep linear bandit learner.
type LearnerFlags struct {
	HiddenDims   []int
	LearningRate float64
	Alpha        float64
	Ridge        float64
}

type RunFlags struct {
	NumRuns              int
	Episodes             int
	Horizon              int
	BatchSize            int
	LearnEvery           int
	BufferCapacity       int
	Seed                 uint64
	MaxConsecutiveErrors int
}

func DefaultFlags() *Flags {
	return &Flags{
		SparseFlags: SparseFlags{
			Length:      5,
			Height:      5,
			ActionCount: 8,
			StepSize:    0.1,
			MaxDuration: 100,
		},
		BanditFlags: BanditFlags{
			StateDim:  3,
			ActionDim: 12,
			NumArms:   10,
			Noise:     0.1,
		},
		LearnerFlags: LearnerFlags{
			HiddenDims:   []int{16, 16},
			LearningRate: 0.01,
			Alpha:        0.1,
			Ridge:        1.0,
		},
		SavePath: "results",
		RunFlags: RunFlags{
			NumRuns:              1,
			Episodes:             1000,
			Horizon:              100,
			BatchSize:            60,
			LearnEvery:           1,
			BufferCapacity:       1000,
			Seed:                 0,
			MaxConsecutiveErrors: 20,
		},
		Parallelism: 4,
		Debug:       false,
	}
}

// LoadConfig reads a config file into a Flags value, with unset keys falling
// back to the defaults.
func LoadConfig(configPath string) (*Flags, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	defaults := DefaultFlags()
	v.SetDefault("savepath", defaults.SavePath)
	v.SetDefault("parallelism", defaults.Parallelism)
	v.SetDefault("debug", defaults.Debug)
	v.SetDefault("sparseflags", defaults.SparseFlags)
	v.SetDefault("banditflags", defaults.BanditFlags)
	v.SetDefault("learnerflags", defaults.LearnerFlags)
	v.SetDefault("runflags", defaults.RunFlags)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", configPath, err)
	}

	flags := DefaultFlags()
	if err := v.Unmarshal(flags); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", configPath, err)
	}
	return flags, nil
}

// Record writes the effective configuration next to the results, tagged with
// a fresh run id.
func (f *Flags) Record() {
	if f.RunID == "" {
		f.RunID = uuid.NewString()
	}
	configPath := path.Join(f.SavePath, "config.json")
	if err := util.SaveJson(configPath, f); err != nil {
		log.Warn().Err(err).Str("path", configPath).Msg("failed to record config")
	}
}
