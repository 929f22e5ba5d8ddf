package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func RootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "banditbench",
		Short: "Run contextual bandit benchmarks",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := UpdateFlags(cmd); err != nil {
				return err
			}
			setupLogging()
			flags.Record()
			return nil
		},
	}
	AddFlags(cmd)

	cmd.AddCommand(
		SparseCommand(),
		SyntheticCommand(),
	)

	return cmd
}

func setupLogging() {
	level := zerolog.InfoLevel
	if flags.Debug {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}
