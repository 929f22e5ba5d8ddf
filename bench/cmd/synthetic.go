package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"deepbandit/bench/synthetic"
	"deepbandit/core"
)

func SyntheticCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synthetic",
		Short: "Run the synthetic linear bandit benchmark",
		Run: func(cmd *cobra.Command, args []string) {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt) // channel for interrupts from os

			doneCh := make(chan struct{}) // channel for done signal from application

			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				select {
				case <-sigCh:
				case <-doneCh:
				}
				cancel()
			}()

			cmp := synthetic.PrepareComparison(flags)
			cmp.Run(ctx, flags.NumRuns, &core.RunConfig{
				Episodes:                   flags.Episodes,
				Horizon:                    flags.Horizon,
				BatchSize:                  flags.BatchSize,
				LearnEvery:                 flags.LearnEvery,
				BufferCapacity:             flags.BufferCapacity,
				Seed:                       flags.Seed,
				ThresholdConsecutiveErrors: flags.MaxConsecutiveErrors,
			}, flags.Parallelism)
			close(doneCh)
		},
	}

	return cmd
}
