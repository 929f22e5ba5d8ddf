package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"deepbandit/bench/sparse"
	"deepbandit/core"
)

func SparseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sparse",
		Short: "Run the sparse reward arena benchmark",
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

			cmp := sparse.PrepareComparison(flags)
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
