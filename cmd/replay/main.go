// Package main provides the replay CLI, which feeds synthetic sensor batches
// to a running service or writes them to a fixture file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/riskwatch/internal/replay"
	"github.com/okian/riskwatch/pkg/logger"
)

// Default flag values.
const (
	defaultBatches      = 30
	defaultDocsPerBatch = 8
	defaultSamples      = 5
	defaultInterval     = time.Second
	defaultTimeout      = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logFormat string

	root := &cobra.Command{
		Use:   "replay",
		Short: "Synthetic sensor batches for the riskwatch service",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return logger.Init(logger.WithFormat(logFormat))
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	root.AddCommand(newPushCmd(), newFixtureCmd())
	return root
}

// bindGenerator registers the flags shared by every subcommand.
func bindGenerator(cmd *cobra.Command, cfg *replay.Config) {
	cmd.Flags().IntVar(&cfg.Batches, "batches", defaultBatches, "Number of batches to generate")
	cmd.Flags().IntVar(&cfg.DocsPerBatch, "docs", defaultDocsPerBatch, "Documents per batch")
	cmd.Flags().IntVar(&cfg.Samples, "samples", defaultSamples, "Scored samples per document")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 0, "Generator seed (0 picks one from the clock)")
}

func newPushCmd() *cobra.Command {
	cfg := &replay.Config{}

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push generated batches to /api/batches",
		Long: `Generates batches and posts them to a service running with the push
source, then waits until the last accepted batch is applied.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := replay.Run(cmd.Context(), cfg)
			if stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "accepted=%d duplicate=%d throttled=%d failed=%d duration=%s\n",
					stats.Accepted, stats.Duplicate, stats.Throttled, stats.Failed, stats.Duration.Round(time.Millisecond))
			}
			return err
		},
	}

	bindGenerator(cmd, cfg)
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	cmd.Flags().DurationVar(&cfg.Interval, "interval", defaultInterval, "Delay between batches")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	cmd.Flags().StringVar(&cfg.OutputFile, "save", "", "Also write the generated batches to this fixture file")
	cmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "Log every submission")

	return cmd
}

func newFixtureCmd() *cobra.Command {
	cfg := &replay.Config{}

	cmd := &cobra.Command{
		Use:   "fixture <path>",
		Short: "Write generated batches to a fixture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			batches := replay.Generate(cfg)
			if err := replay.WriteFixture(args[0], batches); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d batches to %s\n", len(batches), args[0])
			return nil
		},
	}

	bindGenerator(cmd, cfg)
	return cmd
}
