package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/signalnine/sandbench/internal/metrics"
	"github.com/signalnine/sandbench/internal/report"
	"github.com/signalnine/sandbench/internal/result"
	"github.com/signalnine/sandbench/internal/runner"
	"github.com/signalnine/sandbench/internal/watch"
	"github.com/signalnine/sandbench/internal/worker"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Re-evaluate candidates whenever a .go file in dir changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := report.FormatterFor(flagFeedback)
			if err != nil {
				return err
			}
			cfg, logger, closeLog, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			m := metrics.New()
			if cfg.Metrics.Addr != "" {
				defer serveMetrics(cfg.Metrics.Addr, m, logger)()
			}
			ex, err := newExecutor(cfg, logger, m)
			if err != nil {
				return err
			}
			defer ex.Close()
			runDir, err := result.CreateRunDir(cfg.Results.Dir)
			if err != nil {
				return err
			}

			opts := &runner.TrialOpts{
				Executor: ex,
				Config:   cfg.Benchmark,
				RunDir:   runDir,
				Mode:     worker.ModeOf(ex),
				Feedback: formatter,
				Logger:   logger,
			}
			out := cmd.OutOrStdout()
			seen := map[string]int{}
			return watch.Run(ctx, watch.Options{Dir: args[0], Logger: logger}, func(path string) {
				subs, err := readSubmissions([]string{path}, "")
				if err != nil {
					logger.Warn("skipping change", "path", path, "err", err)
					return
				}
				sub := subs[0]
				sub.Index = seen[sub.Name]
				seen[sub.Name]++
				rec, err := runner.RunTrial(ctx, opts, sub)
				if err != nil {
					logger.Error("storing result", "err", err)
				}
				if rec != nil {
					fmt.Fprintf(out, "%s\n\n", rec.Feedback)
				}
			})
		},
	}
	cmd.Flags().StringVar(&flagFeedback, "feedback", "vanilla", "feedback style: vanilla, behavioral or a metric name")
	return cmd
}
