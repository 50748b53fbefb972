package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/signalnine/sandbench/internal/config"
	"github.com/signalnine/sandbench/internal/metrics"
	"github.com/signalnine/sandbench/internal/result"
	"github.com/signalnine/sandbench/internal/worker"
)

// benchCandidate is a plain random search, so the benchmark measures the
// evaluation infrastructure rather than algorithm quality.
const benchCandidate = `package main

import (
	"math"
	"math/rand"
)

type RandomSearch struct {
	budget, dim int
}

func NewRandomSearch(budget, dim int) *RandomSearch {
	return &RandomSearch{budget: budget, dim: dim}
}

func (r *RandomSearch) Optimize(f func([]float64) float64) {
	best := math.Inf(1)
	for i := 0; i < r.budget; i++ {
		x := make([]float64, r.dim)
		for j := range x {
			x[j] = rand.Float64()*10 - 5
		}
		if y := f(x); y < best {
			best = y
		}
	}
}
`

var (
	flagBenchRuns int

	headingStyle = lipgloss.NewStyle().Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type benchRun struct {
	mode    string
	times   []time.Duration
	results []result.EvaluationResult
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare single-use and pooled worker overhead",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagBenchRuns < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			cfg, logger, closeLog, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeLog()
			cfg.Workers.Isolation = config.IsolationProcess

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headingStyle.Render("Benchmark: single-use workers vs persistent worker pool"))
			fmt.Fprintf(out, "Instances: %v  Dims: %v  Budget factor: %d\n",
				cfg.Benchmark.TrainingInstances, cfg.Benchmark.Dims, cfg.Benchmark.BudgetFactor)

			var runs []benchRun
			for _, pooled := range []bool{false, true} {
				c := *cfg
				c.Benchmark.UseWorkerPool = pooled
				run, err := benchMode(ctx, &c, logger, flagBenchRuns, out)
				if err != nil {
					return err
				}
				runs = append(runs, run)
			}
			writeBenchSummary(out, runs[0], runs[1])
			return nil
		},
	}
	cmd.Flags().IntVar(&flagBenchRuns, "runs", 5, "evaluations per mode")
	return cmd
}

func benchMode(ctx context.Context, cfg *config.Config, logger *log.Logger, n int, out io.Writer) (benchRun, error) {
	ex, err := newExecutor(cfg, logger, metrics.New())
	if err != nil {
		return benchRun{}, err
	}
	defer ex.Close()

	run := benchRun{mode: worker.ModeOf(ex)}
	fmt.Fprintf(out, "\n%s\n", headingStyle.Render(fmt.Sprintf("Mode: %s (%d evaluations)", run.mode, n)))
	for i := range n {
		task := result.Task{
			ID:        fmt.Sprintf("bench-%s-%d", run.mode, i),
			Candidate: result.Candidate{Code: benchCandidate, Name: "RandomSearch"},
			Config:    cfg.Benchmark,
		}
		start := time.Now()
		res := ex.Submit(ctx, task)
		elapsed := time.Since(start)
		run.times = append(run.times, elapsed)
		run.results = append(run.results, res)

		status := fmt.Sprintf("fitness=%.4f", res.Fitness)
		if res.Failed() {
			status = failStyle.Render("ERROR: " + truncate(res.Error, 80))
		}
		fmt.Fprintf(out, "  [%d/%d] %.2fs  %s\n", i+1, n, elapsed.Seconds(), status)
	}
	if pool, ok := ex.(*worker.Pool); ok {
		for _, w := range pool.Workers() {
			fmt.Fprintf(out, "  worker %s\n", w)
		}
	}
	return run, nil
}

func writeBenchSummary(out io.Writer, single, pooled benchRun) {
	meanS, stdS := meanStd(single.times)
	meanP, stdP := meanStd(pooled.times)
	speedup := math.Inf(1)
	if meanP > 0 {
		speedup = meanS / meanP
	}
	fmt.Fprintf(out, "\n%s\n", headingStyle.Render("Results"))
	fmt.Fprintf(out, "  %s mean: %.2fs  (std %.2fs)\n", single.mode, meanS, stdS)
	fmt.Fprintf(out, "  %s mean: %.2fs  (std %.2fs)\n", pooled.mode, meanP, stdP)
	fmt.Fprintf(out, "  Speedup: %.2fx\n", speedup)
	fmt.Fprintf(out, "  Per-eval savings: %.2fs\n", meanS-meanP)
	fmt.Fprintf(out, "  Over 100 evals: ~%.0fs saved\n", (meanS-meanP)*100)
	if sameResults(single.results, pooled.results) {
		fmt.Fprintln(out, "  Results identical across modes")
	} else {
		fmt.Fprintln(out, failStyle.Render("  Results differ across modes"))
	}
}

// meanStd returns the mean and population standard deviation in seconds.
func meanStd(ds []time.Duration) (float64, float64) {
	if len(ds) == 0 {
		return 0, 0
	}
	var sum float64
	for _, d := range ds {
		sum += d.Seconds()
	}
	mean := sum / float64(len(ds))
	var ss float64
	for _, d := range ds {
		ss += (d.Seconds() - mean) * (d.Seconds() - mean)
	}
	return mean, math.Sqrt(ss / float64(len(ds)))
}

// sameResults compares fitness, per-instance AUCs and behavioural metrics.
// Evaluation is deterministic, so every mode must agree exactly.
func sameResults(a, b []result.EvaluationResult) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Failed() || y.Failed() || x.Fitness != y.Fitness || x.Evaluations != y.Evaluations {
			return false
		}
		if len(x.PerInstanceAUCs) != len(y.PerInstanceAUCs) {
			return false
		}
		for j := range x.PerInstanceAUCs {
			if x.PerInstanceAUCs[j] != y.PerInstanceAUCs[j] {
				return false
			}
		}
		if !maps.Equal(x.BehavioralMetrics, y.BehavioralMetrics) {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
