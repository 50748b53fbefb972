package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/signalnine/sandbench/internal/config"
	"github.com/signalnine/sandbench/internal/metrics"
	"github.com/signalnine/sandbench/internal/report"
	"github.com/signalnine/sandbench/internal/result"
	"github.com/signalnine/sandbench/internal/runner"
	"github.com/signalnine/sandbench/internal/sandbox"
	"github.com/signalnine/sandbench/internal/worker"
)

var (
	flagName         string
	flagNoWorkerPool bool
	flagParallel     int
	flagFeedback     string
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <file>...",
		Short: "Evaluate candidate algorithms on the benchmark suite",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEvaluate,
	}
	cmd.Flags().StringVar(&flagName, "name", "", "algorithm name (single file only; default: inferred from func NewX)")
	cmd.Flags().BoolVar(&flagNoWorkerPool, "no-worker-pool", false, "start a fresh worker process per candidate")
	cmd.Flags().IntVar(&flagParallel, "parallel", 1, "max candidates evaluated at once")
	cmd.Flags().StringVar(&flagFeedback, "feedback", "vanilla", "feedback style: vanilla, behavioral or a metric name")
	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if flagName != "" && len(args) > 1 {
		return fmt.Errorf("--name needs exactly one file, got %d", len(args))
	}
	formatter, err := report.FormatterFor(flagFeedback)
	if err != nil {
		return err
	}
	subs, err := readSubmissions(args, flagName)
	if err != nil {
		return err
	}

	cfg, logger, closeLog, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeLog()
	if flagNoWorkerPool {
		cfg.Benchmark.UseWorkerPool = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		shutdown := serveMetrics(cfg.Metrics.Addr, m, logger)
		defer shutdown()
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
	logger.Info("run directory", "path", runDir)

	opts := &runner.TrialOpts{
		Executor: ex,
		Config:   cfg.Benchmark,
		RunDir:   runDir,
		Mode:     worker.ModeOf(ex),
		Feedback: formatter,
		Logger:   logger,
	}
	records, errs := runner.RunBatch(ctx, opts, subs, flagParallel)

	out := cmd.OutOrStdout()
	for _, rec := range records {
		if rec == nil {
			continue
		}
		fmt.Fprintf(out, "%s\n\n", rec.Feedback)
	}
	if err := report.Generate(runDir, "table", out); err != nil {
		logger.Warn("summary failed", "err", err)
	}
	return errors.Join(errs...)
}

// newExecutor starts workers by re-executing this binary.
func newExecutor(cfg *config.Config, logger *log.Logger, m *metrics.Collector) (worker.Executor, error) {
	level := flagLogLevel
	if level == "" {
		level = cfg.Log.Level
	}
	command, err := worker.SelfCommand("--log-level", level)
	if err != nil {
		return nil, err
	}
	return worker.New(cfg, command, logger.WithPrefix("worker"), m)
}

// readSubmissions loads candidate files. Names come from name, or from the
// NewX constructor, or from the file name when the source does not parse;
// such candidates still get evaluated and fail with a compile error.
func readSubmissions(paths []string, name string) ([]runner.Submission, error) {
	seen := map[string]int{}
	subs := make([]runner.Submission, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading candidate: %w", err)
		}
		code := string(data)
		n := name
		if n == "" {
			n = candidateName(path, code)
		}
		subs = append(subs, runner.Submission{Name: n, Code: code, Index: seen[n]})
		seen[n]++
	}
	return subs, nil
}

func candidateName(path, code string) string {
	if n, err := sandbox.InferName(code); err == nil {
		return n
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// serveMetrics exposes m on addr until the returned func is called.
func serveMetrics(addr string, m *metrics.Collector, logger *log.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
