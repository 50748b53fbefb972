package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/signalnine/sandbench/internal/bbob"
	"github.com/signalnine/sandbench/internal/config"
	"github.com/signalnine/sandbench/internal/evaluator"
	"github.com/signalnine/sandbench/internal/report"
	"github.com/signalnine/sandbench/internal/result"
	"github.com/signalnine/sandbench/internal/sandbox"
)

var flagFull bool

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Compile and smoke-test a candidate in this process",
		Long: "Check imports, compile the candidate and run it once on the smoke problem in this process. " +
			"With --full the whole benchmark runs in a single-use worker process, so a candidate " +
			"that crashes its process (for example from a stray goroutine) cannot take the CLI down.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading candidate: %w", err)
			}
			code := string(data)
			name := flagName
			if name == "" {
				name = candidateName(args[0], code)
			}
			out := cmd.OutOrStdout()
			suite := bbob.NewSuite()

			if flagFull {
				res, err := validateFull(cfg, logger, result.Candidate{Code: code, Name: name})
				if err != nil {
					return err
				}
				fmt.Fprintln(out, report.Behavioral(name, res))
				if res.Failed() {
					return fmt.Errorf("%s: %s", res.Kind, res.Error)
				}
				return nil
			}

			ns, err := sandbox.Prepare(code, sandbox.Options{
				Allowed: cfg.Benchmark.AllowedImports,
				Output:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "compiled: %s\n", strings.Join(ns.Symbols(), ", "))
			alg, err := ns.Factory(name)
			if err != nil {
				return err
			}
			if err := evaluator.SmokeTest(suite, ns, alg); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s passed the smoke test (budget %d)\n", name, evaluator.SmokeBudget)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagName, "name", "", "algorithm name (default: inferred from func NewX)")
	cmd.Flags().BoolVar(&flagFull, "full", false, "run the full benchmark in a single-use worker")
	return cmd
}

// validateFull evaluates c once in a fresh worker process.
func validateFull(cfg *config.Config, logger *log.Logger, c result.Candidate) (result.EvaluationResult, error) {
	single := *cfg
	single.Benchmark.UseWorkerPool = false
	single.Workers.Isolation = config.IsolationProcess
	single.Workers.Size = 1
	ex, err := newExecutor(&single, logger, nil)
	if err != nil {
		return result.EvaluationResult{}, err
	}
	defer ex.Close()
	return ex.Submit(context.Background(), result.Task{Candidate: c, Config: single.Benchmark}), nil
}
