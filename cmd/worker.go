package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/sandbench/internal/bbob"
	"github.com/signalnine/sandbench/internal/evaluator"
	"github.com/signalnine/sandbench/internal/logging"
	"github.com/signalnine/sandbench/internal/worker"
)

var (
	flagOnce       bool
	flagTaskFile   string
	flagResultFile string
)

// newWorkerCmd is the entry point of worker processes. It is started by
// the pool, the spawner or inside a container, never by hand.
func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Serve evaluation requests (internal)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (flagTaskFile == "") != (flagResultFile == "") {
				return fmt.Errorf("--task-file and --result-file go together")
			}
			// Worker logs always go to stderr; the parent forwards them.
			logger, _, err := logging.New(flagLogLevel, "")
			if err != nil {
				return err
			}
			logger = logger.With("pid", os.Getpid())
			suite := bbob.NewSuite()
			ev := evaluator.New(suite, logger)
			ev.Output = os.Stderr
			h := worker.WithPreload(suite, worker.EvaluatorHandler(ev))
			if flagTaskFile != "" {
				return worker.ServeFile(flagTaskFile, flagResultFile, h)
			}
			return worker.ServeStdio(h, flagOnce)
		},
	}
	cmd.Flags().BoolVar(&flagOnce, "once", false, "exit after one task")
	cmd.Flags().StringVar(&flagTaskFile, "task-file", "", "read a single task from this file")
	cmd.Flags().StringVar(&flagResultFile, "result-file", "", "write the result of --task-file here")
	return cmd
}
