package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signalnine/sandbench/internal/bbob"
	"github.com/signalnine/sandbench/internal/trajectory"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List benchmark instances and behavioural metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			b := cfg.Benchmark
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Budget: %d x dim, timeout %s, worker pool %v (recycle every %d)\n",
				b.BudgetFactor, b.EvalTimeout, b.UseWorkerPool, b.WorkerRecycleInterval)
			fmt.Fprintf(out, "Allowed imports: %s\n", strings.Join(b.AllowedImports, ", "))
			if len(b.Seeds) > 0 {
				fmt.Fprintf(out, "Seeds: %v\n", b.Seeds)
			}

			fmt.Fprintln(out, "\nInstances:")
			suite := bbob.NewSuite()
			for _, dim := range b.Dims {
				for _, id := range b.TrainingInstances {
					in := suite.Instance(id, dim)
					fmt.Fprintf(out, "  - instance %d, dim %d: %s (f* = %.4g)\n",
						id, dim, strings.Join(in.Functions(), " + "), in.Optimum())
				}
			}

			fmt.Fprintln(out, "\nBehavioral metrics:")
			for _, name := range trajectory.MetricNames {
				fmt.Fprintf(out, "  - %s\n", name)
			}
			return nil
		},
	}
}
