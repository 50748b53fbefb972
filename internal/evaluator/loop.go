package evaluator

import (
	"fmt"

	"github.com/signalnine/sandbench/internal/config"
	"github.com/signalnine/sandbench/internal/sandbox"
	"github.com/signalnine/sandbench/internal/trajectory"
)

// InstanceResult is the outcome of one (dim, instance, seed) run.
type InstanceResult struct {
	Dim        int
	Instance   int
	Seed       int64
	AUC        float64
	Trajectory []trajectory.Record
	// Metrics is nil when the trajectory was too short to describe.
	Metrics map[string]float64
}

// RunSeed derives the random seed of one run. Without configured seeds the
// instance id alone seeds the run.
func RunSeed(instance int, seed int, seeded bool) int64 {
	if !seeded {
		return int64(instance)
	}
	return int64(instance)<<32 | int64(uint32(seed))
}

// Loop evaluates alg on every configured (dim, instance, seed). The first
// failing run stops the loop; results so far and the number of objective
// calls made are returned with the error.
func (e *Evaluator) Loop(ns *sandbox.Namespace, alg sandbox.Algorithm, cfg config.Benchmark) ([]InstanceResult, int, error) {
	seeds, seeded := cfg.Seeds, len(cfg.Seeds) > 0
	if !seeded {
		seeds = []int{0}
	}

	rec := trajectory.NewRecorder(0)
	runs := make([]InstanceResult, 0, cfg.Runs())
	evals := 0
	for _, dim := range cfg.Dims {
		budget := cfg.BudgetFactor * dim
		bounds := cfg.BoundsFor(dim)
		rec.SetDim(dim)
		for _, id := range cfg.TrainingInstances {
			for _, s := range seeds {
				seed := RunSeed(id, s, seeded)
				p := e.suite.Problem(id, dim, budget)
				rec.Reset()
				p.Attach(rec)
				ns.Reseed(seed)

				err := runOnce(alg, p)
				evals += p.Evaluations()
				records := rec.Records()
				optimum := p.Optimum()
				exhausted := p.Exhausted()
				p.Reset()
				p.Detach()
				if err != nil {
					return runs, evals, fmt.Errorf("instance %d (dim %d, seed %d): %w", id, dim, seed, err)
				}

				run := InstanceResult{
					Dim:        dim,
					Instance:   id,
					Seed:       seed,
					AUC:        trajectory.AOCC(records, budget, optimum, trajectory.DefaultLower, trajectory.DefaultUpper),
					Trajectory: records,
				}
				if m, ok := trajectory.Metrics(records, bounds); ok {
					run.Metrics = m
				}
				e.logger.Debug("instance done", "dim", dim, "instance", id, "seed", seed,
					"auc", run.AUC, "evaluations", len(records), "budget_hit", exhausted)
				if e.OnInstance != nil {
					e.OnInstance(run)
				}
				runs = append(runs, run)
			}
		}
	}
	return runs, evals, nil
}
