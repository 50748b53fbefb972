package worker

import (
	"github.com/charmbracelet/log"

	"github.com/signalnine/sandbench/internal/config"
	"github.com/signalnine/sandbench/internal/metrics"
)

// New picks the executor cfg asks for: a persistent pool, single-use
// processes, or single-use containers.
func New(cfg *config.Config, cmd Command, logger *log.Logger, m *metrics.Collector) (Executor, error) {
	opts := Options{
		Size:            cfg.Workers.Size,
		RecycleInterval: cfg.Benchmark.WorkerRecycleInterval,
		Timeout:         cfg.Benchmark.EvalTimeout,
		StartupTimeout:  cfg.Workers.StartupTimeout,
		Command:         cmd,
		Logger:          logger,
		Metrics:         m,
	}
	if cfg.Workers.Isolation == config.IsolationContainer {
		if cfg.Benchmark.UseWorkerPool && logger != nil {
			logger.Warn("container isolation runs one container per task; use_worker_pool is ignored")
		}
		return NewContainerSpawner(opts, ContainerOptions{
			Image:       cfg.Workers.Image,
			CPULimit:    cfg.Workers.CPULimit,
			MemoryLimit: cfg.Workers.MemoryLimit,
		}), nil
	}
	if cfg.Benchmark.UseWorkerPool {
		pool, err := NewPool(opts)
		if err != nil {
			return nil, err
		}
		return pool, nil
	}
	return NewSpawner(opts), nil
}

// ModeOf names the execution mode of ex as recorded in results and metrics.
func ModeOf(ex Executor) string {
	switch ex.(type) {
	case *Pool:
		return "pool"
	case *Spawner:
		return "spawn"
	case *ContainerSpawner:
		return "container"
	}
	return "unknown"
}
