package worker

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/signalnine/sandbench/internal/result"
)

// Spawner starts one fresh process per task and lets it exit afterwards.
// It is the baseline the pool is measured against: maximal isolation, full
// start-up cost on every task.
type Spawner struct {
	opts   Options
	logger *log.Logger
	slots  *semaphore.Weighted
}

// NewSpawner runs at most opts.Size tasks at once. The command is started
// with --once so the worker exits after its single response.
func NewSpawner(opts Options) *Spawner {
	opts.defaults()
	opts.Command.Args = append(append([]string(nil), opts.Command.Args...), "--once")
	return &Spawner{
		opts:   opts,
		logger: opts.Logger.WithPrefix("spawn"),
		slots:  semaphore.NewWeighted(int64(opts.Size)),
	}
}

func (s *Spawner) Submit(ctx context.Context, task result.Task) result.EvaluationResult {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return result.Failuref(result.KindWorkerUnavailable, "waiting for a worker: %v", err)
	}
	defer s.slots.Release(1)

	start := time.Now()
	res := s.run(task)
	s.opts.Metrics.ObserveTask("spawn", outcome(res), time.Since(start))
	return res
}

func (s *Spawner) run(task result.Task) result.EvaluationResult {
	h, err := launch(s.opts.Command, s.opts.StartupTimeout, s.logger)
	if err != nil {
		return result.Failuref(result.KindWorkerUnavailable, "launching worker: %v", err)
	}
	s.opts.Metrics.WorkerLaunched("single_use")

	timeout := s.opts.timeout(task)
	res, err := h.Do(task, timeout)
	switch {
	case errors.Is(err, ErrTimeout):
		s.logger.Warn("worker timed out", "pid", h.PID, "task", task.ID, "timeout", timeout)
		res = result.Failuref(result.KindWorkerTimeout, "timeout: evaluation exceeded %s", timeout)
	case err != nil:
		s.logger.Warn("worker crashed", "pid", h.PID, "task", task.ID, "err", err)
		res = result.Failuref(result.KindWorkerCrash, "worker crashed: %v", err)
	default:
		h.Stop()
	}
	res.WorkerID = h.ID
	return res
}

func (s *Spawner) Close() error { return nil }
