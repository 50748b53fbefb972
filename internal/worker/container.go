package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/signalnine/sandbench/internal/docker"
	"github.com/signalnine/sandbench/internal/result"
)

const containerTaskDir = "/task"

// ContainerOptions configures single-use workers run inside Docker. The image
// must carry the sandbench binary on its PATH.
type ContainerOptions struct {
	Image       string
	CPULimit    float64
	MemoryLimit int64
	// ScratchDir holds per-task directories; defaults to os.TempDir().
	ScratchDir string
}

// ContainerSpawner runs each task in a fresh container with no network. Task
// and result are exchanged through a bind-mounted directory.
type ContainerSpawner struct {
	opts   Options
	copts  ContainerOptions
	logger *log.Logger
	slots  *semaphore.Weighted
	run    func(context.Context, *docker.RunOpts) (*docker.RunResult, error)
}

func NewContainerSpawner(opts Options, copts ContainerOptions) *ContainerSpawner {
	opts.defaults()
	return &ContainerSpawner{
		opts:   opts,
		copts:  copts,
		logger: opts.Logger.WithPrefix("container"),
		slots:  semaphore.NewWeighted(int64(opts.Size)),
		run:    docker.RunContainer,
	}
}

func (s *ContainerSpawner) Submit(ctx context.Context, task result.Task) result.EvaluationResult {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return result.Failuref(result.KindWorkerUnavailable, "waiting for a worker: %v", err)
	}
	defer s.slots.Release(1)

	start := time.Now()
	res := s.submit(task)
	s.opts.Metrics.ObserveTask("container", outcome(res), time.Since(start))
	return res
}

func (s *ContainerSpawner) submit(task result.Task) result.EvaluationResult {
	dir, err := os.MkdirTemp(s.copts.ScratchDir, "sandbench-task-")
	if err != nil {
		return result.Failuref(result.KindWorkerUnavailable, "creating task dir: %v", err)
	}
	defer os.RemoveAll(dir)

	data, err := json.Marshal(task)
	if err != nil {
		return result.Failuref(result.KindWorkerUnavailable, "encoding task: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "task.json"), data, 0o644); err != nil {
		return result.Failuref(result.KindWorkerUnavailable, "writing task: %v", err)
	}

	timeout := s.opts.timeout(task)
	logs := &lineLogger{logger: s.logger.With("task", task.ID)}
	s.opts.Metrics.WorkerLaunched("container")
	run, err := s.run(context.Background(), &docker.RunOpts{
		Image: s.copts.Image,
		Command: []string{
			"sandbench", "worker", "--once",
			"--task-file", containerTaskDir + "/task.json",
			"--result-file", containerTaskDir + "/result.json",
		},
		Mounts:          []docker.Mount{{Source: dir, Target: containerTaskDir}},
		Timeout:         timeout,
		NetworkDisabled: true,
		CPULimit:        s.copts.CPULimit,
		MemoryLimit:     s.copts.MemoryLimit,
		UserID:          fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		Logs:            logs,
	})
	if err != nil {
		return result.Failuref(result.KindWorkerUnavailable, "running container: %v", err)
	}
	if run.TimedOut {
		s.logger.Warn("container timed out", "task", task.ID, "timeout", timeout)
		return result.Failuref(result.KindWorkerTimeout, "timeout: evaluation exceeded %s", timeout)
	}
	if run.ExitCode != 0 {
		return result.Failuref(result.KindWorkerCrash, "worker crashed: container exited with code %d", run.ExitCode)
	}

	out, err := os.ReadFile(filepath.Join(dir, "result.json"))
	if err != nil {
		return result.Failuref(result.KindWorkerCrash, "worker crashed: no result: %v", err)
	}
	var res result.EvaluationResult
	if err := json.Unmarshal(out, &res); err != nil {
		return result.Failuref(result.KindWorkerCrash, "worker crashed: bad result: %v", err)
	}
	return res
}

func (s *ContainerSpawner) Close() error { return nil }
