package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/signalnine/sandbench/internal/logging"
	"github.com/signalnine/sandbench/internal/metrics"
	"github.com/signalnine/sandbench/internal/result"
)

// Executor runs evaluation tasks out of process. Submit never returns a Go
// error: launch failures, timeouts and crashes come back as failed results.
type Executor interface {
	Submit(ctx context.Context, task result.Task) result.EvaluationResult
	Close() error
}

type Options struct {
	// Size bounds the number of concurrently running workers.
	Size int
	// RecycleInterval relaunches a worker after that many tasks. 0 never does.
	RecycleInterval int
	// Timeout applies when a task carries no eval_timeout of its own.
	Timeout        time.Duration
	StartupTimeout time.Duration
	Command        Command
	Logger         *log.Logger
	Metrics        *metrics.Collector
}

func (o *Options) defaults() {
	if o.Size < 1 {
		o.Size = 1
	}
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = 30 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Hour
	}
	o.Logger = logging.Or(o.Logger)
}

func (o *Options) timeout(task result.Task) time.Duration {
	if task.Config.EvalTimeout > 0 {
		return task.Config.EvalTimeout
	}
	return o.Timeout
}

// WorkerInfo is a point-in-time view of one pool worker.
type WorkerInfo struct {
	ID        string
	PID       int
	TaskCount int
	State     State
}

// Pool keeps up to Size persistent workers. Each worker runs one task at a
// time; workers that time out, crash or reach the recycle interval are
// destroyed and replaced by a fresh process before their slot frees up.
type Pool struct {
	opts   Options
	logger *log.Logger

	slots *semaphore.Weighted
	idle  chan *Handle

	mu      sync.Mutex
	workers []*Handle

	replacing sync.WaitGroup
	closed    atomic.Bool
}

// NewPool starts Size workers and waits for all of them to be ready.
func NewPool(opts Options) (*Pool, error) {
	opts.defaults()
	p := &Pool{
		opts:   opts,
		logger: opts.Logger.WithPrefix("pool"),
		slots:  semaphore.NewWeighted(int64(opts.Size)),
		idle:   make(chan *Handle, opts.Size),
	}
	for i := 0; i < opts.Size; i++ {
		h, err := p.launch("startup")
		if err != nil {
			p.Close()
			return nil, err
		}
		p.idle <- h
	}
	p.logger.Info("worker pool ready", "size", opts.Size, "recycle_interval", opts.RecycleInterval)
	return p, nil
}

// Submit blocks until a worker is free, runs task on it and returns the
// result. ctx bounds only the wait for a free worker; once the task is
// running it ends by completion, timeout or crash.
func (p *Pool) Submit(ctx context.Context, task result.Task) result.EvaluationResult {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if p.closed.Load() {
		return result.Failure(result.KindWorkerUnavailable, "worker pool is closed")
	}
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return result.Failuref(result.KindWorkerUnavailable, "waiting for a worker: %v", err)
	}
	if p.closed.Load() {
		p.slots.Release(1)
		return result.Failure(result.KindWorkerUnavailable, "worker pool is closed")
	}

	h, err := p.checkout()
	if err != nil {
		p.slots.Release(1)
		return result.Failuref(result.KindWorkerUnavailable, "launching worker: %v", err)
	}

	timeout := p.opts.timeout(task)
	start := time.Now()
	res, err := h.Do(task, timeout)

	p.mu.Lock()
	h.TaskCount++
	count := h.TaskCount
	p.mu.Unlock()

	switch {
	case errors.Is(err, ErrTimeout):
		p.logger.Warn("worker timed out", "worker", h.ID, "pid", h.PID, "task", task.ID, "timeout", timeout)
		res = result.Failuref(result.KindWorkerTimeout, "timeout: evaluation exceeded %s", timeout)
		p.replace(h, StateDead, "timeout")
	case err != nil:
		p.logger.Warn("worker crashed", "worker", h.ID, "pid", h.PID, "task", task.ID, "err", err)
		res = result.Failuref(result.KindWorkerCrash, "worker crashed: %v", err)
		p.replace(h, StateDead, "crash")
	case p.opts.RecycleInterval > 0 && count >= p.opts.RecycleInterval:
		p.logger.Debug("recycling worker", "worker", h.ID, "pid", h.PID, "tasks", count)
		p.replace(h, StateRecycling, "recycle")
	default:
		p.checkin(h)
	}
	res.WorkerID = h.ID
	p.opts.Metrics.ObserveTask("pool", outcome(res), time.Since(start))
	return res
}

// Workers snapshots the live workers in launch order.
func (p *Pool) Workers() []WorkerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]WorkerInfo, len(p.workers))
	for i, h := range p.workers {
		out[i] = WorkerInfo{ID: h.ID, PID: h.PID, TaskCount: h.TaskCount, State: h.state}
	}
	return out
}

// Close waits for running tasks and pending replacements, then stops every
// worker.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = p.slots.Acquire(context.Background(), int64(p.opts.Size))
	defer p.slots.Release(int64(p.opts.Size))
	p.replacing.Wait()

	for {
		select {
		case h := <-p.idle:
			h.Stop()
			p.remove(h)
		default:
			p.logger.Debug("worker pool closed")
			return nil
		}
	}
}

func (p *Pool) checkout() (*Handle, error) {
	var h *Handle
	select {
	case h = <-p.idle:
	default:
		// A replacement failed earlier; start one on demand.
		var err error
		if h, err = p.launch("on_demand"); err != nil {
			return nil, err
		}
	}
	p.setState(h, StateBusy)
	return h, nil
}

func (p *Pool) checkin(h *Handle) {
	p.setState(h, StateIdle)
	p.idle <- h
	p.slots.Release(1)
}

// replace destroys h and launches its successor in the background. The slot
// held for h is released only once the successor is idle (or failed to
// start), so the pool never exceeds Size processes.
func (p *Pool) replace(h *Handle, state State, reason string) {
	p.setState(h, state)
	p.replacing.Add(1)
	go func() {
		defer p.replacing.Done()
		defer p.slots.Release(1)

		if state == StateRecycling {
			h.Stop()
		} else {
			h.Kill()
		}
		p.remove(h)
		if p.closed.Load() {
			return
		}
		next, err := p.launch(reason)
		if err != nil {
			p.logger.Error("relaunching worker", "reason", reason, "err", err)
			return
		}
		p.idle <- next
	}()
}

func (p *Pool) launch(reason string) (*Handle, error) {
	h, err := launch(p.opts.Command, p.opts.StartupTimeout, p.logger)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.workers = append(p.workers, h)
	p.mu.Unlock()
	p.opts.Metrics.WorkerLaunched(reason)
	p.publish()
	p.logger.Debug("worker launched", "worker", h.ID, "pid", h.PID, "reason", reason)
	return h, nil
}

func (p *Pool) remove(h *Handle) {
	p.mu.Lock()
	for i, w := range p.workers {
		if w == h {
			p.workers = append(p.workers[:i], p.workers[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
	p.publish()
}

func (p *Pool) setState(h *Handle, s State) {
	p.mu.Lock()
	h.state = s
	p.mu.Unlock()
	p.publish()
}

func (p *Pool) publish() {
	if p.opts.Metrics == nil {
		return
	}
	counts := map[string]int{}
	for _, w := range p.Workers() {
		counts[string(w.State)]++
	}
	p.opts.Metrics.SetWorkers(counts)
}

func outcome(res result.EvaluationResult) string {
	if res.Failed() {
		return string(res.Kind)
	}
	return "ok"
}

// String is used in log lines and the bench command.
func (w WorkerInfo) String() string {
	return fmt.Sprintf("%s pid=%d tasks=%d %s", w.ID[:8], w.PID, w.TaskCount, w.State)
}
