package worker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/signalnine/sandbench/internal/bbob"
	"github.com/signalnine/sandbench/internal/evaluator"
	"github.com/signalnine/sandbench/internal/result"
)

// Handler evaluates one task inside a worker process.
type Handler func(result.Task) result.EvaluationResult

// EvaluatorHandler runs the full pipeline with ev.
func EvaluatorHandler(ev *evaluator.Evaluator) Handler {
	return func(task result.Task) result.EvaluationResult {
		return ev.Evaluate(task.Candidate, task.Config)
	}
}

// WithPreload builds the suite instances named by the first valid task
// before handling it. Tasks share one benchmark per run, so later tasks on
// this worker find every instance cached.
func WithPreload(suite *bbob.Suite, h Handler) Handler {
	var once sync.Once
	return func(task result.Task) result.EvaluationResult {
		if task.Config.Validate() == nil {
			once.Do(func() {
				suite.Preload(task.Config.TrainingInstances, task.Config.Dims)
			})
		}
		return h(task)
	}
}

// Serve announces readiness on w, then answers requests from r until r is
// closed. With once set it returns after the first response.
func Serve(r io.Reader, w io.Writer, h Handler, once bool) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(Ready{Ready: true, PID: os.Getpid()}); err != nil {
		return fmt.Errorf("writing ready: %w", err)
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxMessage)
	for sc.Scan() {
		var req Request
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			return fmt.Errorf("decoding request: %w", err)
		}
		res := h(req.Task)
		if err := enc.Encode(Response{ID: req.ID, Result: res}); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
		if once {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

// ServeStdio serves on the process's stdin and stdout. Stdout is kept for
// the protocol only: os.Stdout is pointed at stderr so stray writes cannot
// corrupt it.
func ServeStdio(h Handler, once bool) error {
	proto := os.Stdout
	os.Stdout = os.Stderr
	defer func() { os.Stdout = proto }()
	return Serve(os.Stdin, proto, h, once)
}

// ServeFile evaluates the single task stored in taskFile and writes the
// result to resultFile. Containers use it in place of stdio.
func ServeFile(taskFile, resultFile string, h Handler) error {
	data, err := os.ReadFile(taskFile)
	if err != nil {
		return fmt.Errorf("reading task: %w", err)
	}
	var task result.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return fmt.Errorf("decoding task: %w", err)
	}
	res := h(task)
	out, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	tmp := resultFile + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return os.Rename(tmp, resultFile)
}
