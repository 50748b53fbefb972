package worker

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/signalnine/sandbench/internal/result"
)

var (
	// ErrTimeout means the worker was killed for running past its deadline.
	ErrTimeout = errors.New("worker timed out")
	// ErrCrashed means the worker exited or broke the protocol mid-task.
	ErrCrashed = errors.New("worker crashed")
)

// stopGrace is how long a worker gets to exit after its stdin is closed.
const stopGrace = 2 * time.Second

type State string

const (
	StateIdle      State = "idle"
	StateBusy      State = "busy"
	StateRecycling State = "recycling"
	StateDead      State = "dead"
)

// Command is how a worker process is started: normally this binary with
// the hidden "worker" subcommand.
type Command struct {
	Path string
	Args []string
	Env  []string
}

// SelfCommand re-executes the running binary as a worker.
func SelfCommand(args ...string) (Command, error) {
	exe, err := os.Executable()
	if err != nil {
		return Command{}, fmt.Errorf("locating executable: %w", err)
	}
	return Command{Path: exe, Args: append([]string{"worker"}, args...)}, nil
}

// Handle is one live worker process. TaskCount and state belong to the
// owner (pool or spawner) and are guarded by it.
type Handle struct {
	ID        string
	PID       int
	TaskCount int
	state     State

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	waitOnce sync.Once
	waitErr  error
}

// launch starts a worker and waits up to startup for its ready line.
func launch(c Command, startup time.Duration, logger *log.Logger) (*Handle, error) {
	id := uuid.NewString()
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stderr = &lineLogger{logger: logger.With("worker", id[:8])}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	h := &Handle{
		ID:     id,
		PID:    cmd.Process.Pid,
		state:  StateIdle,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReaderSize(stdout, 64<<10),
	}

	var ready Ready
	if err := h.read(&ready, startup); err != nil {
		h.Kill()
		return nil, fmt.Errorf("worker handshake: %w", err)
	}
	if !ready.Ready {
		h.Kill()
		return nil, fmt.Errorf("worker handshake: not ready")
	}
	return h, nil
}

// Do sends one task and waits for its result. On timeout the process is
// killed before Do returns.
func (h *Handle) Do(task result.Task, timeout time.Duration) (result.EvaluationResult, error) {
	line, err := json.Marshal(Request{ID: task.ID, Task: task})
	if err != nil {
		return result.EvaluationResult{}, fmt.Errorf("encoding request: %w", err)
	}
	if _, err := h.stdin.Write(append(line, '\n')); err != nil {
		return result.EvaluationResult{}, fmt.Errorf("%w: sending task: %v", ErrCrashed, err)
	}
	var resp Response
	if err := h.read(&resp, timeout); err != nil {
		return result.EvaluationResult{}, err
	}
	if resp.ID != task.ID {
		h.Kill()
		return result.EvaluationResult{}, fmt.Errorf("%w: response for %q, want %q", ErrCrashed, resp.ID, task.ID)
	}
	return resp.Result, nil
}

// read decodes the next protocol line into v, killing the worker if none
// arrives within timeout.
func (h *Handle) read(v any, timeout time.Duration) error {
	type line struct {
		data []byte
		err  error
	}
	ch := make(chan line, 1)
	go func() {
		data, err := h.stdout.ReadBytes('\n')
		ch <- line{data, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case l := <-ch:
		if l.err != nil {
			h.Kill()
			return fmt.Errorf("%w: %s", ErrCrashed, h.exitStatus(l.err))
		}
		if err := json.Unmarshal(l.data, v); err != nil {
			h.Kill()
			return fmt.Errorf("%w: bad message: %v", ErrCrashed, err)
		}
		return nil
	case <-timer.C:
		h.Kill()
		<-ch
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

func (h *Handle) exitStatus(readErr error) string {
	if err := h.wait(); err != nil {
		return err.Error()
	}
	if readErr == io.EOF {
		return "exited"
	}
	return readErr.Error()
}

// Kill terminates the process and reaps it.
func (h *Handle) Kill() {
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	_ = h.wait()
}

// Stop closes stdin so the worker exits on its own, killing it if it has
// not done so within stopGrace.
func (h *Handle) Stop() {
	_ = h.stdin.Close()
	done := make(chan struct{})
	go func() {
		_ = h.wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopGrace):
		h.Kill()
		<-done
	}
}

func (h *Handle) wait() error {
	h.waitOnce.Do(func() {
		h.waitErr = h.cmd.Wait()
	})
	return h.waitErr
}

// lineLogger forwards worker stderr to the parent's logger, one entry per line.
type lineLogger struct {
	mu     sync.Mutex
	logger *log.Logger
	buf    []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimSpace(l.buf[:i]); len(line) > 0 {
			l.logger.Debug(string(line))
		}
		l.buf = l.buf[i+1:]
	}
	return len(p), nil
}
