// Package runner launches task runner processes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/runstate"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

// DefaultBinary is the task runner looked up on PATH when none is
// configured.
const DefaultBinary = "task"

// WatchFlag makes the runner re-run the task when its sources change.
const WatchFlag = "--watch"

// Runner starts task executions.
type Runner struct {
	// Binary is the task runner executable, a name or a path.
	Binary string

	// Stdout and Stderr receive the output of executions. Nil discards.
	Stdout io.Writer
	Stderr io.Writer
}

// New creates a runner for binary, falling back to DefaultBinary.
func New(binary string) *Runner {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Runner{Binary: binary}
}

// Resolve returns the absolute path of the task runner binary. A missing
// binary is reported with a NOT_INSTALLED error.
func (r *Runner) Resolve() (string, error) {
	path, err := exec.LookPath(r.Binary)
	if err != nil {
		return "", clierr.Wrap(clierr.NotInstalled, err, "Task is not installed").
			WithDetails(map[string]any{"binary": r.Binary})
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil //nolint:nilerr // LookPath result is usable as is
	}
	return abs, nil
}

// Command returns the argument list for running info.
func Command(info task.Info, watch bool) []string {
	args := []string{info.Name()}
	if watch {
		args = append(args, WatchFlag)
	}
	return args
}

// Start launches the task runner for info in the Taskfile's directory. The
// binary's directory is prepended to PATH so nested task invocations find
// the same runner.
func (r *Runner) Start(ctx context.Context, info task.Info, watch bool) (*Process, error) {
	binary, err := r.Resolve()
	if err != nil {
		return nil, err
	}

	args := Command(info, watch)
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec // task names come from the user's Taskfiles
	cmd.Dir = info.Dir()
	cmd.Env = withPath(os.Environ(), filepath.Dir(binary))
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	p := &Process{
		ID:   uuid.NewString(),
		Info: info,
		Args: args,
		cmd:  cmd,
		done: make(chan struct{}),
	}
	p.exitCode.Store(-1)

	if err := cmd.Start(); err != nil {
		return nil, clierr.Wrap(clierr.InternalError, err, "starting task %s", info.Name()).
			WithDetails(map[string]any{"task": info.Name(), "taskfile": info.Scope})
	}
	p.Started = time.Now()
	slog.Debug("runner: started", "id", p.ID, "task", info.Name(), "dir", cmd.Dir, "pid", cmd.Process.Pid)

	go p.wait()
	return p, nil
}

// Launch starts info and returns it as a tracked execution.
func (r *Runner) Launch(ctx context.Context, info task.Info, watch bool) (runstate.Execution, error) {
	p, err := r.Start(ctx, info, watch)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func withPath(env []string, dir string) []string {
	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		if name, value, ok := strings.Cut(kv, "="); ok && strings.EqualFold(name, "PATH") {
			out = append(out, name+"="+dir+string(os.PathListSeparator)+value)
			found = true
			continue
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, "PATH="+dir)
	}
	return out
}

// Process is a running task runner.
type Process struct {
	ID      string
	Info    task.Info
	Args    []string
	Started time.Time

	cmd      *exec.Cmd
	done     chan struct{}
	exitCode atomic.Int32

	mu      sync.Mutex
	exitErr error
}

// ExecutionID returns the unique ID of this run.
func (p *Process) ExecutionID() string { return p.ID }

// Done is closed when the process exits.
func (p *Process) Done() <-chan struct{} { return p.done }

// ExitCode returns the exit status, or -1 while the process runs.
func (p *Process) ExitCode() int { return int(p.exitCode.Load()) }

// Err returns the error reported by the process exit, if any.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Terminate asks the process to stop, killing it where signals are not
// supported. Terminating an exited process is not an error.
func (p *Process) Terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Signal(syscall.SIGTERM)
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("terminating task %s: %w", p.Info.Name(), err)
	}
	return nil
}

// Wait blocks until the process exits or ctx is done.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Process) wait() {
	err := p.cmd.Wait()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()
	p.exitCode.Store(int32(code)) //nolint:gosec // exit codes fit in int32

	slog.Debug("runner: exited", "id", p.ID, "task", p.Info.Name(), "code", code, "elapsed", time.Since(p.Started))
	close(p.done)
}
