// Package runner spawns the external assistant process with a bounded
// lifetime. At most one run is in flight; whichever of exit, timeout, or
// cancel happens first wins the transition out of running and disables the
// others.
package runner

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds a run when the caller does not override it.
const DefaultTimeout = 300 * time.Second

// Status is the run state machine: idle -> running -> {completed, error},
// with running -> idle via explicit cancel.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusCompleted
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// ErrBusy is returned synchronously when a run is requested while another
// is active. The in-flight run is not disturbed.
var ErrBusy = errors.New("assistant is already running; cancel it or wait for it to finish")

// TimeoutError reports a run that exceeded its budget and was killed.
type TimeoutError struct {
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("assistant timed out after %d seconds", int(e.Elapsed.Seconds()))
}

// ProcessError reports a spawn failure or non-zero exit.
type ProcessError struct {
	ExitCode int
	Message  string
}

func (e *ProcessError) Error() string { return e.Message }

// Options configures a single run. Completion and failure are delivered
// through exactly one of the two callbacks; a run never silently
// disappears. Cancel fires neither.
type Options struct {
	Timeout    time.Duration
	OnComplete func(stdout string)
	OnError    func(err error)
}

// Runner owns the child process handle, the timeout timer, and the output
// buffers for the active run. All are released at a terminal state.
type Runner struct {
	command   string
	extraArgs []string
	dir       string

	mu        sync.Mutex
	status    Status
	cmd       *exec.Cmd
	timer     *time.Timer
	startedAt time.Time
}

// New creates a runner for the given assistant executable. extraArgs are
// appended after the prompt (e.g. --output-format json). dir becomes the
// child's working directory.
func New(command string, extraArgs []string, dir string) *Runner {
	return &Runner{command: command, extraArgs: extraArgs, dir: dir}
}

// Status returns the current run state.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Run spawns the assistant with the prompt passed as an argument. The
// child's stdin is not connected so it can never block on interactive
// input. Returns ErrBusy synchronously if a run is active; every other
// failure arrives via opts.OnError.
func (r *Runner) Run(prompt string, opts Options) error {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	r.mu.Lock()
	if r.status == StatusRunning {
		r.mu.Unlock()
		return ErrBusy
	}

	// Executable lookup before spawn: fail fast, start nothing.
	path, err := exec.LookPath(r.command)
	if err != nil {
		r.status = StatusError
		r.mu.Unlock()
		r.fail(opts, &ProcessError{Message: fmt.Sprintf("assistant executable %q not found in PATH", r.command)})
		return nil
	}

	args := append([]string{"-p", prompt}, r.extraArgs...)
	cmd := exec.Command(path, args...)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		r.status = StatusError
		r.mu.Unlock()
		r.fail(opts, &ProcessError{Message: fmt.Sprintf("failed to start assistant: %v", err)})
		return nil
	}

	r.cmd = cmd
	r.status = StatusRunning
	r.startedAt = time.Now()
	r.timer = time.AfterFunc(opts.Timeout, func() { r.onTimeout(opts) })
	r.mu.Unlock()

	go r.wait(cmd, &stdout, &stderr, opts)
	return nil
}

// wait collects the process exit. The transition only happens if the run is
// still running: a timeout or cancel that already fired wins.
func (r *Runner) wait(cmd *exec.Cmd, stdout, stderr *bytes.Buffer, opts Options) {
	err := cmd.Wait()

	r.mu.Lock()
	if r.status != StatusRunning || r.cmd != cmd {
		r.mu.Unlock()
		return
	}
	r.disarm()
	r.cmd = nil

	if err != nil {
		r.status = StatusError
		r.mu.Unlock()

		msg := strings.TrimSpace(stderr.String())
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if msg == "" {
			msg = fmt.Sprintf("assistant exited with code %d", exitCode)
		}
		r.fail(opts, &ProcessError{ExitCode: exitCode, Message: msg})
		return
	}

	r.status = StatusCompleted
	r.mu.Unlock()

	if opts.OnComplete != nil {
		opts.OnComplete(stdout.String())
	}
}

// onTimeout kills the process if the run is still in flight.
func (r *Runner) onTimeout(opts Options) {
	r.mu.Lock()
	if r.status != StatusRunning {
		r.mu.Unlock()
		return
	}
	elapsed := time.Since(r.startedAt)
	r.status = StatusError
	r.kill()
	r.mu.Unlock()

	r.fail(opts, &TimeoutError{Elapsed: elapsed})
}

// Cancel terminates the run if one is active and resets the state machine
// to idle unconditionally. Neither callback is invoked. The child's actual
// termination is asynchronous; the filesystem may not be quiescent when
// Cancel returns.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusRunning {
		r.kill()
	}
	r.disarm()
	r.status = StatusIdle
}

// kill and disarm require r.mu to be held.
func (r *Runner) kill() {
	if r.cmd != nil && r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	r.cmd = nil
}

func (r *Runner) disarm() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Runner) fail(opts Options, err error) {
	if opts.OnError != nil {
		opts.OnError(err)
	}
}
