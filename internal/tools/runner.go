package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultMaxOutput = 1 << 20

	// waitDelay bounds how long Wait blocks on inherited pipes after the
	// process group has been killed.
	waitDelay = 2 * time.Second
)

var (
	ErrToolNotFound = errors.New("tools: binary not found")
	ErrTimeout      = errors.New("tools: execution timed out")
	ErrOutputLimit  = errors.New("tools: output limit exceeded")
	ErrEmptyCommand = errors.New("tools: command name is required")
)

// Result is the captured outcome of a process that ran to completion.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// CommandRunner abstracts argv-style process execution.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands on the local host with a timeout and a
// combined output cap. The zero value uses DefaultTimeout and DefaultMaxOutput.
type ExecRunner struct {
	Timeout   time.Duration
	MaxOutput int
}

var _ CommandRunner = ExecRunner{}

// Run executes name with args as a discrete argument vector.
//
// A nonzero exit status is not an error: the Result carries the exit code.
// Errors are ErrToolNotFound, ErrTimeout, ErrOutputLimit, or a wrapped spawn
// failure. On ErrTimeout and ErrOutputLimit the partial Result is returned.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if name == "" {
		return Result{}, ErrEmptyCommand
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := r.MaxOutput
	if limit <= 0 {
		limit = DefaultMaxOutput
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	capture := newCapture(limit, cancel)
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdout = capture.stdout()
	cmd.Stderr = capture.stderr()
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Stdout:   capture.stdoutBytes(),
		Stderr:   capture.stderrBytes(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case capture.overflowed():
		return result, fmt.Errorf("%s: %w (%d bytes)", name, ErrOutputLimit, limit)
	case err == nil:
		return result, nil
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return result, fmt.Errorf("%s: %w after %s", name, ErrTimeout, timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctx.Err() == nil {
			return result, nil
		}
		return result, fmt.Errorf("%s: %w", name, ctx.Err())
	}
	// exec.ErrNotFound comes from PATH lookup, fs.ErrNotExist from an
	// explicit path that does not exist.
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return result, fmt.Errorf("%s: %w", name, ErrToolNotFound)
	}
	return result, fmt.Errorf("%s: spawn: %w", name, err)
}
