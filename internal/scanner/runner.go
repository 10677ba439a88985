package scanner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// Result holds everything the external command left behind.
type Result struct {
	Command  []string
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Err      error
}

// Runner executes an external command. A failed command is reported through
// Result.Err, never by panicking or returning a nil Result.
type Runner interface {
	Run(ctx context.Context, program string, args ...string) *Result
}

// CommandRunner runs commands as child processes, killing them after Timeout.
type CommandRunner struct {
	Timeout time.Duration
}

func NewCommandRunner(timeout time.Duration) *CommandRunner {
	return &CommandRunner{Timeout: timeout}
}

func (c *CommandRunner) Run(ctx context.Context, program string, args ...string) *Result {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, program, args...)
	// don't wait forever on pipes held open by grandchildren after a kill
	cmd.WaitDelay = 5 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()

	result := &Result{
		Command: append([]string{program}, args...),
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Err:     err,
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		if result.Err == nil {
			result.Err = ctx.Err()
		}
	}

	logrus.WithFields(logrus.Fields{
		"command":   result.Command,
		"exit_code": result.ExitCode,
		"timed_out": result.TimedOut,
		"duration":  time.Since(started).Seconds(),
	}).Debug("external command finished")
	return result
}
