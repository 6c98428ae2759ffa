package versioner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result is the outcome of an external command that ran to completion.
type Result struct {
	// Output is the captured stdout.
	Output string
	// Stderr is the captured stderr, kept for diagnostics.
	Stderr string
	// ExitCode is the process exit status.
	ExitCode int
}

// Success reports whether the command exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Commander runs an external program in a directory.
// A non-nil error means the program could not be started or timed out;
// a finished program with a non-zero status is reported through Result.
type Commander interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

// ExecCommander runs programs with os/exec.
type ExecCommander struct {
	// Timeout bounds every call. Zero means no extra deadline.
	Timeout time.Duration
}

// Run executes name with args in dir and captures its output.
func (c ExecCommander) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := Result{
		Output: stdout.String(),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	var exitErr *exec.ExitError

	switch {
	case err == nil:
		return result, nil
	case ctx.Err() != nil:
		return result, fmt.Errorf("run %s: %w", name, ctx.Err())
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	default:
		return result, fmt.Errorf("run %s: %w", name, err)
	}
}
