package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Result holds the captured output of one engine invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Executor runs the external engine binary. A non-zero exit must be reported as an
// error; the result is returned in both cases so callers can surface diagnostics.
type Executor interface {
	Execute(ctx context.Context, binary string, args []string) (*Result, error)
}

// CommandExecutor runs the binary as a child process.
type CommandExecutor struct{}

// Execute runs binary with args, killing it when ctx is done.
func (CommandExecutor) Execute(ctx context.Context, binary string, args []string) (*Result, error) {
	// #nosec G204 -- binary comes from configuration and args are built by this package
	cmd := exec.CommandContext(ctx, binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}

	if err != nil {
		return result, fmt.Errorf("%s execution failed: %w", binary, err)
	}

	return result, nil
}
