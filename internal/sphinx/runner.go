package sphinx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
)

// Invocation is one external command to execute: a binary, its arguments and
// an optional working directory.
type Invocation struct {
	Binary string
	Args   []string
	Dir    string
}

// Runner abstracts how external documentation commands are executed. This
// allows swapping the real subprocess execution (BinaryRunner) with a
// recording or no-op implementation in tests without changing orchestration.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// BinaryRunner executes invocations via os/exec.
type BinaryRunner struct{}

func (b *BinaryRunner) Run(ctx context.Context, inv Invocation) error {
	if _, err := exec.LookPath(inv.Binary); err != nil {
		return fmt.Errorf("%w: %w", ErrBinaryNotFound, err)
	}

	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...)
	cmd.Dir = inv.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Invoking external command", "binary", inv.Binary, "args", inv.Args, "dir", inv.Dir)
	err := cmd.Run()

	if out := stdout.String(); out != "" {
		slog.Debug("command stdout", "binary", inv.Binary, "output", out)
	}
	if errOut := stderr.String(); errOut != "" {
		slog.Warn("command stderr", "binary", inv.Binary, "error_output", errOut)
	}

	if err != nil {
		// sphinx-build writes diagnostics to either stream; include both so
		// the surfaced error is actionable.
		output := stderr.String()
		if output == "" {
			output = stdout.String()
		}
		if output != "" {
			return fmt.Errorf("%w: %w: %s", ErrExecutionFailed, err, output)
		}
		return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}
	return nil
}

// ExitCode extracts the subprocess exit code from an error returned by a
// Runner, or -1 when no exit status is attached.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// NoopRunner performs no execution; useful in tests or dry runs.
type NoopRunner struct{}

func (n *NoopRunner) Run(_ context.Context, inv Invocation) error {
	slog.Debug("NoopRunner skipping command", "binary", inv.Binary, "args", inv.Args)
	return nil
}
