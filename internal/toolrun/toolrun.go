// Package toolrun invokes the external processing tools that step bodies
// delegate their numerical work to.
package toolrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
)

// ErrNonZeroExit reports a tool that ran but exited with a failure status.
var ErrNonZeroExit = errors.New("tool exited with non-zero status")

// Result holds the captured output of one tool invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Invoker runs external tools as local processes.
type Invoker struct {
	logger *slog.Logger
}

// NewInvoker creates an invoker. A nil logger falls back to slog.Default.
func NewInvoker(logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{logger: logger.With("component", "toolrun")}
}

// Run executes name with args and waits for completion. On a non-zero
// exit the returned error wraps ErrNonZeroExit and the Result carries the
// exit code and captured stderr for diagnosis.
func (i *Invoker) Run(ctx context.Context, name string, args []string) (*Result, error) {
	if name == "" {
		return nil, errors.New("empty tool name")
	}

	i.logger.Debug("running tool", "tool", name, "args", args)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			i.logger.Debug("tool failed", "tool", name, "exit_code", res.ExitCode, "stderr", res.Stderr)
			return res, fmt.Errorf("%s: %w (stderr: %s)", name, ErrNonZeroExit, firstLine(res.Stderr))
		}
		return res, fmt.Errorf("start %s: %w", name, err)
	}

	return res, nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
