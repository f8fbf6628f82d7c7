// Package command runs external tools and captures their output.
//
// The exporter and the linter both shell out to macOS utilities. They depend
// on the [Runner] interface so tests can substitute canned results.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Result holds the captured outcome of a finished process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner starts a process and waits for it to exit.
//
// A non-zero exit status is not an error: it is reported through
// Result.ExitCode. An error means the process could not be run at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, name string, args ...string) (*Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	return f(ctx, name, args...)
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner returns a Runner backed by os/exec. A nil logger falls back
// to slog.Default().
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}

	return &ExecRunner{logger: logger}
}

// Run executes name with args and blocks until it exits.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // arguments come from configuration
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	res := &Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		err = nil
	}

	if err != nil {
		return nil, fmt.Errorf("running %s: %w", name, err)
	}

	r.logger.Debug("command finished",
		slog.String("command", name+" "+strings.Join(args, " ")),
		slog.Int("exitCode", res.ExitCode),
		slog.Int("stdoutBytes", len(res.Stdout)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return res, nil
}

// Text decodes captured output for display, replacing invalid UTF-8 and
// trimming surrounding whitespace.
func Text(b []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(b), "�"))
}
