// Package lint validates written property lists with plutil(1).
package lint

import (
	"context"
	"strings"

	"github.com/hupe1980/prefexport/internal/command"
)

// DefaultBinary is the lint tool looked up on PATH.
const DefaultBinary = "plutil"

// LintError reports a file the lint tool rejected, or a lint tool that could
// not be started.
type LintError struct {
	Path   string
	Stdout string
	Stderr string
}

// Error renders the captured output on a single line.
func (e *LintError) Error() string {
	parts := []string{"plutil -lint failed"}

	for _, s := range []string{e.Stdout, e.Stderr} {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, ": ")
}

// Linter runs "<binary> -lint <path>".
type Linter struct {
	runner command.Runner
	binary string
}

// Option configures a Linter.
type Option func(*Linter)

// WithBinary overrides the lint tool (default "plutil").
func WithBinary(path string) Option {
	return func(l *Linter) {
		if path != "" {
			l.binary = path
		}
	}
}

// NewLinter returns a Linter that runs the lint tool through runner.
func NewLinter(runner command.Runner, opts ...Option) *Linter {
	l := &Linter{
		runner: runner,
		binary: DefaultBinary,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Lint returns nil when the tool exits zero for path.
func (l *Linter) Lint(ctx context.Context, path string) error {
	res, err := l.runner.Run(ctx, l.binary, "-lint", path)
	if err != nil {
		return &LintError{Path: path, Stderr: err.Error()}
	}

	if res.ExitCode != 0 {
		return &LintError{
			Path:   path,
			Stdout: command.Text(res.Stdout),
			Stderr: command.Text(res.Stderr),
		}
	}

	return nil
}
