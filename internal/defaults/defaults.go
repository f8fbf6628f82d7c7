// Package defaults exports macOS preference domains through the defaults(1)
// tool.
package defaults

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/prefexport/internal/command"
)

// DefaultBinary is the export tool looked up on PATH.
const DefaultBinary = "defaults"

// ExportError reports a failed export. ExitCode is -1 when the tool could not
// be started.
type ExportError struct {
	Domain     string
	ExitCode   int
	Diagnostic string
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("defaults export failed for %s: %s", e.Domain, e.Diagnostic)
}

// EmptyExportError reports an export that succeeded but produced no bytes.
// Even a domain without preferences exports a minimal plist envelope, so
// empty output indicates a silent tool failure.
type EmptyExportError struct {
	Domain string
}

func (e *EmptyExportError) Error() string {
	return fmt.Sprintf("defaults export returned empty output for %s", e.Domain)
}

// Exporter dumps preference domains as raw plist bytes.
type Exporter struct {
	runner command.Runner
	binary string
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithBinary overrides the export tool (default "defaults").
func WithBinary(path string) Option {
	return func(e *Exporter) {
		if path != "" {
			e.binary = path
		}
	}
}

// NewExporter returns an Exporter that runs the export tool through runner.
func NewExporter(runner command.Runner, opts ...Option) *Exporter {
	e := &Exporter{
		runner: runner,
		binary: DefaultBinary,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Export runs "<binary> export <domain> -" and returns its standard output.
func (e *Exporter) Export(ctx context.Context, domain string) ([]byte, error) {
	if domain == "" {
		return nil, errors.New("preference domain must not be empty")
	}

	res, err := e.runner.Run(ctx, e.binary, "export", domain, "-")
	if err != nil {
		return nil, &ExportError{Domain: domain, ExitCode: -1, Diagnostic: err.Error()}
	}

	if res.ExitCode != 0 {
		return nil, &ExportError{
			Domain:     domain,
			ExitCode:   res.ExitCode,
			Diagnostic: command.Text(res.Stderr),
		}
	}

	if len(res.Stdout) == 0 {
		return nil, &EmptyExportError{Domain: domain}
	}

	return res.Stdout, nil
}

// PreferencesPath returns the per-user backing file of domain,
// ~/Library/Preferences/<domain>.plist.
func PreferencesPath(domain string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	return filepath.Join(home, "Library", "Preferences", domain+".plist"), nil
}
