// Package prefexport provides a public Go API for exporting macOS preference
// domains as deterministic XML property lists.
//
// This package exposes the prefexport pipeline as a library, allowing
// programmatic use without the CLI.
//
// Basic usage:
//
//	res, err := prefexport.Export(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Wrote:", res.Path)
//
// With options:
//
//	res, err := prefexport.Export(ctx,
//	    prefexport.WithDomain("com.apple.dock"),
//	    prefexport.WithOutput("backups/dock.plist"),
//	    prefexport.WithoutLint(),
//	)
package prefexport

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hupe1980/prefexport/internal/command"
	"github.com/hupe1980/prefexport/internal/config"
	"github.com/hupe1980/prefexport/internal/defaults"
	"github.com/hupe1980/prefexport/internal/lint"
	"github.com/hupe1980/prefexport/internal/logging"
	"github.com/hupe1980/prefexport/internal/output"
	"github.com/hupe1980/prefexport/internal/pipeline"
	"github.com/hupe1980/prefexport/internal/plistio"
	"github.com/hupe1980/prefexport/internal/tree"
)

// Errors reported by Export and Render. Use errors.As to inspect them.
type (
	ExportError             = defaults.ExportError
	EmptyExportError        = defaults.EmptyExportError
	DecodeError             = plistio.DecodeError
	UnexpectedRootTypeError = tree.UnexpectedRootTypeError
	WriteError              = output.WriteError
	LintError               = lint.LintError
)

// Option configures an export.
// Use the With* functions to create Options.
type Option func(*options)

type options struct {
	domain       string
	out          string
	lint         bool
	defaultsPath string
	plutilPath   string
	logger       *slog.Logger
}

// WithDomain sets the preference domain (default com.knollsoft.Rectangle).
func WithDomain(domain string) Option { return func(o *options) { o.domain = domain } }

// WithOutput sets the output file path (default ./Rectangle.plist).
func WithOutput(path string) Option { return func(o *options) { o.out = path } }

// WithoutLint skips plutil -lint after writing.
func WithoutLint() Option { return func(o *options) { o.lint = false } }

// WithDefaultsPath sets the defaults binary.
func WithDefaultsPath(path string) Option { return func(o *options) { o.defaultsPath = path } }

// WithPlutilPath sets the plutil binary.
func WithPlutilPath(path string) Option { return func(o *options) { o.plutilPath = path } }

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option { return func(o *options) { o.logger = logger } }

// Result describes a written export.
type Result struct {
	// Path is the absolute path of the written file.
	Path string

	// Bytes is the size of the written file.
	Bytes int

	// Keys is the number of top-level settings.
	Keys int

	// Linted reports whether plutil -lint ran and passed.
	Linted bool
}

func buildOptions(opts []Option) (pipeline.Options, error) {
	o := &options{
		domain:       config.DefaultDomain,
		out:          config.DefaultOut,
		lint:         true,
		defaultsPath: config.DefaultDefaultsPath,
		plutilPath:   config.DefaultPlutilPath,
		logger:       logging.Discard(),
	}

	for _, opt := range opts {
		opt(o)
	}

	if err := config.ValidateDomain(o.domain); err != nil {
		return pipeline.Options{}, err
	}

	if o.out == "" {
		return pipeline.Options{}, errors.New("output path must not be empty")
	}

	runner := command.NewExecRunner(o.logger)

	return pipeline.Options{
		Domain:   o.domain,
		Out:      o.out,
		Lint:     o.lint,
		Exporter: defaults.NewExporter(runner, defaults.WithBinary(o.defaultsPath)),
		Linter:   lint.NewLinter(runner, lint.WithBinary(o.plutilPath)),
		Logger:   o.logger,
	}, nil
}

// Export exports the domain and writes it as a sorted XML property list.
// On failure before writing no file is created or modified.
func Export(ctx context.Context, opts ...Option) (*Result, error) {
	pOpts, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Run(ctx, pOpts)
	if err != nil {
		return nil, err
	}

	return &Result{
		Path:   res.Path,
		Bytes:  res.Bytes,
		Keys:   res.Keys,
		Linted: res.Linted,
	}, nil
}

// Render exports the domain and returns it in format ("xml", "yaml" or
// "json") without writing a file.
func Render(ctx context.Context, format string, opts ...Option) ([]byte, error) {
	fn, err := output.DefaultRegistry().Serializer(format)
	if err != nil {
		return nil, err
	}

	pOpts, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return pipeline.Render(ctx, pOpts, fn)
}

// Canonicalize re-encodes an XML or binary property list whose root is a
// dictionary into sorted canonical XML.
func Canonicalize(data []byte) ([]byte, error) {
	return plistio.Canonicalize(data)
}
