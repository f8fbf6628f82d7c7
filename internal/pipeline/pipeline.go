// Package pipeline sequences one export run: export the domain, decode it,
// check the root shape, write the canonical file and lint it.
//
// The run is strictly linear. The first failing stage ends the run and its
// error is returned wrapped in a *StageError naming the stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hupe1980/prefexport/internal/output"
	"github.com/hupe1980/prefexport/internal/plistio"
	"github.com/hupe1980/prefexport/internal/tree"
)

// Stage is a state of the export state machine.
type Stage int

// Stages in execution order.
const (
	StageExporting Stage = iota
	StageDecoding
	StageValidatingRoot
	StageWriting
	StageLinting
	StageDone
)

var stageNames = [...]string{
	StageExporting:      "exporting",
	StageDecoding:       "decoding",
	StageValidatingRoot: "validating-root",
	StageWriting:        "writing",
	StageLinting:        "linting",
	StageDone:           "done",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}

	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError records the stage a run failed in. Its message is the message
// of the underlying error so the CLI prints the same line regardless of stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Exporter dumps a preference domain as raw plist bytes.
type Exporter interface {
	Export(ctx context.Context, domain string) ([]byte, error)
}

// Linter validates a written plist file.
type Linter interface {
	Lint(ctx context.Context, path string) error
}

// Options configures a run.
type Options struct {
	// Domain is the preference domain to export.
	Domain string

	// Out is the output file path. Relative paths resolve against the
	// working directory.
	Out string

	// Lint runs Linter after writing. When false Linter is never called.
	Lint bool

	Exporter Exporter
	Linter   Linter

	// Perm overrides the output file mode (default 0644).
	Perm os.FileMode

	// Logger receives stage progress at debug level. Defaults to slog.Default().
	Logger *slog.Logger
}

// Snapshot is a decoded and root-checked domain export.
type Snapshot struct {
	Domain string
	Root   tree.Value
	Format string
}

// Result describes a successful run.
type Result struct {
	// Path is the absolute path of the written file.
	Path string

	Bytes  int
	Keys   int
	Format string
	Linted bool

	// Root is the tree that was written.
	Root tree.Value
}

func (o *Options) validate(needWrite bool) error {
	if o.Exporter == nil {
		return errors.New("pipeline: exporter is required")
	}

	if o.Domain == "" {
		return errors.New("pipeline: domain is required")
	}

	if needWrite {
		if o.Out == "" {
			return errors.New("pipeline: output path is required")
		}

		if o.Lint && o.Linter == nil {
			return errors.New("pipeline: linter is required when linting is enabled")
		}
	}

	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return nil
}

// Load runs the Exporting, Decoding and ValidatingRoot stages.
func Load(ctx context.Context, opts Options) (*Snapshot, error) {
	if err := opts.validate(false); err != nil {
		return nil, err
	}

	return load(ctx, &opts)
}

func load(ctx context.Context, opts *Options) (*Snapshot, error) {
	logger := opts.Logger.With(slog.String("domain", opts.Domain))

	logger.Debug("stage", slog.String("stage", StageExporting.String()))

	raw, err := opts.Exporter.Export(ctx, opts.Domain)
	if err != nil {
		return nil, &StageError{Stage: StageExporting, Err: err}
	}

	logger.Debug("stage", slog.String("stage", StageDecoding.String()), slog.Int("bytes", len(raw)))

	root, format, err := plistio.Decode(raw)
	if err != nil {
		return nil, &StageError{Stage: StageDecoding, Err: err}
	}

	logger.Debug("stage", slog.String("stage", StageValidatingRoot.String()), slog.String("format", format))

	if err := tree.EnsureDictRoot(root); err != nil {
		return nil, &StageError{Stage: StageValidatingRoot, Err: err}
	}

	return &Snapshot{Domain: opts.Domain, Root: root, Format: format}, nil
}

// Run executes all stages and returns the written file's details.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(true); err != nil {
		return nil, err
	}

	snap, err := load(ctx, &opts)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger.With(slog.String("domain", opts.Domain))
	logger.Debug("stage", slog.String("stage", StageWriting.String()), slog.String("path", opts.Out))

	writerOpts := []output.FileWriterOption{output.WithLogger(opts.Logger)}
	if opts.Perm != 0 {
		writerOpts = append(writerOpts, output.WithPermissions(opts.Perm))
	}

	n, err := output.WriteCanonical(snap.Root, opts.Out, writerOpts...)
	if err != nil {
		return nil, &StageError{Stage: StageWriting, Err: err}
	}

	if opts.Lint {
		logger.Debug("stage", slog.String("stage", StageLinting.String()))

		if err := opts.Linter.Lint(ctx, opts.Out); err != nil {
			return nil, &StageError{Stage: StageLinting, Err: err}
		}
	} else {
		logger.Debug("lint skipped")
	}

	abs := resolvePath(opts.Out)

	logger.Debug("stage", slog.String("stage", StageDone.String()), slog.Int("keys", snap.Root.Len()))

	return &Result{
		Path:   abs,
		Bytes:  n,
		Keys:   snap.Root.Len(),
		Format: snap.Format,
		Linted: opts.Lint,
		Root:   snap.Root,
	}, nil
}

// resolvePath returns the absolute path of the written file with symlinks
// resolved, falling back to the lexical absolute path.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}

	return abs
}

// Render runs Load and serializes the tree with fn without writing a file.
func Render(ctx context.Context, opts Options, fn output.SerializeFunc) ([]byte, error) {
	snap, err := Load(ctx, opts)
	if err != nil {
		return nil, err
	}

	data, err := fn(snap.Root)
	if err != nil {
		return nil, fmt.Errorf("serializing %s: %w", opts.Domain, err)
	}

	return data, nil
}

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}

	return 0, false
}
