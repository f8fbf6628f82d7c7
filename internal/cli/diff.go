package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/prefexport/internal/config"
	"github.com/hupe1980/prefexport/internal/diff"
	"github.com/hupe1980/prefexport/internal/logging"
	"github.com/hupe1980/prefexport/internal/output"
	"github.com/hupe1980/prefexport/internal/pipeline"
	"github.com/hupe1980/prefexport/internal/plistio"
)

// exitCodeDifferent is returned by diff when the saved file is out of date.
const exitCodeDifferent = 3

type diffOptions struct {
	raw     bool
	context int
}

func newDiffCommand(ro *rootOptions) *cobra.Command {
	opts := &diffOptions{}

	cmd := &cobra.Command{
		Use:   "diff [file]",
		Short: "Compare the live preference domain against a saved export",
		Long: `Diff exports the preference domain and compares its canonical XML
against a previously written file (default: the configured output path).

The saved file is decoded and re-encoded before comparing so that files
written by other tools only differ where their content does. Use --raw to
compare the file's bytes as they are.

Exit codes:
  0  No differences
  1  Error
  2  Invalid arguments
  3  Differences found`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args, ro, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.raw, "raw", false, "compare the saved file without normalizing it")
	f.IntVarP(&opts.context, "unified", "U", 3, "number of context lines")

	return cmd
}

func runDiff(cmd *cobra.Command, args []string, ro *rootOptions, opts *diffOptions) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)

	path := cfg.Out
	if len(args) == 1 {
		path = args[0]
	}

	if opts.context < 0 {
		return &ExitError{Code: 2, Err: fmt.Errorf("invalid --unified %d: must not be negative", opts.context)}
	}

	saved, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("reading saved export: %w", err)}
	}

	if !opts.raw {
		saved, err = plistio.Canonicalize(saved)
		if err != nil {
			return &ExitError{Code: 1, Err: fmt.Errorf("normalizing %s: %w", path, err)}
		}
	}

	live, err := pipeline.Render(ctx, exportOptions(ctx, cfg, ro), output.SerializeXML)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	diffOpts := diff.DefaultOptions()
	diffOpts.OldLabel = path
	diffOpts.NewLabel = cfg.Domain
	diffOpts.Context = opts.context

	result, err := diff.Compute(saved, live, diffOpts)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	diff.Write(cmd.OutOrStdout(), result, !cfg.NoColor)

	if !result.HasDifferences {
		return nil
	}

	added, removed := result.Stat()
	logging.FromContext(ctx).Debug("saved export is out of date",
		slog.String("path", path),
		slog.Int("added", added),
		slog.Int("removed", removed),
		slog.Int("hunks", len(result.Hunks)),
	)

	return &ExitError{Code: exitCodeDifferent}
}
