package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/prefexport/internal/config"
	"github.com/hupe1980/prefexport/internal/defaults"
	"github.com/hupe1980/prefexport/internal/logging"
	"github.com/hupe1980/prefexport/internal/pipeline"
	"github.com/hupe1980/prefexport/internal/watch"
)

type watchOptions struct {
	path     string
	debounce time.Duration
}

func newWatchCommand(ro *rootOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-export whenever the domain's preferences change",
		Long: `Watch monitors the domain's preferences file
(~/Library/Preferences/<domain>.plist by default) and re-runs the export
each time it changes. Bursts of changes are debounced into a single run.

Each run prints a status line and a summary of the settings that were
added, removed, or changed since the previous run. A failed run is
reported and watching continues. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, ro, opts)
		},
	}

	registerOutputFlags(cmd)

	f := cmd.Flags()
	f.StringVar(&opts.path, "path", "", "preferences file to watch (default: ~/Library/Preferences/<domain>.plist)")
	f.DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "debounce interval for file changes")

	return cmd
}

func runWatch(cmd *cobra.Command, ro *rootOptions, opts *watchOptions) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)

	path := opts.path
	if path == "" {
		p, err := defaults.PreferencesPath(cfg.Domain)
		if err != nil {
			return &ExitError{Code: 1, Err: err}
		}

		path = p
	}

	pipeOpts := exportOptions(ctx, cfg, ro)

	runFn := func(fnCtx context.Context) (*watch.RunResult, error) {
		res, err := pipeline.Run(fnCtx, pipeOpts)
		if err != nil {
			return nil, err
		}

		return &watch.RunResult{
			OutputPath: res.Path,
			Keys:       res.Keys,
			Bytes:      res.Bytes,
			Root:       res.Root,
		}, nil
	}

	watchOpts := watch.DefaultOptions()
	watchOpts.Path = path
	watchOpts.Debounce = opts.debounce
	watchOpts.Logger = logging.FromContext(ctx)
	watchOpts.Out = cmd.ErrOrStderr()

	if err := watch.Run(ctx, watchOpts, runFn); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	return nil
}
