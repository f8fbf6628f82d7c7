// Package cli implements the cobra command tree for prefexport.
package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/prefexport/internal/command"
	"github.com/hupe1980/prefexport/internal/config"
	"github.com/hupe1980/prefexport/internal/logging"
	"github.com/hupe1980/prefexport/internal/pipeline"
)

// ExitError wraps an error with a specific process exit code. A nil Err
// exits with Code without printing anything.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Option customizes the command tree.
type Option func(*rootOptions)

type rootOptions struct {
	runner command.Runner
}

// WithRunner replaces the process runner used to invoke the export and lint
// tools.
func WithRunner(r command.Runner) Option {
	return func(o *rootOptions) { o.runner = r }
}

// Execute builds the command tree, runs it, and returns the exit code.
func Execute() int {
	return execute(NewRootCommand())
}

// execute runs cmd and reports a failure as a single "error: <msg>" line.
func execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	code := 1

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code

		if exitErr.Err == nil {
			return code
		}
	}

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err)

	return code
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached. Running it without a subcommand exports the domain.
func NewRootCommand(opts ...Option) *cobra.Command {
	ro := &rootOptions{}
	for _, o := range opts {
		o(ro)
	}

	var cfgFile string

	cmd := &cobra.Command{
		Use:   "prefexport",
		Short: "Export a macOS preference domain to a sorted XML plist",
		Long: `prefexport exports a macOS application's preference domain to a
deterministic XML property list.

It runs "defaults export <domain> -", decodes the result, writes it back
with every dictionary's keys in sorted order and checks the written file
with "plutil -lint". The output is byte-stable across runs, which makes it
suitable for configuration backups kept under version control.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			logger := logging.SetupWithWriter(cfg, cmd.ErrOrStderr())

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
				slog.String("domain", cfg.Domain),
				slog.String("configFile", cfg.ConfigFile),
			)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, ro)
		},
	}

	// Global persistent flags.
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .prefexport.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")
	registerToolFlags(cmd)

	registerOutputFlags(cmd)

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Err: err}
	})

	cmd.AddCommand(
		newShowCommand(ro),
		newDiffCommand(ro),
		newWatchCommand(ro),
		newVersionCommand(),
		newCompletionCommand(),
	)

	return cmd
}

func runExport(cmd *cobra.Command, ro *rootOptions) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)

	res, err := pipeline.Run(ctx, exportOptions(ctx, cfg, ro))
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	logging.FromContext(ctx).Debug("export complete",
		slog.String("path", res.Path),
		slog.Int("keys", res.Keys),
		slog.Int("bytes", res.Bytes),
		slog.Bool("linted", res.Linted),
	)

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote: %s\n", res.Path)

	return err
}
