package cli

import (
	"context"

	"github.com/hupe1980/prefexport/internal/command"
	"github.com/hupe1980/prefexport/internal/config"
	"github.com/hupe1980/prefexport/internal/defaults"
	"github.com/hupe1980/prefexport/internal/lint"
	"github.com/hupe1980/prefexport/internal/logging"
	"github.com/hupe1980/prefexport/internal/pipeline"
)

// exportOptions builds pipeline options from the loaded configuration.
func exportOptions(ctx context.Context, cfg *config.Config, ro *rootOptions) pipeline.Options {
	logger := logging.FromContext(ctx)

	runner := ro.runner
	if runner == nil {
		runner = command.NewExecRunner(logger)
	}

	return pipeline.Options{
		Domain:   cfg.Domain,
		Out:      cfg.Out,
		Lint:     !cfg.NoLint,
		Exporter: defaults.NewExporter(runner, defaults.WithBinary(cfg.DefaultsPath)),
		Linter:   lint.NewLinter(runner, lint.WithBinary(cfg.PlutilPath)),
		Logger:   logger,
	}
}
