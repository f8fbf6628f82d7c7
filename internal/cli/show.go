package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/prefexport/internal/config"
	"github.com/hupe1980/prefexport/internal/output"
	"github.com/hupe1980/prefexport/internal/pipeline"
)

func newShowCommand(ro *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the sorted preference domain without writing a file",
		Long: `Show exports the preference domain and prints it to stdout in the
requested format. The xml format is byte-identical to the file the root
command writes.

Formats:
  xml   canonical XML property list (default)
  yaml  YAML with sorted keys; dates and data are tagged !!timestamp and !!binary
  json  JSON with sorted keys; dates and data become strings`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fn, err := output.DefaultRegistry().Serializer(format)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			ctx := cmd.Context()
			cfg := config.FromContext(ctx)

			data, err := pipeline.Render(ctx, exportOptions(ctx, cfg, ro), fn)
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}

			return output.NewStdoutWriter(cmd.OutOrStdout()).Write(data)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "xml", "output format: xml, yaml, json")

	return cmd
}
