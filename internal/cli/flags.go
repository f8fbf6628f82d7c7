package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/prefexport/internal/config"
)

// registerToolFlags adds the domain and external tool flags shared by every
// command that talks to the preferences system.
func registerToolFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.String("domain", config.DefaultDomain, "preference domain to export")
	pf.String("defaults-path", config.DefaultDefaultsPath, "path to the defaults binary")
	pf.String("plutil-path", config.DefaultPlutilPath, "path to the plutil binary")
}

// registerOutputFlags adds the output file flags to a command that writes
// the canonical plist.
func registerOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("out", config.DefaultOut, "output file path")
	f.Bool("no-lint", false, "skip plutil -lint after writing")
}
