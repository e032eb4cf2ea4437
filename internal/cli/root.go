// Package cli implements the logvision command line: extraction to JSON or
// YAML, terminal previews, the interactive viewer and pattern management.
package cli

import (
	"github.com/logvision/backend/internal/logging"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// fs is where input, pattern and output files are read and written.
var fs afero.Fs = afero.NewOsFs()

var (
	logLevel   string
	prettyLogs bool
)

// NewRootCommand builds the logvision command tree.
func NewRootCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logvision",
		Short: "Extract time series from logs with regex patterns",
		Long: `Extract numeric and categorical signals from timestamped log lines.

Each pattern's first capture group becomes one signal. Numbers are kept as
numbers, other values are mapped to stable integer indices.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.Init(cmd.ErrOrStderr(), logging.ParseLevel(logLevel), prettyLogs)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&prettyLogs, "pretty-logs", true, "human readable log output")

	cmd.AddCommand(
		newExtractCommand(),
		newPreviewCommand(),
		newViewCommand(),
		newPatternsCommand(),
	)
	return cmd
}
