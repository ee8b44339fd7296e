package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the bpm command tree
func NewRootCommand() *cobra.Command {
	app := &App{}

	root := &cobra.Command{
		Use:   "bpm",
		Short: "Medallion case workflow engine",
		Long: `bpm runs the case workflow backend for taxi medallion processing.

It serves the BPM HTTP API, applies database migrations, seeds step
chain configuration from an Excel workbook and validates configured
chains.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.explicitConfig = cmd.Flags().Changed("config")
		},
	}
	root.PersistentFlags().StringVarP(&app.ConfigPath, "config", "c", DefaultConfigPath, "path to the YAML config file")

	root.AddCommand(newServeCommand(app))
	root.AddCommand(newMigrateCommand(app))
	root.AddCommand(newSeedCommand(app))
	root.AddCommand(newChainsCommand(app))

	return root
}
