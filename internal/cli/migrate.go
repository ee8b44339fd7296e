package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/garyjia/medallion-bpm/internal/container"
)

func newMigrateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			cc := cfg.ToContainerConfig()
			bundle, err := container.ProvideDatabase(&cc.Database, logger)
			if err != nil {
				return err
			}
			defer bundle.DB.Close()

			out := cmd.OutOrStdout()
			if bundle.Applied == 0 {
				fmt.Fprintf(out, "%s database %s is up to date\n", color.New(color.FgGreen).Sprint("✓"), cfg.Database.Path)
				return nil
			}
			fmt.Fprintf(out, "%s applied %d migrations to %s\n",
				color.New(color.FgGreen).Sprint("✓"), bundle.Applied, cfg.Database.Path)
			return nil
		},
	}
}
