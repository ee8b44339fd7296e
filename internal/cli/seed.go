package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/garyjia/medallion-bpm/internal/container"
	"github.com/garyjia/medallion-bpm/internal/infrastructure/seed"
)

func newSeedCommand(app *App) *cobra.Command {
	var template string

	cmd := &cobra.Command{
		Use:   "seed [workbook.xlsx]",
		Short: "Load roles, users and step chains from a workbook",
		Long: `Load BPM configuration from an Excel workbook.

Sheets: Roles, Users, CaseTypes, CaseStepConfig, CaseFirstStepConfig, SLA.
Rows are upserted, so a workbook can be applied repeatedly. The whole
workbook is applied in one transaction.

Without an argument the workbook configured as seed.workbook_path is used.

Examples:
  bpm seed configs/bpm.xlsx
  bpm seed --template bpm-template.xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if template != "" {
				if err := seed.WriteTemplate(template); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s wrote template %s\n", color.New(color.FgGreen).Sprint("✓"), template)
				return nil
			}

			cfg, _, err := app.load()
			if err != nil {
				return err
			}
			path := cfg.Seed.WorkbookPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no workbook given and seed.workbook_path is not set")
			}

			return app.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				sum, err := c.Seeder().LoadFile(ctx, path)
				if err != nil {
					fmt.Fprintf(out, "%s %s\n", color.New(color.FgRed).Sprint("✗"), path)
					return err
				}
				fmt.Fprintf(out, "%s seeded %s\n", color.New(color.FgGreen).Sprint("✓"), path)
				fmt.Fprintf(out, "  roles: %d  users: %d  case types: %d\n", sum.Roles, sum.Users, sum.CaseTypes)
				fmt.Fprintf(out, "  steps: %d  first steps: %d  slas: %d\n", sum.Steps, sum.FirstSteps, sum.SLAs)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&template, "template", "", "write an empty workbook with every sheet's header row to this path")
	return cmd
}
