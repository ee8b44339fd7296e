package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/garyjia/medallion-bpm/internal/application/workflow"
	"github.com/garyjia/medallion-bpm/internal/container"
)

func newChainsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "Validate the step chain of every case type",
		Long: `Walk the configured step chain of every case type and report cycles,
dangling next-step pointers, steps the chain never reaches and case
types without a first-step row.

Exits non-zero when any chain is broken.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				repos := c.Repositories()
				reports, err := workflow.NewChainLoader(repos.Steps).InspectAll(ctx, repos.CaseTypes)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(reports) == 0 {
					fmt.Fprintln(out, color.New(color.FgYellow).Sprint("no case types configured"))
					return nil
				}

				broken := 0
				for _, r := range reports {
					if !r.Healthy() {
						broken++
					}
					printChainReport(out, r)
				}
				if broken > 0 {
					return fmt.Errorf("%d of %d case types have broken chains", broken, len(reports))
				}
				return nil
			})
		},
	}
}

func printChainReport(out io.Writer, r *workflow.CaseTypeReport) {
	icon := color.New(color.FgGreen).Sprint("✓")
	if !r.Healthy() {
		icon = color.New(color.FgRed).Sprint("✗")
	}
	fmt.Fprintf(out, "%s %s (%s)\n", icon, r.CaseType.Prefix, r.CaseType.Name)

	if r.Err != "" {
		fmt.Fprintf(out, "    error:       %s\n", r.Err)
		return
	}
	rep := r.Report
	if rep.Parallel {
		fmt.Fprintln(out, "    parallel:    no entry step")
	} else if len(rep.Path) > 0 {
		fmt.Fprintf(out, "    path:        %s\n", strings.Join(rep.Path, " -> "))
	}
	if rep.Cycle != "" {
		fmt.Fprintf(out, "    cycle:       %s\n", rep.Cycle)
	}
	for _, d := range rep.Dangling {
		fmt.Fprintf(out, "    dangling:    %s\n", d)
	}
	if len(rep.Unreachable) > 0 {
		fmt.Fprintf(out, "    unreachable: %s\n", color.New(color.FgYellow).Sprint(strings.Join(rep.Unreachable, ", ")))
	}
}
