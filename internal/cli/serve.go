package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/medallion-bpm/internal/container"
	httpapi "github.com/garyjia/medallion-bpm/internal/interfaces/http"
)

func newServeCommand(app *App) *cobra.Command {
	var seedOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the BPM HTTP API and run the SLA escalation worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return app.withContainer(ctx, func(ctx context.Context, c *container.Container) error {
				return serve(ctx, c, seedOnStart)
			})
		},
	}
	cmd.Flags().BoolVar(&seedOnStart, "seed", false, "apply seed.workbook_path before serving")
	return cmd
}

// serve runs the HTTP server and the workers until ctx is cancelled or
// either fails
func serve(ctx context.Context, c *container.Container, seedOnStart bool) error {
	cfg := c.Config()
	logger := c.Logger()

	if seedOnStart {
		path := cfg.Seed.WorkbookPath
		if path == "" {
			return fmt.Errorf("--seed needs seed.workbook_path")
		}
		sum, err := c.Seeder().LoadFile(ctx, path)
		if err != nil {
			return fmt.Errorf("seed %s: %w", path, err)
		}
		logger.Info("Workbook seeded", zap.String("path", path), zap.Int("steps", sum.Steps))
	}

	services := c.Services()
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Mode:            cfg.Server.Mode,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, httpapi.Deps{
		Engine: c.WorkflowEngine(),
		Steps:  services.Step,
		Cases:  services.CaseList,
		Audit:  services.Audit,
		Users:  c.Repositories().Users,
		Health: func() interface{} { return c.Health() },
	}, container.NewLoggerAdapter(logger.Named("http")))

	g, gctx := errgroup.WithContext(ctx)
	if err := c.StartWorkers(gctx); err != nil {
		return err
	}
	g.Go(func() error {
		return server.Start(gctx)
	})

	err := g.Wait()
	logger.Info("Shutting down", zap.Error(err))
	return err
}
