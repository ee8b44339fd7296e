// Package cli wires the bpm command tree
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/config"
	"github.com/garyjia/medallion-bpm/internal/container"
	"github.com/garyjia/medallion-bpm/pkg/utils"
)

// DefaultConfigPath is read when --config is not given. A missing default
// file is not an error; defaults and BPM_ env vars apply.
const DefaultConfigPath = "configs/config.yaml"

// App carries state shared by the subcommands
type App struct {
	ConfigPath string

	// explicitConfig is set when --config was passed on the command line
	explicitConfig bool

	cfg    *config.Config
	logger *zap.Logger
}

// load reads configuration and builds the logger once per process
func (a *App) load() (*config.Config, *zap.Logger, error) {
	if a.cfg != nil {
		return a.cfg, a.logger, nil
	}

	path := a.ConfigPath
	if !a.explicitConfig {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "bpm",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg, a.logger = cfg, logger
	return cfg, logger, nil
}

// withContainer starts a container, runs fn and closes it again
func (a *App) withContainer(ctx context.Context, fn func(ctx context.Context, c *container.Container) error) error {
	cfg, logger, err := a.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}

	runErr := fn(ctx, c)
	if err := c.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
