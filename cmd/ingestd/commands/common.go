// Package commands holds the actions behind the ingestd subcommands.
package commands

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/app"
	"github.com/JakeFAU/collection-ingest/internal/config"
	"github.com/JakeFAU/collection-ingest/internal/logging"
)

type session struct {
	app    *app.App
	cfg    config.Config
	logger *zap.Logger
}

// bootstrap loads configuration, installs the global logger and builds the App.
func bootstrap(ctx context.Context, cfgPath string, opts ...app.Option) (*session, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	a, err := app.New(ctx, cfg, logger, opts...)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("init app: %w", err)
	}
	return &session{app: a, cfg: cfg, logger: logger}, nil
}

// close shuts the App down and flushes the logger.
func (r *session) close() {
	if err := r.app.Close(context.Background()); err != nil {
		r.logger.Warn("shutdown incomplete", zap.Error(err))
	}
	if syncErr := r.logger.Sync(); syncErr != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
	}
}
