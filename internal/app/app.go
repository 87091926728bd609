// Package app wires configuration, logging, and the extraction pipeline into
// a runnable application.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hu-forest/phenoflux/internal/log"
	"github.com/hu-forest/phenoflux/internal/pipeline"
	"github.com/hu-forest/phenoflux/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.Provider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.Provider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run executes one extraction run and blocks until it finishes or a shutdown
// signal cancels it.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return err
	}

	// Cancel the run on SIGINT/SIGTERM so in-flight fits stop cleanly.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			log.Info("shutdown signal received, canceling run...")
			cancel()
		case <-ctx.Done():
		}
	}()

	p := pipeline.New(cfg, a.logger)
	res, err := p.Run(ctx)
	if err != nil {
		return err
	}
	return p.WriteOutputs(res)
}
