package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/gwrecharge/internal/controllers/restserver"
	"github.com/chrissnell/gwrecharge/internal/log"
	"github.com/chrissnell/gwrecharge/internal/managers"
	"github.com/chrissnell/gwrecharge/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         log.OrNop(logger),
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	// Open the run archive
	store, err := managers.NewRunStore(ctx, cfg.Storage, a.logger.With("component", "storage"))
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	runs := managers.NewRunManager(ctx, &wg, store, cfg.Server.MaxConcurrentRuns, a.logger.With("component", "runs"))

	rest, err := restserver.NewController(ctx, &wg, cfg, runs, store, a.logger.With("component", "rest"))
	if err != nil {
		return err
	}
	if err := rest.StartController(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for the server and the running evaluations to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
