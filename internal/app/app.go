// Package app wires configuration, database, metrics and the process
// engine into a runnable application.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/glacierwatch/glacierwatch/internal/cache"
	"github.com/glacierwatch/glacierwatch/internal/catalog"
	"github.com/glacierwatch/glacierwatch/internal/database"
	"github.com/glacierwatch/glacierwatch/internal/engine"
	"github.com/glacierwatch/glacierwatch/internal/log"
	"github.com/glacierwatch/glacierwatch/internal/observability"
	"github.com/glacierwatch/glacierwatch/internal/opsserver"
	"github.com/glacierwatch/glacierwatch/internal/resultstore"
	"github.com/glacierwatch/glacierwatch/pkg/config"
)

// App represents the process worker application
type App struct {
	cfg    *config.Config
	opts   engine.Options
	cron   bool
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.Config, opts engine.Options, cron bool, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		opts:   opts,
		cron:   cron,
		logger: logger,
	}
}

// Run starts the application and blocks until the run completes or a
// shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client, err := database.NewClient(a.cfg.Database.ConnectionString, a.logger)
	if err != nil {
		return err
	}
	defer client.Close()

	metrics := observability.NewMetrics()
	if a.cfg.Ops.ListenAddr != "" {
		opsserver.New(a.cfg.Ops.ListenAddr).Start(ctx)
	}

	eng := engine.New(
		catalog.New(client.DB),
		cache.New(a.cfg.Cache.Root, a.cfg.Cache.DataRoot),
		resultstore.New(client.DB),
		a.cfg,
		metrics,
		a.opts,
	)

	// Shutdown signals cancel the context; a worker interrupted
	// mid-scene leaves committed pairs intact and the rest re-runs
	// from persisted state on the next invocation.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			log.Info("shutdown signal received, finishing current work...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if a.cron {
		err = eng.RunCron(ctx)
		if err == context.Canceled {
			err = nil
		}
		return err
	}
	return eng.Run(ctx)
}
