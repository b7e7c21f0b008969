package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-widget/internal/api/http"
	"github.com/i474232898/weather-widget/internal/observability"
	"github.com/i474232898/weather-widget/internal/scheduler"
	"github.com/i474232898/weather-widget/internal/store"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Port = servePort
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	svc := newServices(cfg, logger, metrics)

	prefs, err := store.OpenPrefs(ctx, cfg.PrefsDB)
	if err != nil {
		return err
	}
	defer prefs.Close()

	sessions := store.NewSessionStore(cfg.SessionTTL, metrics, logger.Named("sessions"))
	defer sessions.Close()

	// Scheduler that refreshes ready sessions and evicts idle ones.
	sched := scheduler.New(sessions, cfg.RefreshInterval, scheduler.DefaultSweepInterval, metrics, logger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	handler := httpapi.NewHandler(ctx, sessions, prefs, svc.newController, logger.Named("http"))
	handler.DefaultUnit = cfg.DefaultUnit

	app := httpapi.NewApp("weather-widget")
	httpapi.RegisterRoutes(app, handler)

	go func() {
		logger.Info("listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	return nil
}
