package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/weather-widget/internal/observability"
	"github.com/i474232898/weather-widget/internal/store"
	"github.com/i474232898/weather-widget/internal/tui"
)

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The terminal belongs to the widget, so logs go to a file.
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	prefs, err := store.OpenPrefs(ctx, cfg.PrefsDB)
	if err != nil {
		return err
	}
	defer prefs.Close()

	unit, theme := cfg.DefaultUnit, store.ThemeLight
	switch p, err := prefs.Get(ctx, tui.Profile); {
	case err == nil:
		unit, theme = p.Unit, p.Theme
	case !errors.Is(err, store.ErrNotFound):
		logger.Warn("failed to load preferences", zap.Error(err))
	}

	// Metrics are only exported by serve.
	svc := newServices(cfg, logger, nil)
	ctrl := svc.newController("", unit)

	ctx, cancel := context.WithCancel(ctx)
	ctrl.Start(ctx)
	defer ctrl.Wait()
	defer cancel()

	program := tea.NewProgram(tui.New(ctx, ctrl, prefs, theme, logger.Named("tui")),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
