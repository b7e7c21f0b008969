package main

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/i474232898/weather-widget/internal/config"
	"github.com/i474232898/weather-widget/internal/controller"
	"github.com/i474232898/weather-widget/internal/observability"
	"github.com/i474232898/weather-widget/internal/weather"
	"github.com/i474232898/weather-widget/internal/weather/providers"
)

// services are the provider implementations shared by every controller.
type services struct {
	cfg        *config.AppConfig
	geocoder   weather.Geocoder
	forecaster weather.Forecaster
	ipLocator  *providers.IPLocator
	logger     *zap.Logger
	metrics    *observability.Metrics
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func newServices(cfg *config.AppConfig, logger *zap.Logger, metrics *observability.Metrics) *services {
	// Shared HTTP client for outbound provider calls.
	client := &http.Client{Timeout: cfg.HTTPTimeout}

	s := &services{
		cfg:        cfg,
		forecaster: providers.NewOpenMeteoForecaster(client, cfg.ForecastURL, cfg.ForecastDays, metrics),
		ipLocator:  providers.NewIPLocator(client, cfg.LocatorURL, metrics),
		logger:     logger,
		metrics:    metrics,
	}

	switch cfg.GeocoderProvider {
	case config.GeocoderGoogle:
		s.geocoder = providers.NewGoogleGeocoder(cfg.GoogleAPIKey, metrics)
	default:
		s.geocoder = providers.NewOpenMeteoGeocoder(client, cfg.GeocodingURL, cfg.GeocodingLanguage, cfg.GeocodingCount, metrics)
	}

	logger.Info("providers configured",
		zap.String("geocoder", cfg.GeocoderProvider),
		zap.String("locator", cfg.Locator),
	)
	return s
}

// locator returns the device locator for a client. An empty clientIP
// geolocates this process's own public address.
func (s *services) locator(clientIP string) weather.Locator {
	switch s.cfg.Locator {
	case config.LocatorStatic:
		return providers.StaticLocator{Position: weather.Position{
			Latitude:  s.cfg.DeviceLatitude,
			Longitude: s.cfg.DeviceLongitude,
		}}
	case config.LocatorDisabled:
		return providers.DisabledLocator{}
	default:
		return s.ipLocator.ForIP(clientIP)
	}
}

// newController builds an unstarted controller for one widget instance.
func (s *services) newController(clientIP string, unit weather.Unit) *controller.Controller {
	opts := []controller.Option{
		controller.WithLogger(s.logger.Named("controller")),
		controller.WithMetrics(s.metrics),
		controller.WithDebounce(s.cfg.DebounceWindow),
		controller.WithMinQueryLength(s.cfg.MinQueryLength),
		controller.WithLocateTimeout(s.cfg.LocateTimeout),
		controller.WithUnit(unit),
	}
	if place, ok := s.cfg.Bootstrap(); ok {
		opts = append(opts, controller.WithBootstrapPlace(place))
	}
	return controller.New(s.geocoder, s.forecaster, s.locator(clientIP), opts...)
}
