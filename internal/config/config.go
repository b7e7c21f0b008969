package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-widget/internal/weather"
	"github.com/i474232898/weather-widget/internal/weather/providers"
)

// Geocoder and locator backends.
const (
	GeocoderOpenMeteo = "openmeteo"
	GeocoderGoogle    = "google"

	LocatorIP       = "ip"
	LocatorStatic   = "static"
	LocatorDisabled = "disabled"
)

// Seoul is the place shown on startup when BOOTSTRAP_PLACE is enabled.
var Seoul = weather.Place{
	Name:      "Seoul",
	Admin1:    "Seoul",
	Country:   "South Korea",
	Latitude:  37.5665,
	Longitude: 126.9780,
	TimeZone:  "Asia/Seoul",
}

type AppConfig struct {
	Port        string        `validate:"required,numeric"`
	LogLevel    string        `validate:"oneof=debug info warn error"`
	HTTPTimeout time.Duration `validate:"gt=0"`

	GeocoderProvider string `validate:"oneof=openmeteo google"`
	GoogleAPIKey     string `validate:"required_if=GeocoderProvider google"`
	GeocodingURL     string `validate:"required,url"`
	GeocodingCount   int    `validate:"min=1,max=100"`
	ForecastURL      string `validate:"required,url"`
	ForecastDays     int    `validate:"min=1,max=16"`

	Locator         string        `validate:"oneof=ip static disabled"`
	LocatorURL      string        `validate:"required,url"`
	DeviceLatitude  float64       `validate:"latitude"`
	DeviceLongitude float64       `validate:"longitude"`
	LocateTimeout   time.Duration `validate:"gt=0"`

	DebounceWindow  time.Duration `validate:"gte=0"`
	MinQueryLength  int           `validate:"min=1"`
	SessionTTL      time.Duration `validate:"gt=0"`
	RefreshInterval time.Duration `validate:"gte=0"`
	PrefsDB         string        `validate:"required"`

	GeocodingLanguage string
	DefaultUnit       weather.Unit
	BootstrapPlace    bool
	// LogFile receives the TUI log so the terminal stays clean.
	LogFile string
}

var validate = validator.New()

// Load reads configuration from the environment (and .env, if present) with
// sensible defaults.
func Load() (*AppConfig, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg := &AppConfig{
		Port:              getenvDefault("PORT", "8080"),
		LogLevel:          strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		LogFile:           getenvDefault("LOG_FILE", "weather-widget.log"),
		GeocoderProvider:  strings.ToLower(getenvDefault("GEOCODER_PROVIDER", GeocoderOpenMeteo)),
		GoogleAPIKey:      os.Getenv("GOOGLE_API_KEY"),
		GeocodingURL:      getenvDefault("GEOCODING_URL", providers.DefaultGeocodingURL),
		GeocodingLanguage: getenvDefault("GEOCODING_LANGUAGE", "en"),
		ForecastURL:       getenvDefault("FORECAST_URL", providers.DefaultForecastURL),
		Locator:           strings.ToLower(getenvDefault("LOCATOR", LocatorIP)),
		LocatorURL:        getenvDefault("LOCATOR_URL", providers.DefaultLocatorURL),
		PrefsDB:           getenvDefault("PREFS_DB", "weather-widget.db"),
	}

	var err error
	if cfg.GeocodingCount, err = getenvInt("GEOCODING_COUNT", 8); err != nil {
		return nil, err
	}
	if cfg.ForecastDays, err = getenvInt("FORECAST_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.MinQueryLength, err = getenvInt("MIN_QUERY_LENGTH", 2); err != nil {
		return nil, err
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"LOCATE_TIMEOUT", "10s", &cfg.LocateTimeout},
		{"DEBOUNCE_WINDOW", "300ms", &cfg.DebounceWindow},
		{"SESSION_TTL", "30m", &cfg.SessionTTL},
		{"REFRESH_INTERVAL", "15m", &cfg.RefreshInterval},
	}
	for _, d := range durations {
		if *d.dst, err = getenvDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.DefaultUnit, err = weather.ParseUnit(getenvDefault("DEFAULT_UNIT", "c")); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_UNIT: %w", err)
	}
	if cfg.BootstrapPlace, err = strconv.ParseBool(getenvDefault("BOOTSTRAP_PLACE", "true")); err != nil {
		return nil, fmt.Errorf("invalid BOOTSTRAP_PLACE: %w", err)
	}

	if cfg.Locator == LocatorStatic {
		if cfg.DeviceLatitude, err = getenvFloat("DEVICE_LATITUDE"); err != nil {
			return nil, err
		}
		if cfg.DeviceLongitude, err = getenvFloat("DEVICE_LONGITUDE"); err != nil {
			return nil, err
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Bootstrap returns the startup place, if enabled.
func (c *AppConfig) Bootstrap() (weather.Place, bool) {
	return Seoul, c.BootstrapPlace
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
