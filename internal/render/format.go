// Package render turns controller states into display values shared by the
// HTTP and terminal presentations. Units are applied here and nowhere else.
package render

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/i474232898/weather-widget/internal/weather"
)

const missing = "-"

// round rounds half up, so -0.5 becomes 0 rather than -1.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}

// CelsiusToFahrenheit converts a Celsius reading.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FormatTemp formats a Celsius reading in unit, e.g. "21°".
func FormatTemp(celsius float64, unit weather.Unit) string {
	if weather.Missing(celsius) {
		return missing
	}
	if unit == weather.Fahrenheit {
		celsius = CelsiusToFahrenheit(celsius)
	}
	return fmt.Sprintf("%d°", round(celsius))
}

func FormatWind(ms float64) string {
	if weather.Missing(ms) {
		return missing
	}
	return fmt.Sprintf("%d m/s", round(ms))
}

func FormatHumidity(pct float64) string {
	if weather.Missing(pct) {
		return missing
	}
	return fmt.Sprintf("%d%%", round(pct))
}

func FormatPrecip(mm float64) string {
	if weather.Missing(mm) {
		return missing
	}
	return fmt.Sprintf("%.1f mm", mm)
}

// UnitSymbol returns "°C" or "°F".
func UnitSymbol(unit weather.Unit) string {
	if unit == weather.Fahrenheit {
		return "°F"
	}
	return "°C"
}

// PlaceTitle is the headline of a place.
func PlaceTitle(p weather.Place) string {
	return p.Name
}

// PlaceMeta joins the optional region and country, e.g. "Seoul · South Korea".
func PlaceMeta(p weather.Place) string {
	parts := make([]string, 0, 2)
	if p.Admin1 != "" {
		parts = append(parts, p.Admin1)
	}
	if p.Country != "" {
		parts = append(parts, p.Country)
	}
	return strings.Join(parts, " · ")
}

// Coordinates formats a place position to two decimals.
func Coordinates(p weather.Place) string {
	return fmt.Sprintf("%.2f, %.2f", p.Latitude, p.Longitude)
}

// NextHours returns up to n hourly entries starting at the one closest to now.
func NextHours(hourly []weather.Hour, now time.Time, n int) []weather.Hour {
	if len(hourly) == 0 || n <= 0 {
		return nil
	}

	start := 0
	best := time.Duration(math.MaxInt64)
	for i, h := range hourly {
		d := h.Time.Sub(now)
		if d < 0 {
			d = -d
		}
		if d < best {
			best = d
			start = i
		}
	}

	end := min(start+n, len(hourly))
	return hourly[start:end]
}
