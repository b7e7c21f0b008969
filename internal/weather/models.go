package weather

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionFog     Condition = "fog"
	ConditionDrizzle Condition = "drizzle"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
)

// ConditionFromWMO maps a WMO weather interpretation code to a Condition.
func ConditionFromWMO(code int) Condition {
	switch {
	case code == 0:
		return ConditionClear
	case code >= 1 && code <= 3:
		return ConditionCloudy
	case code == 45 || code == 48:
		return ConditionFog
	case code >= 51 && code <= 57:
		return ConditionDrizzle
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return ConditionSnow
	case code >= 95 && code <= 99:
		return ConditionStorm
	default:
		return ConditionUnknown
	}
}

// Unit is the temperature unit used for display. Data is always stored in Celsius.
type Unit string

const (
	Celsius    Unit = "c"
	Fahrenheit Unit = "f"
)

// ParseUnit accepts "c", "f" and their long forms.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "celsius", "metric":
		return Celsius, nil
	case "f", "fahrenheit", "imperial":
		return Fahrenheit, nil
	}
	return "", fmt.Errorf("unknown unit %q", s)
}

// Place is a resolved location. Values are treated as immutable.
type Place struct {
	ID        int64   `json:"id,omitempty"`
	Name      string  `json:"name"`
	Admin1    string  `json:"admin1,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	TimeZone  string  `json:"timezone,omitempty"`
}

// CurrentLocationName is the display name given to places synthesized from a device fix.
const CurrentLocationName = "Current location"

// Position is a device location fix.
type Position struct {
	Latitude  float64
	Longitude float64
	// TimeZone is the IANA zone reported with the fix, if any.
	TimeZone string
}

// PlaceFromPosition synthesizes a Place for a device fix. fallbackZone is used
// when the fix carries no time zone.
func PlaceFromPosition(pos Position, fallbackZone string) Place {
	tz := pos.TimeZone
	if tz == "" {
		tz = fallbackZone
	}
	return Place{
		Name:      CurrentLocationName,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		TimeZone:  tz,
	}
}

// Current is the current-conditions record of a Snapshot.
// Missing numeric values are NaN.
type Current struct {
	Time                time.Time `json:"time"`
	TemperatureC        float64   `json:"temperatureC"`
	ApparentTemperature float64   `json:"apparentTemperatureC"`
	HumidityPct         float64   `json:"humidityPercent"`
	WindSpeedMS         float64   `json:"windSpeedMs"`
	PrecipMm            float64   `json:"precipMm"`
	WeatherCode         int       `json:"weatherCode"`
}

// Day is one entry of the daily forecast.
type Day struct {
	Date        time.Time `json:"date"`
	MinC        float64   `json:"minC"`
	MaxC        float64   `json:"maxC"`
	WeatherCode int       `json:"weatherCode"`
}

// Hour is one entry of the hourly forecast.
type Hour struct {
	Time         time.Time `json:"time"`
	TemperatureC float64   `json:"temperatureC"`
	WeatherCode  int       `json:"weatherCode"`
}

// Snapshot is the result of a forecast fetch for one place. A newer fetch
// replaces it wholesale.
type Snapshot struct {
	Current   Current       `json:"current"`
	Daily     []Day         `json:"daily"`
	Hourly    []Hour        `json:"hourly,omitempty"`
	TimeZone  string        `json:"timezone,omitempty"`
	UTCOffset time.Duration `json:"utcOffset"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// Condition returns the normalized current condition.
func (s Snapshot) Condition() Condition {
	return ConditionFromWMO(s.Current.WeatherCode)
}

// Missing reports whether v is a missing reading.
func Missing(v float64) bool {
	return math.IsNaN(v)
}
