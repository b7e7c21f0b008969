package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-widget/internal/observability"
	"github.com/i474232898/weather-widget/internal/weather"
)

const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"

	// unknownCode stands in for a missing WMO code.
	unknownCode = -1
)

var (
	currentFields = []string{
		"temperature_2m",
		"apparent_temperature",
		"relative_humidity_2m",
		"precipitation",
		"weather_code",
		"wind_speed_10m",
	}
	hourlyFields = []string{"temperature_2m", "weather_code"}
	dailyFields  = []string{"weather_code", "temperature_2m_max", "temperature_2m_min"}
)

// OpenMeteoGeocoder implements weather.Geocoder with the Open-Meteo geocoding API.
type OpenMeteoGeocoder struct {
	baseURL  string
	language string
	count    int
	api      *endpoint
}

func NewOpenMeteoGeocoder(client *http.Client, baseURL, language string, count int, metrics *observability.Metrics) *OpenMeteoGeocoder {
	if baseURL == "" {
		baseURL = DefaultGeocodingURL
	}
	if count <= 0 {
		count = 8
	}
	return &OpenMeteoGeocoder{
		baseURL:  baseURL,
		language: language,
		count:    count,
		api:      newEndpoint("openmeteo-geocoding", client, metrics),
	}
}

func (g *OpenMeteoGeocoder) Geocode(ctx context.Context, query string) ([]weather.Place, error) {
	values := url.Values{}
	values.Set("name", query)
	values.Set("count", strconv.Itoa(g.count))
	if g.language != "" {
		values.Set("language", g.language)
	}
	values.Set("format", "json")

	var payload struct {
		Results []struct {
			ID        int64    `json:"id"`
			Name      string   `json:"name"`
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
			Country   string   `json:"country"`
			Admin1    string   `json:"admin1"`
			Timezone  string   `json:"timezone"`
		} `json:"results"`
		Error  bool   `json:"error"`
		Reason string `json:"reason"`
	}

	if err := g.api.getJSON(ctx, fmt.Sprintf("%s?%s", g.baseURL, values.Encode()), &payload); err != nil {
		return nil, err
	}
	if payload.Error {
		return nil, fmt.Errorf("%w: geocoding: %s", weather.ErrInvalidResponse, payload.Reason)
	}

	places := make([]weather.Place, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.Latitude == nil || r.Longitude == nil || r.Name == "" {
			continue
		}
		places = append(places, weather.Place{
			ID:        r.ID,
			Name:      r.Name,
			Admin1:    r.Admin1,
			Country:   r.Country,
			Latitude:  *r.Latitude,
			Longitude: *r.Longitude,
			TimeZone:  r.Timezone,
		})
	}
	return places, nil
}

// OpenMeteoForecaster implements weather.Forecaster with the Open-Meteo forecast API.
type OpenMeteoForecaster struct {
	baseURL string
	days    int
	api     *endpoint
	now     func() time.Time
}

func NewOpenMeteoForecaster(client *http.Client, baseURL string, days int, metrics *observability.Metrics) *OpenMeteoForecaster {
	if baseURL == "" {
		baseURL = DefaultForecastURL
	}
	if days <= 0 {
		days = 7
	}
	return &OpenMeteoForecaster{
		baseURL: baseURL,
		days:    days,
		api:     newEndpoint("openmeteo-forecast", client, metrics),
		now:     time.Now,
	}
}

type forecastPayload struct {
	Timezone             string `json:"timezone"`
	TimezoneAbbreviation string `json:"timezone_abbreviation"`
	UTCOffsetSeconds     int    `json:"utc_offset_seconds"`

	Current *struct {
		Time                string   `json:"time"`
		Temperature2m       *float64 `json:"temperature_2m"`
		ApparentTemperature *float64 `json:"apparent_temperature"`
		RelativeHumidity2m  *float64 `json:"relative_humidity_2m"`
		Precipitation       *float64 `json:"precipitation"`
		WeatherCode         *int     `json:"weather_code"`
		WindSpeed10m        *float64 `json:"wind_speed_10m"`
	} `json:"current"`

	Hourly struct {
		Time          []string   `json:"time"`
		Temperature2m []*float64 `json:"temperature_2m"`
		WeatherCode   []*int     `json:"weather_code"`
	} `json:"hourly"`

	Daily struct {
		Time             []string   `json:"time"`
		WeatherCode      []*int     `json:"weather_code"`
		Temperature2mMax []*float64 `json:"temperature_2m_max"`
		Temperature2mMin []*float64 `json:"temperature_2m_min"`
	} `json:"daily"`

	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

func (p *OpenMeteoForecaster) Forecast(ctx context.Context, lat, lon float64) (weather.Snapshot, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	values.Set("current", strings.Join(currentFields, ","))
	values.Set("hourly", strings.Join(hourlyFields, ","))
	values.Set("daily", strings.Join(dailyFields, ","))
	values.Set("timezone", "auto")
	values.Set("forecast_days", strconv.Itoa(p.days))
	values.Set("wind_speed_unit", "ms")

	var payload forecastPayload
	if err := p.api.getJSON(ctx, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), &payload); err != nil {
		return weather.Snapshot{}, err
	}

	snapshot, err := payload.toSnapshot()
	if err != nil {
		return weather.Snapshot{}, err
	}
	snapshot.FetchedAt = p.now().UTC()
	return snapshot, nil
}

func (f forecastPayload) toSnapshot() (weather.Snapshot, error) {
	if f.Error {
		return weather.Snapshot{}, fmt.Errorf("%w: forecast: %s", weather.ErrInvalidResponse, f.Reason)
	}
	if f.Current == nil {
		return weather.Snapshot{}, fmt.Errorf("%w: forecast: missing current block", weather.ErrInvalidResponse)
	}

	loc := time.FixedZone(f.TimezoneAbbreviation, f.UTCOffsetSeconds)

	currentTime, err := time.ParseInLocation("2006-01-02T15:04", f.Current.Time, loc)
	if err != nil {
		return weather.Snapshot{}, fmt.Errorf("%w: forecast: current time %q", weather.ErrInvalidResponse, f.Current.Time)
	}

	snapshot := weather.Snapshot{
		Current: weather.Current{
			Time:                currentTime,
			TemperatureC:        value(f.Current.Temperature2m),
			ApparentTemperature: value(f.Current.ApparentTemperature),
			HumidityPct:         value(f.Current.RelativeHumidity2m),
			WindSpeedMS:         value(f.Current.WindSpeed10m),
			PrecipMm:            value(f.Current.Precipitation),
			WeatherCode:         code(f.Current.WeatherCode),
		},
		TimeZone:  f.Timezone,
		UTCOffset: time.Duration(f.UTCOffsetSeconds) * time.Second,
	}

	d := f.Daily
	if len(d.WeatherCode) != len(d.Time) || len(d.Temperature2mMax) != len(d.Time) || len(d.Temperature2mMin) != len(d.Time) {
		return weather.Snapshot{}, fmt.Errorf("%w: forecast: daily series length mismatch", weather.ErrInvalidResponse)
	}
	snapshot.Daily = make([]weather.Day, 0, len(d.Time))
	for i, raw := range d.Time {
		date, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return weather.Snapshot{}, fmt.Errorf("%w: forecast: daily time %q", weather.ErrInvalidResponse, raw)
		}
		snapshot.Daily = append(snapshot.Daily, weather.Day{
			Date:        date,
			MinC:        value(d.Temperature2mMin[i]),
			MaxC:        value(d.Temperature2mMax[i]),
			WeatherCode: code(d.WeatherCode[i]),
		})
	}

	h := f.Hourly
	if len(h.Time) == 0 {
		return snapshot, nil
	}
	if len(h.Temperature2m) != len(h.Time) || len(h.WeatherCode) != len(h.Time) {
		return weather.Snapshot{}, fmt.Errorf("%w: forecast: hourly series length mismatch", weather.ErrInvalidResponse)
	}
	snapshot.Hourly = make([]weather.Hour, 0, len(h.Time))
	for i, raw := range h.Time {
		ts, err := time.ParseInLocation("2006-01-02T15:04", raw, loc)
		if err != nil {
			return weather.Snapshot{}, fmt.Errorf("%w: forecast: hourly time %q", weather.ErrInvalidResponse, raw)
		}
		snapshot.Hourly = append(snapshot.Hourly, weather.Hour{
			Time:         ts,
			TemperatureC: value(h.Temperature2m[i]),
			WeatherCode:  code(h.WeatherCode[i]),
		})
	}
	return snapshot, nil
}

func value(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func code(c *int) int {
	if c == nil {
		return unknownCode
	}
	return *c
}
