package providers

import (
	"context"
	"fmt"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-widget/internal/common"
	"github.com/i474232898/weather-widget/internal/observability"
	"github.com/i474232898/weather-widget/internal/weather"
)

const googleProvider = "google-geocoding"

// GoogleGeocoder implements weather.Geocoder with the Google Geocoding API.
// It resolves at most one place per query.
type GoogleGeocoder struct {
	metrics *observability.Metrics

	// Overridable for tests; default to the kelvins/geocoder package functions.
	forward func(geocoder.Address) (geocoder.Location, error)
	reverse func(geocoder.Location) ([]geocoder.Address, error)
}

// NewGoogleGeocoder configures the process-wide Google API key and returns a geocoder.
func NewGoogleGeocoder(apiKey string, metrics *observability.Metrics) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{
		metrics: metrics,
		forward: geocoder.Geocoding,
		reverse: geocoder.GeocodingReverse,
	}
}

type googleResult struct {
	places []weather.Place
	err    error
}

// Geocode runs the blocking library calls in a goroutine so the caller can
// abandon them on cancellation.
func (g *GoogleGeocoder) Geocode(ctx context.Context, query string) ([]weather.Place, error) {
	done := make(chan googleResult, 1)
	go func() {
		places, err := g.lookup(query)
		done <- googleResult{places: places, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", weather.ErrCancelled, ctx.Err())
	case r := <-done:
		g.metrics.ProviderRequest(googleProvider, r.err)
		return r.places, r.err
	}
}

func (g *GoogleGeocoder) lookup(query string) ([]weather.Place, error) {
	loc, err := g.forward(geocoder.Address{City: query})
	if err != nil {
		if common.ContainsAnyFold(err.Error(), "ZERO_RESULTS", "NOT_FOUND") {
			return []weather.Place{}, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", weather.ErrNetwork, googleProvider, err)
	}

	place := weather.Place{
		Name:      query,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	}

	// Best effort: the forward call only yields coordinates.
	addresses, err := g.reverse(loc)
	if err == nil && len(addresses) > 0 {
		addr := addresses[0]
		if addr.City != "" {
			place.Name = addr.City
		}
		place.Admin1 = addr.State
		place.Country = addr.Country
	}
	return []weather.Place{place}, nil
}
