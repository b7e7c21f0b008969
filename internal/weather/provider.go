package weather

import (
	"context"
)

// Geocoder resolves free text to candidate places.
type Geocoder interface {
	Geocode(ctx context.Context, query string) ([]Place, error)
}

// Forecaster fetches a forecast snapshot for a coordinate pair.
type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64) (Snapshot, error)
}

// Locator resolves the device position. Implementations return errors wrapping
// ErrPermissionDenied, ErrTimeout or ErrUnsupported.
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// GeocoderFunc adapts a function to Geocoder.
type GeocoderFunc func(ctx context.Context, query string) ([]Place, error)

func (f GeocoderFunc) Geocode(ctx context.Context, query string) ([]Place, error) {
	return f(ctx, query)
}

// ForecasterFunc adapts a function to Forecaster.
type ForecasterFunc func(ctx context.Context, lat, lon float64) (Snapshot, error)

func (f ForecasterFunc) Forecast(ctx context.Context, lat, lon float64) (Snapshot, error) {
	return f(ctx, lat, lon)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Position, error)

func (f LocatorFunc) Locate(ctx context.Context) (Position, error) {
	return f(ctx)
}
