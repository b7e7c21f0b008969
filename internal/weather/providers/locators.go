package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/i474232898/weather-widget/internal/observability"
	"github.com/i474232898/weather-widget/internal/weather"
)

const DefaultLocatorURL = "http://ip-api.com/json"

// IPLocator implements weather.Locator by geolocating a client IP address with
// the ip-api.com JSON endpoint.
type IPLocator struct {
	baseURL string
	ip      string
	api     *endpoint
}

func NewIPLocator(client *http.Client, baseURL string, metrics *observability.Metrics) *IPLocator {
	if baseURL == "" {
		baseURL = DefaultLocatorURL
	}
	return &IPLocator{
		baseURL: strings.TrimRight(baseURL, "/"),
		api:     newEndpoint("ip-geolocation", client, metrics),
	}
}

// ForIP returns a locator bound to the given client address. Loopback and
// private addresses resolve to the server's own public address.
func (l *IPLocator) ForIP(ip string) *IPLocator {
	bound := *l
	bound.ip = ""
	if !isLocalIP(ip) {
		bound.ip = ip
	}
	return &bound
}

func (l *IPLocator) Locate(ctx context.Context) (weather.Position, error) {
	u := l.baseURL
	if l.ip != "" {
		u += "/" + url.PathEscape(l.ip)
	}
	u += "?fields=status,message,lat,lon,timezone"

	var payload struct {
		Status   string   `json:"status"`
		Message  string   `json:"message"`
		Lat      *float64 `json:"lat"`
		Lon      *float64 `json:"lon"`
		Timezone string   `json:"timezone"`
	}

	if err := l.api.getJSON(ctx, u, &payload); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return weather.Position{}, fmt.Errorf("%w: %w", weather.ErrTimeout, err)
		}
		return weather.Position{}, err
	}
	if payload.Status != "success" {
		return weather.Position{}, fmt.Errorf("%w: ip geolocation: %s", weather.ErrUnsupported, payload.Message)
	}
	if payload.Lat == nil || payload.Lon == nil {
		return weather.Position{}, fmt.Errorf("%w: ip geolocation: missing coordinates", weather.ErrInvalidResponse)
	}

	return weather.Position{
		Latitude:  *payload.Lat,
		Longitude: *payload.Lon,
		TimeZone:  payload.Timezone,
	}, nil
}

// isLocalIP reports whether ip is unparsable, loopback, private or link-local.
func isLocalIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return true
	}
	return parsed.IsLoopback() ||
		parsed.IsPrivate() ||
		parsed.IsLinkLocalUnicast() ||
		parsed.IsUnspecified()
}

// StaticLocator always reports the same position.
type StaticLocator struct {
	Position weather.Position
}

func (l StaticLocator) Locate(ctx context.Context) (weather.Position, error) {
	if err := ctx.Err(); err != nil {
		return weather.Position{}, fmt.Errorf("%w: %w", weather.ErrCancelled, err)
	}
	return l.Position, nil
}

// DisabledLocator models a device that refuses location access.
type DisabledLocator struct{}

func (DisabledLocator) Locate(context.Context) (weather.Position, error) {
	return weather.Position{}, fmt.Errorf("%w: device location disabled", weather.ErrPermissionDenied)
}
