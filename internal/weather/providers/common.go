package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-widget/internal/observability"
	"github.com/i474232898/weather-widget/internal/weather"
)

var (
	errServerError  = errors.New("server error")
	errClientStatus = errors.New("unexpected client status")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// endpoint bundles the HTTP client, circuit breaker and metrics of one upstream API.
// Requests are never retried: a failed call surfaces to the controller as is.
type endpoint struct {
	name    string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

func newEndpoint(name string, client *http.Client, metrics *observability.Metrics) *endpoint {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// Aborted calls and 4xx answers say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, errClientStatus)
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.SetCircuitState(name, float64(to))
		},
	})

	return &endpoint{
		name:    name,
		client:  client,
		circuit: cb,
		metrics: metrics,
	}
}

// getJSON performs a GET through the circuit breaker and decodes the body into out.
func (e *endpoint) getJSON(ctx context.Context, rawURL string, out any) error {
	err := e.get(ctx, rawURL, out)
	e.metrics.ProviderRequest(e.name, err)
	return err
}

func (e *endpoint) get(ctx context.Context, rawURL string, out any) error {
	if e.client == nil {
		return errNoHTTPClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	result, err := e.circuit.Execute(func() (interface{}, error) {
		resp, execErr := e.client.Do(req)
		if execErr != nil {
			return nil, execErr
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %d: %s", errClientStatus, resp.StatusCode, body)
		}
		return resp, nil
	})
	if err != nil {
		return e.classify(ctx, err)
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return fmt.Errorf("%w: unexpected result type from circuit breaker", weather.ErrNetwork)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", weather.ErrCancelled, ctx.Err())
		}
		return fmt.Errorf("%w: %s: decode: %v", weather.ErrInvalidResponse, e.name, err)
	}
	return nil
}

// classify maps transport and breaker errors onto the weather error taxonomy.
func (e *endpoint) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", weather.ErrCancelled, ctx.Err())
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %w: %v", weather.ErrNetwork, e.name, errCircuitOpen, err)
	}
	return fmt.Errorf("%w: %s: %w", weather.ErrNetwork, e.name, err)
}
