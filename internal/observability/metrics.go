package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_widget"

// Metrics holds the Prometheus collectors for the controller, providers and
// presentation layers. All methods are safe on a nil receiver.
type Metrics struct {
	// Controller operations.
	OperationsIssued  *prometheus.CounterVec   // labels: kind={geocode,forecast,locate}
	OperationsSettled *prometheus.CounterVec   // labels: kind, outcome={success,error,cancelled,stale}
	OperationDuration *prometheus.HistogramVec // labels: kind
	Transitions       *prometheus.CounterVec   // labels: status
	DebounceCoalesced prometheus.Counter

	// Provider HTTP calls.
	ProviderRequests *prometheus.CounterVec // labels: provider, outcome={success,error}
	CircuitState     *prometheus.GaugeVec   // labels: provider; 0 closed, 1 half-open, 2 open

	// Presentation.
	ActiveSessions prometheus.Gauge
	Refreshes      prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		OperationsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_issued_total",
			Help:      "Network operations issued by the request controller.",
		}, []string{"kind"}),
		OperationsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_settled_total",
			Help:      "Network operation settlements by kind and outcome.",
		}, []string{"kind", "outcome"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time from issue to settlement of controller operations.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Controller state transitions by target status.",
		}, []string{"status"}),
		DebounceCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_coalesced_total",
			Help:      "Search intents superseded inside the debounce window.",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Outbound provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_circuit_state",
			Help:      "Circuit breaker state per provider (0 closed, 1 half-open, 2 open).",
		}, []string{"provider"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Open widget sessions.",
		}),
		Refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_refreshes_total",
			Help:      "Forecast refreshes triggered by the scheduler.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.OperationsIssued,
		m.OperationsSettled,
		m.OperationDuration,
		m.Transitions,
		m.DebounceCoalesced,
		m.ProviderRequests,
		m.CircuitState,
		m.ActiveSessions,
		m.Refreshes,
	}
}

// OperationIssued counts an operation start.
func (m *Metrics) OperationIssued(kind string) {
	if m == nil {
		return
	}
	m.OperationsIssued.WithLabelValues(kind).Inc()
}

// OperationSettled counts a settlement and, for honored ones, records its duration.
func (m *Metrics) OperationSettled(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OperationsSettled.WithLabelValues(kind, outcome).Inc()
	if outcome == "success" || outcome == "error" {
		m.OperationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
}

// Transition counts a state transition.
func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

// Coalesced counts a search intent dropped by the debounce window.
func (m *Metrics) Coalesced() {
	if m == nil {
		return
	}
	m.DebounceCoalesced.Inc()
}

// ProviderRequest counts an outbound provider request.
func (m *Metrics) ProviderRequest(provider string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
}

// SetCircuitState records a circuit breaker state for a provider.
func (m *Metrics) SetCircuitState(provider string, state float64) {
	if m == nil {
		return
	}
	m.CircuitState.WithLabelValues(provider).Set(state)
}

// SetActiveSessions records the number of open sessions.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// Refreshed counts a scheduled refresh.
func (m *Metrics) Refreshed() {
	if m == nil {
		return
	}
	m.Refreshes.Inc()
}
