package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/bridge"
)

const metricsNamespace = "lumiere_lifx"

// Metrics holds the bridge's Prometheus collectors on a private registry.
// It implements bridge.Observer.
type Metrics struct {
	registry *prometheus.Registry

	palettes        *prometheus.CounterVec
	applyDuration   prometheus.Histogram
	unacknowledged  prometheus.Counter
	attempts        *prometheus.CounterVec
	sessionsStarted prometheus.Counter
	connection      prometheus.Gauge
	devices         prometheus.Gauge
}

// NewMetrics creates and registers the bridge collectors plus the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		palettes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "palettes_applied_total",
			Help:      "Palette passes by result (ok, partial, failed).",
		}, []string{"result"}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "apply_duration_seconds",
			Help:      "Time to distribute a palette and apply it to the lights.",
			Buckets:   prometheus.DefBuckets,
		}),
		unacknowledged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "lights_unacknowledged_total",
			Help:      "Lights that did not report ok for an applied state.",
		}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "session_attempts_total",
			Help:      "Finished supervisor attempts by result.",
		}, []string{"result"}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_started_total",
			Help:      "Supervisor attempts started.",
		}),
		connection: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connection_state",
			Help:      "Coordination channel state: 0 disconnected, 1 connecting, 2 connected.",
		}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "devices",
			Help:      "Lights in the current inventory.",
		}),
	}

	m.registry.MustRegister(
		m.palettes,
		m.applyDuration,
		m.unacknowledged,
		m.attempts,
		m.sessionsStarted,
		m.connection,
		m.devices,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry served on /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SessionStarted(string, int) {
	m.sessionsStarted.Inc()
}

func (m *Metrics) StateChanged(state bridge.ConnectionState) {
	m.connection.Set(float64(state))
}

func (m *Metrics) InventoryLoaded(devices int) {
	m.devices.Set(float64(devices))
}

func (m *Metrics) PaletteApplied(r bridge.ApplyResult) {
	result := "ok"
	switch {
	case r.Err != nil:
		result = "failed"
	case r.Unacknowledged > 0:
		result = "partial"
	}
	m.palettes.WithLabelValues(result).Inc()
	m.applyDuration.Observe(r.Duration.Seconds())
	m.unacknowledged.Add(float64(r.Unacknowledged))
}

func (m *Metrics) AttemptFinished(r bridge.AttemptResult) {
	result := "ok"
	if r.Err != nil {
		result = "failed"
	}
	m.attempts.WithLabelValues(result).Inc()
	m.connection.Set(float64(bridge.Disconnected))
}
