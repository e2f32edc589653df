// Package metrics exposes the Prometheus collectors shared across
// fleetwatchd's subsystems: dropped scheduler jobs, telemetry sample loss,
// alert cycle duration, HTTP request stats, and WebSocket connections.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector fleetwatchd registers.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	ProbeJobsDropped   *prometheus.CounterVec
	ProbeJobsQueued     prometheus.Gauge
	ProbeDuration       *prometheus.HistogramVec
	SNMPPollErrors      *prometheus.CounterVec

	TelemetrySamplesLost prometheus.Counter
	TelemetryWriteRetries prometheus.Counter

	AlertCycleDuration prometheus.Histogram
	AlertsOpen         *prometheus.GaugeVec

	WSConnections  prometheus.Gauge
	WSHeartbeats   prometheus.Counter

	DeviceStateTransitions *prometheus.CounterVec
}

// New creates and registers every collector against the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers collectors against a custom registerer, useful
// for isolated test registries.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_http_requests_total",
			Help: "Total HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleetwatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		ProbeJobsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_probe_jobs_dropped_total",
			Help: "Probe jobs dropped by the scheduler under backpressure.",
		}, []string{"kind"}),
		ProbeJobsQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetwatch_probe_jobs_queued",
			Help: "Current depth of the probe job queue.",
		}),
		ProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleetwatch_probe_duration_seconds",
			Help:    "Probe execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		SNMPPollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_snmp_poll_errors_total",
			Help: "SNMP poll failures by kind.",
		}, []string{"kind"}),
		TelemetrySamplesLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_telemetry_samples_lost_total",
			Help: "Telemetry samples dropped after retry exhaustion.",
		}),
		TelemetryWriteRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_telemetry_write_retries_total",
			Help: "Telemetry write retry attempts.",
		}),
		AlertCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetwatch_alert_cycle_duration_seconds",
			Help:    "Duration of one alert-engine evaluation cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		AlertsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetwatch_alerts_open",
			Help: "Currently unresolved alerts by severity.",
		}, []string{"severity"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetwatch_ws_connections",
			Help: "Active WebSocket connections.",
		}),
		WSHeartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_ws_heartbeats_total",
			Help: "Heartbeats sent to WebSocket clients.",
		}),
		DeviceStateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwatch_device_state_transitions_total",
			Help: "Device status-engine transitions by target state.",
		}, []string{"to"}),
	}

	reg.MustRegister(
		m.RequestsTotal, m.RequestDuration,
		m.ProbeJobsDropped, m.ProbeJobsQueued, m.ProbeDuration, m.SNMPPollErrors,
		m.TelemetrySamplesLost, m.TelemetryWriteRetries,
		m.AlertCycleDuration, m.AlertsOpen,
		m.WSConnections, m.WSHeartbeats,
		m.DeviceStateTransitions,
	)
	return m
}

// Handler serves the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
