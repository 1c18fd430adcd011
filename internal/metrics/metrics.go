// Package metrics provides Prometheus-based metrics collection for anscanner.
// Collectors live on a private registry so a run can be exported as a
// node_exporter textfile without exposing an HTTP endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace for all anscanner metrics
	namespace = "anscanner"

	// Subsystems
	subsystemScan   = "scan"
	subsystemTarget = "target"
)

// Scan modes used as label values.
const (
	ModeDiscovery = "discovery"
	ModePorts     = "ports"
	ModeOS        = "os"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Metrics holds all Prometheus metric collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	scansTotal      *prometheus.CounterVec
	scanDuration    *prometheus.HistogramVec
	hostsDiscovered prometheus.Counter
	openPorts       prometheus.Counter
	fallbacks       prometheus.Counter

	registry *prometheus.Registry
}

// New creates a Metrics instance with every collector registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "invocations_total",
			Help:      "Total number of nmap invocations by mode and status",
		},
		[]string{"mode", "status"},
	)

	m.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of nmap invocations in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
		[]string{"mode"},
	)

	m.hostsDiscovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "hosts_discovered_total",
			Help:      "Total number of live hosts reported by discovery",
		},
	)

	m.openPorts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "open_ports_total",
			Help:      "Total number of open ports reported across hosts",
		},
	)

	m.fallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemTarget,
			Name:      "subnet_fallbacks_total",
			Help:      "Number of targets that fell back to a /24 sweep",
		},
	)

	m.registry.MustRegister(
		m.scansTotal,
		m.scanDuration,
		m.hostsDiscovered,
		m.openPorts,
		m.fallbacks,
	)

	return m
}

// RecordScan records one nmap invocation.
func (m *Metrics) RecordScan(mode, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.scansTotal.WithLabelValues(mode, status).Inc()
	m.scanDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// AddHostsDiscovered adds n live hosts.
func (m *Metrics) AddHostsDiscovered(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.hostsDiscovered.Add(float64(n))
}

// AddOpenPorts adds n open ports.
func (m *Metrics) AddOpenPorts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.openPorts.Add(float64(n))
}

// IncFallback counts a subnet fallback.
func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values in the Prometheus text format.
// The file is written atomically, as the textfile collector expects.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
