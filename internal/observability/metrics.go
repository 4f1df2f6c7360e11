package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics centralizes Prometheus instrumentation for the sampling daemon
// and the report API.
type Metrics struct {
	registry *prometheus.Registry

	samples        *prometheus.CounterVec
	sampleErrors   *prometheus.CounterVec
	sampleDuration *prometheus.HistogramVec
	lastCounter    *prometheus.GaugeVec
	lastSampleAt   *prometheus.GaugeVec
	reportRequests *prometheus.CounterVec
}

// NewMetrics builds a metrics container backed by the provided registry. If no
// registry is supplied, a new one is created.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{registry: reg}

	m.samples = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netusage_samples_total",
		Help: "Counter readings appended to the sample store",
	}, []string{"iface"})
	m.sampleErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netusage_sample_errors_total",
		Help: "Sampling failures grouped by stage",
	}, []string{"iface", "stage"})
	m.sampleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netusage_sample_duration_seconds",
		Help:    "Time spent reading and persisting one sample",
		Buckets: prometheus.DefBuckets,
	}, []string{"iface"})
	m.lastCounter = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netusage_last_counter_bytes",
		Help: "Most recently observed cumulative counter values",
	}, []string{"iface", "direction"})
	m.lastSampleAt = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netusage_last_sample_timestamp_seconds",
		Help: "Unix timestamp of the most recent stored sample",
	}, []string{"iface"})
	m.reportRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netusage_report_requests_total",
		Help: "Usage report requests grouped by outcome",
	}, []string{"status"})

	reg.MustRegister(m.samples, m.sampleErrors, m.sampleDuration, m.lastCounter, m.lastSampleAt, m.reportRequests)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveSample records one successfully stored reading.
func (m *Metrics) ObserveSample(iface string, rx, tx uint64, at time.Time, took time.Duration) {
	m.samples.WithLabelValues(iface).Inc()
	m.sampleDuration.WithLabelValues(iface).Observe(took.Seconds())
	m.lastCounter.WithLabelValues(iface, "rx").Set(float64(rx))
	m.lastCounter.WithLabelValues(iface, "tx").Set(float64(tx))
	m.lastSampleAt.WithLabelValues(iface).Set(float64(at.Unix()))
}

// RecordSampleError counts a failed sampling tick. Stage is "read" or
// "append".
func (m *Metrics) RecordSampleError(iface, stage string) {
	m.sampleErrors.WithLabelValues(iface, stage).Inc()
}

// RecordReportRequest counts one report request by outcome.
func (m *Metrics) RecordReportRequest(status string) {
	m.reportRequests.WithLabelValues(status).Inc()
}
