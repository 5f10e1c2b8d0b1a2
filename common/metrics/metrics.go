// Package metrics defines the Prometheus collectors for movesync.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the service reports
type Metrics struct {
	Registry *prometheus.Registry

	RefreshTotal       *prometheus.CounterVec
	IndexMoves         prometheus.Gauge
	IndexVersion       prometheus.Gauge
	TransitionsTotal   *prometheus.CounterVec
	SagaIncomplete     *prometheus.CounterVec
	CarrierRequests    *prometheus.CounterVec
	CarrierDuration    *prometheus.HistogramVec
	SheetRequests      *prometheus.CounterVec
	SheetDuration      *prometheus.HistogramVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	HTTPRequestsActive prometheus.Gauge
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)

	m := &Metrics{
		Registry: reg,

		RefreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "movesync_refresh_total",
			Help: "Move log refreshes by result (unchanged, rebuilt, error)",
		}, []string{"result"}),

		IndexMoves: f.NewGauge(prometheus.GaugeOpts{
			Name: "movesync_index_moves",
			Help: "Moves in the current index snapshot",
		}),

		IndexVersion: f.NewGauge(prometheus.GaugeOpts{
			Name: "movesync_index_version",
			Help: "Move log version of the current index snapshot",
		}),

		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "movesync_transitions_total",
			Help: "Engine transitions by action and result",
		}, []string{"action", "result"}),

		SagaIncomplete: f.NewCounterVec(prometheus.CounterOpts{
			Name: "movesync_saga_incomplete_total",
			Help: "Transitions that committed but failed a later write, by furthest step",
		}, []string{"step"}),

		CarrierRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "movesync_carrier_requests_total",
			Help: "Requests to carrier driver-state services",
		}, []string{"carrier", "endpoint", "status"}),

		CarrierDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "movesync_carrier_request_duration_seconds",
			Help:    "Latency of carrier driver-state requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"carrier", "endpoint"}),

		SheetRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "movesync_sheet_requests_total",
			Help: "Requests to the move log API",
		}, []string{"operation", "status"}),

		SheetDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "movesync_sheet_request_duration_seconds",
			Help:    "Latency of move log API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served",
		}, []string{"method", "endpoint", "status"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),

		HTTPRequestsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
	}

	registerHostInfo(f)

	return m
}

// ObserveCarrier records one carrier request. status 0 means transport failure.
func (m *Metrics) ObserveCarrier(carrier, endpoint string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.CarrierRequests.WithLabelValues(carrier, endpoint, statusLabel(status)).Inc()
	m.CarrierDuration.WithLabelValues(carrier, endpoint).Observe(took.Seconds())
}

// ObserveSheet records one move log API request. status 0 means transport failure.
func (m *Metrics) ObserveSheet(operation string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.SheetRequests.WithLabelValues(operation, statusLabel(status)).Inc()
	m.SheetDuration.WithLabelValues(operation).Observe(took.Seconds())
}

// ObserveRefresh records a refresh outcome and the resulting index size
func (m *Metrics) ObserveRefresh(result string, version int64, moves int) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
	if result != "error" {
		m.IndexVersion.Set(float64(version))
		m.IndexMoves.Set(float64(moves))
	}
}

// ObserveTransition records one engine action
func (m *Metrics) ObserveTransition(action string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.TransitionsTotal.WithLabelValues(action, result).Inc()
}

// ObserveIncomplete records a transition that stopped after step
func (m *Metrics) ObserveIncomplete(step string) {
	if m == nil {
		return
	}
	m.SagaIncomplete.WithLabelValues(step).Inc()
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
