// Package metrics provides Prometheus metrics for tessera.
//
// Every method is safe on a nil *Metrics, so components record
// unconditionally and metrics stay optional.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for tessera
type Metrics struct {
	// Write metrics
	SavesTotal   *prometheus.CounterVec
	DeletesTotal prometheus.Counter

	// Read metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec

	// Observation metrics
	EventsPublishedTotal *prometheus.CounterVec
	ActiveSubscriptions  prometheus.Gauge

	// Storage metrics
	StorageInitsTotal    *prometheus.CounterVec
	StorageInitDuration  prometheus.Histogram
	ExclusiveWaitSeconds prometheus.Histogram

	// Errors by kind
	ErrorsTotal *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg
// creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.SavesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tessera_saves_total",
			Help: "Total number of committed saves",
		},
		[]string{"model", "op"},
	)

	m.DeletesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "tessera_deletes_total",
			Help: "Total number of deleted records",
		},
	)

	m.QueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tessera_queries_total",
			Help: "Total number of queries",
		},
		[]string{"model", "kind"},
	)

	m.QueryDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tessera_query_duration_seconds",
			Help:    "Duration of queries in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"model"},
	)

	m.EventsPublishedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tessera_events_published_total",
			Help: "Total number of change events published",
		},
		[]string{"model", "op"},
	)

	m.ActiveSubscriptions = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "tessera_active_subscriptions",
			Help: "Number of open change subscriptions",
		},
	)

	m.StorageInitsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tessera_storage_inits_total",
			Help: "Total number of storage engine constructions",
		},
		[]string{"status"},
	)

	m.StorageInitDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tessera_storage_init_duration_seconds",
			Help:    "Duration of storage engine construction in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.ExclusiveWaitSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tessera_exclusive_wait_seconds",
			Help:    "Time spent waiting to enter the exclusive section",
			Buckets: []float64{.0001, .001, .01, .1, 1, 10},
		},
	)

	m.ErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tessera_errors_total",
			Help: "Total number of failed operations by kind",
		},
		[]string{"kind"},
	)

	return m
}

// RecordSave records a committed save.
func (m *Metrics) RecordSave(model, op string) {
	if m == nil {
		return
	}
	m.SavesTotal.WithLabelValues(model, op).Inc()
}

// RecordDelete records deleted records.
func (m *Metrics) RecordDelete(n int) {
	if m == nil {
		return
	}
	m.DeletesTotal.Add(float64(n))
}

// RecordQuery records a query of the given kind ("all", "id", "where").
func (m *Metrics) RecordQuery(model, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(model, kind).Inc()
	m.QueryDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordEvent records a published change event.
func (m *Metrics) RecordEvent(model, op string) {
	if m == nil {
		return
	}
	m.EventsPublishedTotal.WithLabelValues(model, op).Inc()
}

// SetSubscriptions sets the open subscription count.
func (m *Metrics) SetSubscriptions(n int) {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.Set(float64(n))
}

// RecordStorageInit records an engine construction attempt.
func (m *Metrics) RecordStorageInit(err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StorageInitsTotal.WithLabelValues(status).Inc()
	m.StorageInitDuration.Observe(duration.Seconds())
}

// RecordExclusiveWait records time spent acquiring the exclusive section.
func (m *Metrics) RecordExclusiveWait(d time.Duration) {
	if m == nil {
		return
	}
	m.ExclusiveWaitSeconds.Observe(d.Seconds())
}

// RecordError records a failed operation.
func (m *Metrics) RecordError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}
