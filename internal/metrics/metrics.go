// Package metrics exposes sync activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	syncpkg "github.com/kimhsiao/shopfloor/backend/internal/sync"
)

const namespace = "shopfloor"

// Pass outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeOffline   = "offline"
)

// Metrics owns a registry of sync metrics. It is an engine event handler.
type Metrics struct {
	registry *prometheus.Registry

	passes       *prometheus.CounterVec
	passDuration prometheus.Histogram
	items        *prometheus.CounterVec
	online       prometheus.Gauge
}

// New creates the metrics and registers them with a private registry.
// pending is read on every scrape for the outbox depth gauge.
func New(pending func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Sync passes by outcome.",
		}, []string{"outcome"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Duration of completed sync passes.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "items_total",
			Help:      "Outbox records processed by entity, action and outcome.",
		}, []string{"entity", "action", "outcome"}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online",
			Help:      "1 while the device believes the remote is reachable.",
		}),
	}

	m.registry.MustRegister(m.passes, m.passDuration, m.items, m.online)
	if pending != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "pending",
			Help:      "Outbox records still awaiting a successful sync.",
		}, func() float64 { return float64(pending()) }))
	}
	return m
}

// OnSyncEvent records an engine event.
func (m *Metrics) OnSyncEvent(ev syncpkg.Event) {
	switch ev.Type {
	case syncpkg.EventCompleted:
		m.passes.WithLabelValues(OutcomeCompleted).Inc()
		if ev.Result != nil {
			m.passDuration.Observe(ev.Result.Duration.Seconds())
		}
	case syncpkg.EventFailed:
		outcome := OutcomeFailed
		if ev.Err == syncpkg.OfflineMessage {
			outcome = OutcomeOffline
		}
		m.passes.WithLabelValues(outcome).Inc()
	case syncpkg.EventItemSynced:
		m.items.WithLabelValues(string(ev.Kind.Entity), string(ev.Kind.Action), "synced").Inc()
	case syncpkg.EventItemFailed:
		m.items.WithLabelValues(string(ev.Kind.Entity), string(ev.Kind.Action), "failed").Inc()
	}
}

// SetOnline records the online belief.
func (m *Metrics) SetOnline(online bool) {
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var _ syncpkg.EventHandler = (*Metrics)(nil)
