// Package metrics exposes world counters in Prometheus format. Every method
// is safe on a nil *Metrics so callers never need to guard.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hearsay"

type Metrics struct {
	reg *prometheus.Registry

	actions       *prometheus.CounterVec
	flushes       prometheus.Counter
	flushDuration prometheus.Histogram
	deliveries    *prometheus.CounterVec
	trades        *prometheus.CounterVec
	disclosures   *prometheus.CounterVec
	agents        prometheus.Gauge
	facts         prometheus.Gauge
	connections   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Instants processed, by type and result code (empty code means ok).",
		}, []string{"type", "code"}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Change tracker flushes.",
		}),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Time spent serializing and handing off one flush.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-agent delta deliveries, by result.",
		}, []string{"result"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Trades reaching a terminal state, by status.",
		}, []string{"status"}),
		disclosures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disclosures_total",
			Help:      "Fact copies created or narrowed.",
		}, []string{"kind"}),
		agents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents",
			Help:      "Agents present in the world.",
		}),
		facts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "facts",
			Help:      "Facts stored, masters and copies.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open agent websocket connections.",
		}),
	}
	m.reg.MustRegister(
		m.actions, m.flushes, m.flushDuration, m.deliveries, m.trades,
		m.disclosures, m.agents, m.facts, m.connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry lets other components register their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAction(typ, code string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(typ, code).Inc()
}

func (m *Metrics) ObserveFlush(d time.Duration) {
	if m == nil {
		return
	}
	m.flushes.Inc()
	m.flushDuration.Observe(d.Seconds())
}

// ObserveDelivery counts one per-agent delivery: "ok", "error" or "dropped".
func (m *Metrics) ObserveDelivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTrade(status string) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveDisclosure(created bool) {
	if m == nil {
		return
	}
	kind := "narrowed"
	if created {
		kind = "created"
	}
	m.disclosures.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetWorldSize(agents, facts int) {
	if m == nil {
		return
	}
	m.agents.Set(float64(agents))
	m.facts.Set(float64(facts))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}
