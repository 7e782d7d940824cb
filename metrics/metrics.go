package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyeddy/tradegate/broker"
	"github.com/rustyeddy/tradegate/risk"
)

// Metrics holds the tradegate collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	decisions  *prometheus.CounterVec
	executions *prometheus.CounterVec
	orders     *prometheus.CounterVec
	latency    prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_decisions_total",
				Help: "Risk decisions by reason",
			},
			[]string{"reason"},
		),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_executions_total",
				Help: "Orchestrated signals by outcome",
			},
			[]string{"status"},
		),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_orders_total",
				Help: "Orders placed with a broker",
			},
			[]string{"exchange", "side", "type", "status"},
		),
		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tradegate_execution_seconds",
				Help:    "Time to orchestrate one signal",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	reg.MustRegister(m.decisions, m.executions, m.orders, m.latency)
	return m
}

// ObserveDecision has the signature risk.WithObserver expects.
func (m *Metrics) ObserveDecision(_ string, d risk.Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(d.Reason)).Inc()
}

func (m *Metrics) ObserveExecution(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(status).Inc()
	m.latency.Observe(took.Seconds())
}

func (m *Metrics) ObserveOrder(o broker.Order) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(o.Exchange, string(o.Side), string(o.Type), string(o.Status)).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
