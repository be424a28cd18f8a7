package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics is a small set of process-local counters, registered
// against a private registry the façade owns rather than the global
// default registry — this module never starts an HTTP exporter
// (spec.md's Non-goal is the export transport, not instrumentation
// itself; SPEC_FULL.md §4.9).
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal       prometheus.Counter
	FailuresTotal       prometheus.Counter
	UpdatesTotal        prometheus.Counter
	DecodeFailuresTotal prometheus.Counter
	OrdersRejectedTotal prometheus.Counter
}

// NewMetrics builds and registers a fresh set of counters.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_ingestion_requests_total",
			Help: "Outgoing quote-vendor HTTP requests attempted.",
		}),
		FailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_ingestion_failures_total",
			Help: "Outgoing quote-vendor HTTP requests that failed.",
		}),
		UpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_snapshot_updates_total",
			Help: "Successful snapshot-store updates.",
		}),
		DecodeFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_decode_failures_total",
			Help: "Quote envelopes that failed to decode or validate.",
		}),
		OrdersRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_orders_rejected_total",
			Help: "Order-book operations rejected at the façade boundary.",
		}),
	}

	reg.MustRegister(m.RequestsTotal, m.FailuresTotal, m.UpdatesTotal, m.DecodeFailuresTotal, m.OrdersRejectedTotal)
	return m
}
