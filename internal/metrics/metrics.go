// Package metrics exposes gofax's Prometheus instrumentation: per-call
// counters and histograms for the T.30 session engine and the T.38
// gateway, registered against a private registry so multiple Session/
// Gateway instances in one process don't collide. Shaped after
// USA-RedDragon-DMRHub's internal/metrics package (one struct of
// collectors built in a constructor, a register() step, an HTTP exposition
// server).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector gofax registers.
type Metrics struct {
	CallsTotal        *prometheus.CounterVec
	CallDuration      prometheus.Histogram
	PagesTotal        *prometheus.CounterVec
	PageQualityTotal  *prometheus.CounterVec
	ECMRetransmits    prometheus.Counter
	FallbackStepDowns prometheus.Counter
	ActiveSessions    prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics builds and registers the collector set against a fresh
// registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gofax_calls_total",
			Help: "Total number of FAX calls completed, by completion code.",
		}, []string{"completion"}),
		CallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gofax_call_duration_seconds",
			Help:    "Duration of completed FAX calls.",
			Buckets: prometheus.DefBuckets,
		}),
		PagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gofax_pages_total",
			Help: "Total number of pages transferred, by direction.",
		}, []string{"direction"}),
		PageQualityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gofax_page_quality_total",
			Help: "Total number of received pages, by copy-quality classification.",
		}, []string{"quality"}),
		ECMRetransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gofax_ecm_retransmits_total",
			Help: "Total number of ECM frames retransmitted after a PPR.",
		}),
		FallbackStepDowns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gofax_modem_fallback_total",
			Help: "Total number of modem fallback step-downs after FTT.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gofax_active_sessions",
			Help: "Number of T.30 sessions currently in progress.",
		}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	m.registry.MustRegister(
		m.CallsTotal,
		m.CallDuration,
		m.PagesTotal,
		m.PageQualityTotal,
		m.ECMRetransmits,
		m.FallbackStepDowns,
		m.ActiveSessions,
	)
}

// Registry exposes the underlying registry for the HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
