package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the chart service.
type Metrics struct {
	// Refresh lifecycle, labelled by resource class (history, overlay, rsi).
	FetchesIssued     *prometheus.CounterVec
	FetchesAccepted   *prometheus.CounterVec
	FetchesSuperseded *prometheus.CounterVec

	// Provider failures, labelled by kind (rate_limited, unavailable, other).
	ProviderErrors *prometheus.CounterVec

	// Indicator engine.
	IndicatorComputeDur prometheus.Histogram
	IndicatorsTotal     prometheus.Counter

	// Gateway.
	ActiveSessions prometheus.Gauge
	WSClients      prometheus.Gauge
	WSDropsTotal   prometheus.Counter

	// Quote cache.
	QuoteCacheHits   prometheus.Counter
	QuoteCacheMisses prometheus.Counter
}

// New builds all metrics and registers them on reg. Pass
// prometheus.DefaultRegisterer in main; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_fetches_issued_total",
			Help: "Refresh fetches issued (by resource class)",
		}, []string{"resource"}),
		FetchesAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_fetches_accepted_total",
			Help: "Refresh results accepted and rendered (by resource class)",
		}, []string{"resource"}),
		FetchesSuperseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_fetches_superseded_total",
			Help: "Refresh results discarded as stale (by resource class)",
		}, []string{"resource"}),

		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_provider_errors_total",
			Help: "Upstream provider failures (by kind)",
		}, []string{"kind"}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_indicator_compute_duration_seconds",
			Help:    "Indicator series compute latency",
			Buckets: []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		}),
		IndicatorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_indicators_total",
			Help: "Total indicator series computed",
		}),

		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartd_active_sessions",
			Help: "Open chart sessions",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartd_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		WSDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_ws_drops_total",
			Help: "WebSocket clients dropped for slow consumption",
		}),

		QuoteCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_quote_cache_hits_total",
			Help: "Quote lookups served from cache",
		}),
		QuoteCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_quote_cache_misses_total",
			Help: "Quote lookups fetched upstream",
		}),
	}

	reg.MustRegister(
		m.FetchesIssued,
		m.FetchesAccepted,
		m.FetchesSuperseded,
		m.ProviderErrors,
		m.IndicatorComputeDur,
		m.IndicatorsTotal,
		m.ActiveSessions,
		m.WSClients,
		m.WSDropsTotal,
		m.QuoteCacheHits,
		m.QuoteCacheMisses,
	)

	return m
}

// Resource classes for the fetch counters.
const (
	ResourceHistory = "history"
	ResourceOverlay = "overlay"
	ResourceRSI     = "rsi"
)

// FetchIssued records an issued refresh. Nil-safe so wiring metrics stays
// optional in tests.
func (m *Metrics) FetchIssued(resource string) {
	if m == nil {
		return
	}
	m.FetchesIssued.WithLabelValues(resource).Inc()
}

// FetchAccepted records an applied refresh result.
func (m *Metrics) FetchAccepted(resource string) {
	if m == nil {
		return
	}
	m.FetchesAccepted.WithLabelValues(resource).Inc()
}

// FetchSuperseded records a stale result discard.
func (m *Metrics) FetchSuperseded(resource string) {
	if m == nil {
		return
	}
	m.FetchesSuperseded.WithLabelValues(resource).Inc()
}

// ProviderError records an upstream failure by taxonomy kind.
func (m *Metrics) ProviderError(kind string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(kind).Inc()
}

// ObserveCompute records one indicator series derivation.
func (m *Metrics) ObserveCompute(seconds float64) {
	if m == nil {
		return
	}
	m.IndicatorComputeDur.Observe(seconds)
	m.IndicatorsTotal.Inc()
}

// SessionOpened / SessionClosed track the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// ClientConnected / ClientDisconnected track the WS client gauge.
func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.WSClients.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.WSClients.Dec()
}

// ClientDropped records a slow client eviction.
func (m *Metrics) ClientDropped() {
	if m == nil {
		return
	}
	m.WSDropsTotal.Inc()
}

// QuoteHit / QuoteMiss track quote cache effectiveness.
func (m *Metrics) QuoteHit() {
	if m == nil {
		return
	}
	m.QuoteCacheHits.Inc()
}

func (m *Metrics) QuoteMiss() {
	if m == nil {
		return
	}
	m.QuoteCacheMisses.Inc()
}
