package market

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/camarigor/miner-profit/internal/mining"
)

// Metrics tracks upstream fetch outcomes and cache effectiveness
type Metrics struct {
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	cacheHits     *prometheus.CounterVec
	lastRefresh   prometheus.Gauge
}

// NewMetrics registers the market collectors on reg. A nil reg leaves them
// unregistered, which tests use to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minerprofit",
			Subsystem: "market",
			Name:      "fetches_total",
			Help:      "Upstream market data fetches by kind, coin and outcome",
		}, []string{"kind", "coin", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "minerprofit",
			Subsystem: "market",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream market data fetch latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"kind"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minerprofit",
			Subsystem: "market",
			Name:      "cache_hits_total",
			Help:      "Refresh slots served from an in-TTL cache entry",
		}, []string{"kind"}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "minerprofit",
			Subsystem: "market",
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last completed refresh",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.fetches, m.fetchDuration, m.cacheHits, m.lastRefresh)
	}
	return m
}

func (m *Metrics) observeFetch(kind Kind, coin mining.Coin, ok bool, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.fetches.WithLabelValues(string(kind), string(coin), outcome).Inc()
	m.fetchDuration.WithLabelValues(string(kind)).Observe(took.Seconds())
}

func (m *Metrics) cacheHit(kind Kind) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) refreshed(at time.Time) {
	if m == nil {
		return
	}
	m.lastRefresh.Set(float64(at.Unix()))
}
