package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds client-side counters for catalog traffic and session events.
type Metrics struct {
	Requests       *prometheus.CounterVec
	RequestSeconds *prometheus.HistogramVec
	ForcedLogouts  prometheus.Counter
	Products       prometheus.Gauge
}

// New registers the collectors on reg. A nil reg gets a private registry,
// which keeps tests independent of each other.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricewatch",
			Name:      "catalog_requests_total",
			Help:      "Catalog service requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		RequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pricewatch",
			Name:      "catalog_request_duration_seconds",
			Help:      "Catalog service round-trip latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		ForcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pricewatch",
			Name:      "forced_logouts_total",
			Help:      "Sessions ended because the service rejected the token.",
		}),
		Products: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pricewatch",
			Name:      "monitored_products",
			Help:      "Products in the local collection.",
		}),
	}
	reg.MustRegister(m.Requests, m.RequestSeconds, m.ForcedLogouts, m.Products)
	return m
}

// Observe records one finished catalog call.
func (m *Metrics) Observe(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(op, outcome).Inc()
	m.RequestSeconds.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) ForcedLogout() {
	if m == nil {
		return
	}
	m.ForcedLogouts.Inc()
}

func (m *Metrics) SetProducts(n int) {
	if m == nil {
		return
	}
	m.Products.Set(float64(n))
}
