package directory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Resolutions      *prometheus.CounterVec
	FallbackResolved prometheus.Counter
	ResolveDuration  prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "storegate_tenant_resolutions_total",
			Help: "Tenant resolution attempts by hostname kind and result",
		}, []string{"kind", "result"}),
		FallbackResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storegate_tenant_fallback_resolutions_total",
			Help: "Resolutions served by the subdomain-of-root-domain fallback",
		}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "storegate_tenant_resolve_duration_seconds",
			Help:    "Duration of tenant resolution lookups (request critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}
