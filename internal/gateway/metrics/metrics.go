package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions *prometheus.CounterVec
	Rewrites  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "storegate_gateway_decisions_total",
			Help: "Final gateway decision per request",
		}, []string{"decision"}),
		Rewrites: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storegate_gateway_rewrites_total",
			Help: "Internal path rewrites onto tenant storefront routes",
		}),
	}
}
