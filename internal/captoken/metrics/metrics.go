package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TokensIssued     prometheus.Counter
	Validations      *prometheus.CounterVec
	Consumed         prometheus.Counter
	Revoked          prometheus.Counter
	ValidateDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storegate_capability_tokens_issued_total",
			Help: "Total number of capability tokens issued",
		}),
		Validations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "storegate_capability_token_validations_total",
			Help: "Capability token validations by result",
		}, []string{"result"}),
		Consumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storegate_capability_token_uses_total",
			Help: "Successful scope-gated uses of capability tokens",
		}),
		Revoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storegate_capability_tokens_revoked_total",
			Help: "Capability tokens revoked by operator action",
		}),
		ValidateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "storegate_capability_token_validate_duration_seconds",
			Help:    "Duration of token validation (bearer-auth critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) ObserveValidation(result string, start time.Time) {
	m.Validations.WithLabelValues(result).Inc()
	m.ValidateDuration.Observe(time.Since(start).Seconds())
}
