package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	SubmissionsTotal  prometheus.Counter
	ReviewsTotal      *prometheus.CounterVec
	RateLimitDenials  prometheus.Counter
	SweepWarnedTotal  prometheus.Counter
	SweepExpiredTotal prometheus.Counter
	SweepErrorsTotal  prometheus.Counter
	PrivacyOpsTotal   *prometheus.CounterVec
}

// New creates all Prometheus metrics and registers them with reg. Tests pass
// a fresh registry so suites in the same package do not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_verification_submissions_total",
			Help: "Total number of accepted verification submissions",
		}),
		ReviewsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_verification_reviews_total",
			Help: "Total number of completed reviews by decision",
		}, []string{"decision"}),
		RateLimitDenials: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_submission_rate_limit_denials_total",
			Help: "Total number of submissions denied by the rate limiter",
		}),
		SweepWarnedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_retention_sweep_warned_total",
			Help: "Total number of retention warnings sent by the sweep",
		}),
		SweepExpiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_retention_sweep_expired_total",
			Help: "Total number of verifications expired by the sweep",
		}),
		SweepErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_retention_sweep_errors_total",
			Help: "Total number of per-record errors during retention sweeps",
		}),
		PrivacyOpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_privacy_operations_total",
			Help: "Total number of data subject rights operations by kind",
		}, []string{"operation"}),
	}
}
