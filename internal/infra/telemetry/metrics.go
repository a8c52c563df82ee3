package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the governance gates. HTTP
// request metrics live in the transport middleware; these cover domain events.
type Metrics struct {
	LockoutsTotal     prometheus.Counter
	MfaVerifications  *prometheus.CounterVec
	WhitelistDenials  prometheus.Counter
	QuotaDenials      *prometheus.CounterVec
	PolicyEvaluations *prometheus.CounterVec
}

// NewMetrics registers the service metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		LockoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "guard",
			Name:      "account_lockouts_total",
			Help:      "Accounts locked after repeated failed logins",
		}),
		MfaVerifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guard",
			Name:      "mfa_verifications_total",
			Help:      "MFA verification attempts by method and outcome",
		}, []string{"method", "outcome"}),
		WhitelistDenials: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "guard",
			Name:      "whitelist_denials_total",
			Help:      "Requests rejected by the tenant IP whitelist",
		}),
		QuotaDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guard",
			Name:      "quota_denials_total",
			Help:      "Requests denied by an exhausted quota",
		}, []string{"resource_type"}),
		PolicyEvaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guard",
			Name:      "password_evaluations_total",
			Help:      "Password policy evaluations by outcome",
		}, []string{"outcome"}),
	}
}
