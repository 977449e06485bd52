package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"social_auth/internal/common"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeRequeue = "requeued"
	OutcomeDropped = "dropped"
)

// AuthMetrics holds the counters recorded by the auth service and mail worker.
// A nil *AuthMetrics is valid and records nothing.
type AuthMetrics struct {
	registry       *prometheus.Registry
	Operations     *prometheus.CounterVec
	MailDeliveries *prometheus.CounterVec
	CodesPurged    prometheus.Counter
}

// NewAuthMetrics creates the counters on a private registry together with
// the standard Go and process collectors.
func NewAuthMetrics() *AuthMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &AuthMetrics{
		registry: registry,
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "social_auth_operations_total",
				Help: "Total number of auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		MailDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "social_auth_mail_deliveries_total",
				Help: "Total number of outbox mail delivery attempts by outcome",
			},
			[]string{"outcome"},
		),
		CodesPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "social_auth_reset_codes_purged_total",
				Help: "Total number of expired password reset codes cleared by the janitor",
			},
		),
	}

	registry.MustRegister(m.Operations)
	registry.MustRegister(m.MailDeliveries)
	registry.MustRegister(m.CodesPurged)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *AuthMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ObserveOperation counts one call of operation, labelled by the kind of err.
func (m *AuthMetrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, OutcomeOf(err)).Inc()
}

// ObserveMailDelivery counts one delivery attempt.
func (m *AuthMetrics) ObserveMailDelivery(outcome string) {
	if m == nil {
		return
	}
	m.MailDeliveries.WithLabelValues(outcome).Inc()
}

// ObserveCodesPurged adds n cleared reset codes.
func (m *AuthMetrics) ObserveCodesPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CodesPurged.Add(float64(n))
}

// OutcomeOf returns the metric label for an operation result.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, common.ErrValidation):
		return "validation"
	case errors.Is(err, common.ErrUnauthorized):
		return "unauthenticated"
	case errors.Is(err, common.ErrForbidden):
		return "forbidden"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, common.ErrConflict):
		return "conflict"
	case errors.Is(err, common.ErrNotification):
		return "notification"
	default:
		return "error"
	}
}
