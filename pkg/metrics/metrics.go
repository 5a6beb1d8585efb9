package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "propgate", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "propgate", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	Projections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "propgate", Name: "gated_projections_total", Help: "Number of listing projections by viewer tier and view."},
		[]string{"tier", "view"},
	)
	FieldsRedacted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "propgate", Name: "fields_redacted_total", Help: "Number of redacted fields served, by field."},
		[]string{"field"},
	)
	FieldsAbsent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "propgate", Name: "fields_absent_total", Help: "Number of declared fields missing from stored records, by field."},
		[]string{"field"},
	)
	UpstreamFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "propgate", Name: "upstream_failures_total", Help: "Number of failed collaborator fetches by collaborator."},
		[]string{"collaborator"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(Projections)
	reg.MustRegister(FieldsRedacted)
	reg.MustRegister(FieldsAbsent)
	reg.MustRegister(UpstreamFailures)
}
