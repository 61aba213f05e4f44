package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/warp/payment-schedule/schedule"
)

// =============================================================================
// METRICS
// =============================================================================

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_schedule_validations_total",
		Help: "Schedule validations by entry point and outcome.",
	}, []string{"source", "outcome"})

	validationMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_schedule_validation_messages_total",
		Help: "Validation errors and warnings produced.",
	}, []string{"severity"})

	deletesRefused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_schedule_deletes_refused_total",
		Help: "Term deletions refused because they would remove the last contract document.",
	})

	transitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_schedule_status_transitions_rejected_total",
		Help: "Status transitions that failed their guards, by target status.",
	}, []string{"to"})

	overdueMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_schedule_terms_marked_overdue_total",
		Help: "Terms flipped to overdue by the sweeper.",
	})
)

func observeValidation(source string, r schedule.ValidationResult) {
	outcome := "valid"
	if !r.IsValid() {
		outcome = "invalid"
	}
	validationsTotal.WithLabelValues(source, outcome).Inc()
	validationMessages.WithLabelValues("error").Add(float64(len(r.Errors)))
	validationMessages.WithLabelValues("warning").Add(float64(len(r.Warnings)))
}
