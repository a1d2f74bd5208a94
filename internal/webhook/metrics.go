package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for eventsTotal.
const (
	outcomeHandled = "handled"
	outcomeIgnored = "ignored"
	outcomeFailed  = "failed"

	// Type label for events that could not be decoded.
	eventTypeUndecodable = "undecodable"
)

var (
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "line_webhook_deliveries_total",
			Help: "Webhook deliveries by result.",
		},
		[]string{"result"},
	)

	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "line_webhook_events_total",
			Help: "Webhook events by type and processing outcome.",
		},
		[]string{"type", "outcome"},
	)

	repliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "line_replies_total",
			Help: "Reply API calls by result.",
		},
		[]string{"result"},
	)

	statusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "line_user_status_transitions_total",
			Help: "Persisted user status changes by target status.",
		},
		[]string{"to"},
	)
)
