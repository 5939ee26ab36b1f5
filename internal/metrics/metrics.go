// Package metrics defines the Prometheus instruments exported by the alert
// binaries. All instruments are registered through promauto at package load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus instruments are package-level by design of the client library.
var (
	// AlertsRaised counts alerts accepted by Create, by severity.
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emergency_alerts_raised_total",
			Help: "Total number of emergency alerts raised",
		},
		[]string{"severity"},
	)

	// Responses counts responder decisions by decision and outcome.
	Responses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emergency_alert_responses_total",
			Help: "Total number of responder decisions by outcome",
		},
		[]string{"decision", "outcome"},
	)

	// SubscriptionReconnects counts live subscription reconnect attempts.
	SubscriptionReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emergency_alert_subscription_reconnects_total",
			Help: "Total number of alert subscription reconnect attempts",
		},
	)

	// SessionsEscalating tracks responder sessions currently escalating.
	SessionsEscalating = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emergency_alert_sessions_escalating",
			Help: "Number of responder sessions with a non-empty active alert set",
		},
	)

	// ResponderSessions tracks open responder sessions.
	ResponderSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emergency_alert_responder_sessions",
			Help: "Number of open responder sessions",
		},
	)
)
