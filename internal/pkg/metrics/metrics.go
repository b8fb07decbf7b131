/*
Package metrics declares the Prometheus collectors exported by the server.

Collectors are registered on the default registry at init and exposed by the
/metrics route through promhttp. Label sets are fixed and small.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChatSessionsActive gauges WebSocket chat sessions currently subscribed.
	ChatSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_sessions_active",
		Help: "Number of WebSocket chat sessions currently open.",
	})

	// ChatSessionsRejected counts handshakes closed with "Invalid credentials".
	ChatSessionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_sessions_rejected_total",
		Help: "Number of WebSocket chat sessions rejected for missing or invalid credentials.",
	})

	// ChatMessagesPersisted counts chat messages stored by the receive loop.
	ChatMessagesPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_persisted_total",
		Help: "Number of chat messages persisted.",
	})

	// ChatFramesRejected counts inbound frames that failed validation.
	ChatFramesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_frames_rejected_total",
		Help: "Number of inbound chat frames rejected by validation.",
	})

	// BusPublishes counts bus publish attempts by result ("ok" or "error").
	BusPublishes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pubsub_publishes_total",
		Help: "Number of messages published on the pub/sub bus.",
	}, []string{"result"})

	// BusDeliveries counts messages the bus listener handed to a local callback.
	BusDeliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pubsub_deliveries_total",
		Help: "Number of pub/sub messages dispatched to a local subscriber.",
	})

	// BusSubscriptions gauges channels with an active local callback.
	BusSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pubsub_subscriptions_active",
		Help: "Number of pub/sub channels with an active local subscriber.",
	})

	// VerificationCodesSent counts codes issued, labelled by delivery result.
	VerificationCodesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_codes_sent_total",
		Help: "Number of verification codes issued, by delivery result.",
	}, []string{"delivery"})

	// TokenVerificationFailures counts rejected tokens by kind.
	TokenVerificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_verification_failures_total",
		Help: "Number of tokens that failed verification, by token kind.",
	}, []string{"token_type"})
)

func init() {
	prometheus.MustRegister(
		ChatSessionsActive,
		ChatSessionsRejected,
		ChatMessagesPersisted,
		ChatFramesRejected,
		BusPublishes,
		BusDeliveries,
		BusSubscriptions,
		VerificationCodesSent,
		TokenVerificationFailures,
	)
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
