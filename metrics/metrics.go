// Package metrics defines prometheus metric types and provides convenience
// values for the rest of this module.
//
// When defining new operations or metrics, these are helpful values to
// track:
//   - things coming into or going out of the system: sessions, commands,
//     transfers.
//   - the success or error status of any of the above.
//   - the distribution of processing latency.
package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks the number of users currently authenticated.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_sessions",
			Help: "number of users currently authenticated",
		})

	// AuthAttemptsTotal counts authentication handshake outcomes.
	//
	// Provides metrics:
	//   chat_auth_attempts_total{outcome="success|failure"}
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_auth_attempts_total",
			Help: "authentication handshake attempts by outcome",
		},
		[]string{"outcome"})

	// CommandsTotal counts dispatched commands by name and outcome.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_commands_total",
			Help: "commands dispatched by name and outcome",
		},
		[]string{"command", "outcome"}) // outcome: "ok", "error"

	// CommandLatencyHistogram tracks how long a full command exchange takes,
	// from the moment the command_mutex is acquired to the moment it is
	// released.
	CommandLatencyHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_command_latency_seconds",
			Help:    "command exchange latency distribution (seconds)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"})

	// TransfersTotal counts file-transfer attempts by outcome.
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_transfers_total",
			Help: "file transfers by outcome",
		},
		[]string{"outcome"}) // "completed", "declined", "failed", "target-busy"

	// TransferBytesTotal counts total bytes moved through the file-transfer
	// subprotocol.
	TransferBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_transfer_bytes_total",
			Help: "total bytes moved through the file-transfer subprotocol",
		})

	// PollActivityHistogram tracks how long poll_activity waits before
	// observing a free command_mutex or timing out.
	PollActivityHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_poll_activity_wait_seconds",
			Help:    "time spent waiting for a target's command mutex to free up",
			Buckets: prometheus.DefBuckets,
		})
)

// init() prints a log message to let the user know that the package has been
// loaded and the metrics registered. The metrics are auto-registered, which
// means they are registered as soon as this package is loaded, and the exact
// time this occurs (and whether this occurs at all in a given context) can be
// opaque.
func init() {
	log.Println("Prometheus metrics in simple-server-go.metrics are registered.")
}
