package broadcast

import "github.com/prometheus/client_golang/prometheus"

var (
	connectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "notiontimer",
			Subsystem: "broadcast",
			Name:      "connected_clients",
			Help:      "Currently connected WebSocket clients",
		},
	)

	messagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notiontimer",
			Subsystem: "broadcast",
			Name:      "messages_sent_total",
			Help:      "Text frames written to clients",
		},
	)

	messagesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notiontimer",
			Subsystem: "broadcast",
			Name:      "messages_dropped_total",
			Help:      "Frames dropped because a client queue was full or closed",
		},
	)

	messagesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notiontimer",
			Subsystem: "broadcast",
			Name:      "messages_received_total",
			Help:      "Text frames received from clients",
		},
	)

	writeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notiontimer",
			Subsystem: "broadcast",
			Name:      "write_errors_total",
			Help:      "Failed writes to client connections",
		},
	)
)

func init() {
	prometheus.MustRegister(connectedClients, messagesSent, messagesDropped, messagesReceived, writeErrors)
}
