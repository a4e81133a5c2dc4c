package relay

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"notiontimer/internal/core/model"
)

// DefaultSubject carries the stopwatch description.
const DefaultSubject = "notiontimer.elapsed"

var publishErrors = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "notiontimer",
	Subsystem: "relay",
	Name:      "publish_errors_total",
	Help:      "Failed NATS publishes.",
})

func init() {
	prometheus.MustRegister(publishErrors)
}

// Conn is the subset of *nats.Conn the relay uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATS republishes stopwatch descriptions on a single subject.
type NATS struct {
	conn    Conn
	subject string
}

// Dial connects to the configured server. Reconnects are left to the client
// library; publishes are never retried by the relay.
func Dial(config model.RelayConfig) (*NATS, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("dial nats: empty url")
	}
	conn, err := nats.Connect(config.URL,
		nats.Name("notiontimer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats relay disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats relay reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial nats %s: %w", config.URL, err)
	}
	log.Info().Str("url", conn.ConnectedUrl()).Str("subject", subjectOrDefault(config.Subject)).Msg("nats relay connected")
	return New(conn, config.Subject), nil
}

// New wraps an existing connection.
func New(conn Conn, subject string) *NATS {
	return &NATS{conn: conn, subject: subjectOrDefault(subject)}
}

// Broadcast publishes message and returns 1 on success, 0 on failure.
func (relay *NATS) Broadcast(message string) int {
	if err := relay.conn.Publish(relay.subject, []byte(message)); err != nil {
		publishErrors.Inc()
		log.Error().Err(err).Str("subject", relay.subject).Msg("nats relay publish failed")
		return 0
	}
	return 1
}

// Subject returns the subject descriptions are published on.
func (relay *NATS) Subject() string { return relay.subject }

// Close drains pending publishes and closes the connection.
func (relay *NATS) Close() error {
	if err := relay.conn.Drain(); err != nil {
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}

func subjectOrDefault(subject string) string {
	if subject == "" {
		return DefaultSubject
	}
	return subject
}
