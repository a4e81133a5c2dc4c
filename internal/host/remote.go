package host

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"notiontimer/internal/broadcast"
	"notiontimer/internal/core/model"
	"notiontimer/internal/relay"
)

const shutdownTimeout = 5 * time.Second

// Remote owns the publishers attached to a host. It holds the host strongly:
// the stopwatch only keeps a weak reference, so whoever keeps the Remote
// keeps the host subscribed.
type Remote struct {
	host   *Host
	server *broadcast.Server
	relay  *relay.NATS
	served chan struct{}
}

// StartRemote attaches the broadcast server and the optional NATS relay to
// host. Failures are reported through the host and never stop local
// timekeeping.
func StartRemote(host *Host, broadcastConfig model.BroadcastConfig, relayConfig model.RelayConfig) *Remote {
	remote := &Remote{host: host, served: make(chan struct{})}

	if broadcastConfig.Enabled {
		remote.server = broadcast.New(broadcastConfig)
		host.AddPublisher(remote.server)
		go func() {
			defer close(remote.served)
			if err := remote.server.Start(broadcastConfig.Host, broadcastConfig.Port, host.HandleMessage, host.ServerStarted); err != nil {
				log.Warn().Err(err).Msg("broadcast server stopped")
			}
		}()
	} else {
		close(remote.served)
		log.Info().Msg("broadcast server disabled")
	}

	if relayConfig.URL != "" {
		natsRelay, err := relay.Dial(relayConfig)
		if err != nil {
			log.Warn().Err(err).Msg("nats relay unavailable")
		} else {
			remote.relay = natsRelay
			host.AddPublisher(natsRelay)
		}
	}
	return remote
}

// Host returns the host this Remote keeps alive.
func (remote *Remote) Host() *Host { return remote.host }

// Close shuts the server down and drains the relay.
func (remote *Remote) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if remote.server != nil {
		if err := remote.server.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("broadcast shutdown incomplete")
		}
	}
	select {
	case <-remote.served:
	case <-ctx.Done():
	}
	if remote.relay != nil {
		if err := remote.relay.Close(); err != nil {
			log.Warn().Err(err).Msg("nats relay close failed")
		}
	}
}
