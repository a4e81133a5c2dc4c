package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// client is one upgraded connection. Its pointer is its identity in the
// connected set; id only correlates log lines.
type client struct {
	id     string
	server *Server
	conn   *websocket.Conn
	send   chan []byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newClient(server *Server, conn *websocket.Conn) *client {
	return &client{
		id:     uuid.New().String(),
		server: server,
		conn:   conn,
		send:   make(chan []byte, server.config.SendBuffer),
		closed: make(chan struct{}),
	}
}

func (c *client) enqueue(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// close sends a close frame and tears down the connection. Safe to call from
// any goroutine, any number of times.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(c.server.config.WriteTimeout))
		_ = c.conn.Close()
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.server.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.server.pumps.Done()
	}()

	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				writeErrors.Inc()
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to write message to WebSocket")
				_ = c.conn.Close()
				return
			}
			messagesSent.Inc()
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				writeErrors.Inc()
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to send ping")
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.server.unregister(c)
		c.close()
		c.server.pumps.Done()
	}()

	c.conn.SetReadLimit(c.server.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout))
	})

	for {
		kind, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.id).Msg("unexpected WebSocket close error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout))
		if kind != websocket.TextMessage {
			log.Debug().Str("connection_id", c.id).Msg("ignoring non-text frame")
			continue
		}
		messagesReceived.Inc()
		log.Debug().Str("connection_id", c.id).Str("message", string(message)).Msg("received client message")
		c.server.deliver(string(message))
	}
}
