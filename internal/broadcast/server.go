package broadcast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"notiontimer/internal/core/model"
)

// ErrBind indicates the server could not bind its listen address.
var ErrBind = errors.New("bind failed")

// BindError wraps a listen failure with the requested address.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() []error { return []error{ErrBind, e.Err} }

// MessageHandler receives text frames sent by clients.
type MessageHandler func(message string)

// Outcome reports the result of starting the server.
type Outcome struct {
	Addr net.Addr
	Err  error
}

// DefaultConfig returns the loopback endpoint on port 8080.
func DefaultConfig() model.BroadcastConfig {
	return model.BroadcastConfig{
		Enabled:        true,
		Host:           "127.0.0.1",
		Port:           8080,
		Path:           "/",
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     16,
		AllowedOrigins: []string{"*"},
	}
}

// Server accepts WebSocket clients and fans text messages out to them.
type Server struct {
	config   model.BroadcastConfig
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	clients   map[*client]struct{}
	onMessage MessageHandler
	listener  net.Listener
	http      *http.Server
	closing   bool

	pumps    sync.WaitGroup
	shutdown sync.Once
	done     chan struct{}
}

// New creates a Server. Zero config fields take their defaults.
func New(config model.BroadcastConfig) *Server {
	config = withDefaults(config)
	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		done:    make(chan struct{}),
	}
}

func withDefaults(config model.BroadcastConfig) model.BroadcastConfig {
	defaults := DefaultConfig()
	if config.Host == "" {
		config.Host = defaults.Host
	}
	if config.Path == "" {
		config.Path = defaults.Path
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.PingInterval <= 0 || config.PingInterval >= config.ReadTimeout {
		config.PingInterval = config.ReadTimeout * 9 / 10
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = defaults.SendBuffer
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = defaults.AllowedOrigins
	}
	return config
}

// Handler returns the HTTP routes: the upgrade endpoint, /healthz and /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get(s.config.Path, s.handleUpgrade)

	c := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	})
	return c.Handler(r)
}

// Listen binds host:port. Port 0 picks a free port.
func (s *Server) Listen(host string, port int) (net.Addr, error) {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, &BindError{Addr: address, Err: err}
	}

	s.mu.Lock()
	if s.closing || s.listener != nil {
		s.mu.Unlock()
		_ = listener.Close()
		return nil, &BindError{Addr: address, Err: http.ErrServerClosed}
	}
	s.listener = listener
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	return listener.Addr(), nil
}

// Start binds host:port, reports the outcome through completion and serves
// until Shutdown. It blocks; run it on its own goroutine. A bind failure is
// reported and returned.
func (s *Server) Start(host string, port int, onMessage MessageHandler, completion func(Outcome)) error {
	s.mu.Lock()
	s.onMessage = onMessage
	s.mu.Unlock()

	addr, err := s.Listen(host, port)
	if err != nil {
		log.Error().Err(err).Msg("broadcast server failed to start")
		if completion != nil {
			completion(Outcome{Err: err})
		}
		return err
	}

	log.Info().Str("addr", addr.String()).Str("path", s.config.Path).Msg("broadcast server listening")
	if completion != nil {
		completion(Outcome{Addr: addr})
	}
	return s.serve()
}

func (s *Server) serve() error {
	s.mu.RLock()
	server, listener := s.http, s.listener
	s.mu.RUnlock()

	err := server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		<-s.done
		log.Info().Msg("broadcast server closed")
		return nil
	}
	return fmt.Errorf("serve broadcast: %w", err)
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast queues message as one text frame for every connected client and
// returns how many clients it was queued for. Slow clients miss the frame.
func (s *Server) Broadcast(message string) int {
	s.mu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	payload := []byte(message)
	queued := 0
	for _, c := range targets {
		if c.enqueue(payload) {
			queued++
			continue
		}
		messagesDropped.Inc()
		log.Warn().Str("connection_id", c.id).Msg("client send buffer full, dropping message")
	}
	return queued
}

// Shutdown closes the listener and every client connection, then waits for
// connection goroutines to exit or ctx to end. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdown.Do(func() {
		s.mu.Lock()
		s.closing = true
		server := s.http
		clients := make([]*client, 0, len(s.clients))
		for c := range s.clients {
			clients = append(clients, c)
		}
		s.mu.Unlock()

		if server != nil {
			if shutdownErr := server.Shutdown(ctx); shutdownErr != nil {
				err = fmt.Errorf("shutdown http: %w", shutdownErr)
			}
		}
		for _, c := range clients {
			c.close()
		}

		waited := make(chan struct{})
		go func() {
			s.pumps.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-ctx.Done():
			if err == nil {
				err = fmt.Errorf("wait for connections: %w", ctx.Err())
			}
		}
		close(s.done)
	})
	return err
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("failed to upgrade WebSocket connection")
		return
	}

	c := newClient(s, conn)
	if !s.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.config.WriteTimeout))
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.id).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("client connected")
}

func (s *Server) register(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.clients[c] = struct{}{}
	s.pumps.Add(2)
	connectedClients.Inc()
	return true
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	if ok {
		delete(s.clients, c)
		connectedClients.Dec()
	}
	remaining := len(s.clients)
	s.mu.Unlock()

	if ok {
		log.Info().Str("connection_id", c.id).Int("clients", remaining).Msg("client disconnected")
	}
}

func (s *Server) deliver(message string) {
	s.mu.RLock()
	handler := s.onMessage
	s.mu.RUnlock()
	if handler != nil {
		handler(message)
	}
}
