package broadcast

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"notiontimer/internal/core/model"
)

type inbox struct {
	mu       sync.Mutex
	messages []string
	notify   chan struct{}
}

func newInbox() *inbox { return &inbox{notify: make(chan struct{}, 16)} }

func (in *inbox) handle(message string) {
	in.mu.Lock()
	in.messages = append(in.messages, message)
	in.mu.Unlock()
	select {
	case in.notify <- struct{}{}:
	default:
	}
}

func (in *inbox) all() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.messages...)
}

func startServer(t *testing.T, config model.BroadcastConfig, onMessage MessageHandler) (*Server, string) {
	t.Helper()
	s := New(config)
	outcomes := make(chan Outcome, 1)
	served := make(chan error, 1)
	go func() {
		served <- s.Start("127.0.0.1", 0, onMessage, func(o Outcome) { outcomes <- o })
	}()

	var outcome Outcome
	select {
	case outcome = <-outcomes:
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not report start outcome")
	}
	if outcome.Err != nil {
		t.Fatalf("start: %v", outcome.Err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
		select {
		case err := <-served:
			if err != nil {
				t.Errorf("start returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("start did not return after shutdown")
		}
	})
	return s, outcome.Addr.String()
}

func dial(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("frame type=%d", kind)
	}
	return string(data)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	s, addr := startServer(t, model.BroadcastConfig{}, nil)
	first := dial(t, addr)
	second := dial(t, addr)
	waitFor(t, "two clients", func() bool { return s.ClientCount() == 2 })

	if n := s.Broadcast("01:00"); n != 2 {
		t.Fatalf("queued for %d clients", n)
	}
	if got := readText(t, first); got != "01:00" {
		t.Fatalf("first got %q", got)
	}
	if got := readText(t, second); got != "01:00" {
		t.Fatalf("second got %q", got)
	}
}

func TestBroadcastSkipsDisconnectedClient(t *testing.T) {
	s, addr := startServer(t, model.BroadcastConfig{}, nil)
	leaving := dial(t, addr)
	staying := dial(t, addr)
	waitFor(t, "two clients", func() bool { return s.ClientCount() == 2 })

	_ = leaving.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	_ = leaving.Close()
	waitFor(t, "one client", func() bool { return s.ClientCount() == 1 })

	if n := s.Broadcast("01:01"); n != 1 {
		t.Fatalf("queued for %d clients", n)
	}
	if got := readText(t, staying); got != "01:01" {
		t.Fatalf("staying got %q", got)
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	s := New(model.BroadcastConfig{})
	if n := s.Broadcast("00:00"); n != 0 {
		t.Fatalf("queued for %d clients", n)
	}
}

func TestInboundTextIsForwarded(t *testing.T) {
	in := newInbox()
	s, addr := startServer(t, model.BroadcastConfig{}, in.handle)
	conn := dial(t, addr)
	waitFor(t, "client", func() bool { return s.ClientCount() == 1 })

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x01}); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello timer")); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, "message", func() bool { return len(in.all()) == 1 })
	if got := in.all()[0]; got != "hello timer" {
		t.Fatalf("got %q", got)
	}
}

func TestReconnectIsNewClient(t *testing.T) {
	s, addr := startServer(t, model.BroadcastConfig{}, nil)
	conn := dial(t, addr)
	waitFor(t, "client", func() bool { return s.ClientCount() == 1 })
	_ = conn.Close()
	waitFor(t, "disconnect", func() bool { return s.ClientCount() == 0 })

	again := dial(t, addr)
	waitFor(t, "reconnect", func() bool { return s.ClientCount() == 1 })
	s.Broadcast("00:05")
	if got := readText(t, again); got != "00:05" {
		t.Fatalf("got %q", got)
	}
}

func TestBindFailureIsReported(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer occupied.Close()
	port := occupied.Addr().(*net.TCPAddr).Port

	s := New(model.BroadcastConfig{})
	var outcome Outcome
	err = s.Start("127.0.0.1", port, nil, func(o Outcome) { outcome = o })
	if err == nil {
		t.Fatalf("expected bind error")
	}
	if !errors.Is(err, ErrBind) || !errors.Is(outcome.Err, ErrBind) {
		t.Fatalf("err=%v outcome=%v", err, outcome.Err)
	}
	var bindErr *BindError
	if !errors.As(err, &bindErr) || !strings.HasSuffix(bindErr.Addr, ":"+strconv.Itoa(port)) {
		t.Fatalf("bind error=%#v", err)
	}
	if outcome.Addr != nil {
		t.Fatalf("unexpected addr %v", outcome.Addr)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown after failed start: %v", err)
	}
}

func TestShutdownClosesClients(t *testing.T) {
	s := New(model.BroadcastConfig{})
	addrCh := make(chan string, 1)
	served := make(chan error, 1)
	go func() {
		served <- s.Start("127.0.0.1", 0, nil, func(o Outcome) {
			if o.Err == nil {
				addrCh <- o.Addr.String()
			}
		})
	}()
	addr := <-addrCh
	conn := dial(t, addr)
	waitFor(t, "client", func() bool { return s.ClientCount() == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-served; err != nil {
		t.Fatalf("start returned %v", err)
	}
	if s.ClientCount() != 0 {
		t.Fatalf("clients=%d after shutdown", s.ClientCount())
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected closed connection")
	}
	if _, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		t.Fatalf("listener still accepting")
	}
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	s := New(model.BroadcastConfig{})
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := s.Listen("127.0.0.1", 0); !errors.Is(err, ErrBind) {
		t.Fatalf("listen after shutdown err=%v", err)
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	_, addr := startServer(t, model.BroadcastConfig{}, nil)

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz status=%d body=%q", resp.StatusCode, body)
	}

	resp, err = http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "notiontimer_broadcast_connected_clients") {
		t.Fatalf("metrics missing gauge")
	}
}

func TestCustomPath(t *testing.T) {
	s, addr := startServer(t, model.BroadcastConfig{Path: "/ws"}, nil)
	if _, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", nil); err == nil {
		t.Fatalf("expected root path to refuse upgrade")
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dial /ws: %v", err)
	}
	defer conn.Close()
	waitFor(t, "client", func() bool { return s.ClientCount() == 1 })
}

func TestDefaultsApplied(t *testing.T) {
	s := New(model.BroadcastConfig{ReadTimeout: time.Second, PingInterval: 5 * time.Second})
	if s.config.PingInterval >= s.config.ReadTimeout {
		t.Fatalf("ping interval %v not below read timeout %v", s.config.PingInterval, s.config.ReadTimeout)
	}
	if s.config.Host != "127.0.0.1" || s.config.Path != "/" || s.config.SendBuffer <= 0 {
		t.Fatalf("config=%+v", s.config)
	}
}

// readSmallFrames reads conn until it closes and forwards short text frames.
func readSmallFrames(conn *websocket.Conn) <-chan string {
	small := make(chan string, 64)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if len(data) < 64 {
				select {
				case small <- string(data):
				default:
				}
			}
		}
	}()
	return small
}

// broadcastUntilReceived repeats message until it arrives on small, then
// waits for stragglers so no copy of message is left queued.
func broadcastUntilReceived(t *testing.T, s *Server, small <-chan string, message string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	received := false
	for !received {
		if time.Now().After(deadline) {
			t.Fatalf("%q never delivered", message)
		}
		s.Broadcast(message)
		select {
		case got := <-small:
			received = got == message
		case <-time.After(50 * time.Millisecond):
		}
	}
	for {
		select {
		case <-small:
		case <-time.After(200 * time.Millisecond):
			return
		}
	}
}

func TestStalledClientDoesNotBlockOthers(t *testing.T) {
	s, addr := startServer(t, model.BroadcastConfig{SendBuffer: 1, WriteTimeout: 30 * time.Second}, nil)
	_ = dial(t, addr) // never read
	healthy := dial(t, addr)
	waitFor(t, "two clients", func() bool { return s.ClientCount() == 2 })
	small := readSmallFrames(healthy)

	// Fill the stalled connection's socket buffers so its writer blocks and
	// its queue stays full.
	bulk := strings.Repeat("x", 256*1024)
	for i := 0; i < 160; i++ {
		started := time.Now()
		s.Broadcast(bulk)
		if elapsed := time.Since(started); elapsed > time.Second {
			t.Fatalf("broadcast blocked for %v", elapsed)
		}
	}
	broadcastUntilReceived(t, s, small, "tail")

	// The healthy queue is empty again; only the stalled one is full.
	started := time.Now()
	n := s.Broadcast("latest")
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("broadcast blocked for %v", elapsed)
	}
	if n != 1 || s.ClientCount() != 2 {
		t.Fatalf("queued for %d of %d clients", n, s.ClientCount())
	}
	select {
	case got := <-small:
		if got != "latest" {
			t.Fatalf("healthy got %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("healthy client missed the latest frame")
	}
}

func TestWriteFailureRemovesOnlyThatClient(t *testing.T) {
	s, addr := startServer(t, model.BroadcastConfig{SendBuffer: 1, WriteTimeout: 500 * time.Millisecond}, nil)
	_ = dial(t, addr) // never read
	healthy := dial(t, addr)
	waitFor(t, "two clients", func() bool { return s.ClientCount() == 2 })
	small := readSmallFrames(healthy)

	// A blocked write on the stalled client times out, the write pump closes
	// the connection and the read pump removes it.
	bulk := strings.Repeat("y", 256*1024)
	deadline := time.Now().Add(15 * time.Second)
	for s.ClientCount() == 2 {
		if time.Now().After(deadline) {
			t.Fatalf("stalled client was never dropped")
		}
		s.Broadcast(bulk)
		time.Sleep(time.Millisecond)
	}

	if s.ClientCount() != 1 {
		t.Fatalf("clients=%d", s.ClientCount())
	}
	broadcastUntilReceived(t, s, small, "after")
}
