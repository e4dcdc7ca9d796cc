// internal/transport/session.go
package transport

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/agentscope/internal/protocol"
)

// Status is the coarse connection state surfaced to consumers.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

const (
	// DefaultReconnectDelay is the fixed wait before every reconnection
	// attempt after a close. There is no backoff and no attempt cap; the
	// session assumes the server reappears.
	DefaultReconnectDelay = 3 * time.Second

	// DefaultResetDelay is the short wait before reconnecting after an
	// explicit Reset (the "new conversation" action).
	DefaultResetDelay = 200 * time.Millisecond
)

// Handler receives every decoded inbound event in wire arrival order.
type Handler func(*protocol.Event)

// Session maintains one logical connection to the agent event stream,
// independent of the physical connection's lifetime. Malformed frames are
// dropped; socket errors funnel into the close path and trigger an
// unconditional fixed-delay reconnect.
type Session struct {
	url    string
	dialer *websocket.Dialer

	ReconnectDelay time.Duration
	ResetDelay     time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	status   Status
	closed   bool
	handlers []Handler
	onStatus []func(Status)
}

// NewSession creates a session for the given websocket URL. It does not
// connect; call Connect.
func NewSession(url string) *Session {
	return &Session{
		url:            url,
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		ReconnectDelay: DefaultReconnectDelay,
		ResetDelay:     DefaultResetDelay,
		status:         StatusDisconnected,
	}
}

// Handle registers a fan-out target. Delivery order to handlers equals wire
// arrival order. Must be called before Connect.
func (s *Session) Handle(fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

// OnStatus registers a callback invoked on every status transition.
func (s *Session) OnStatus(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = append(s.onStatus, fn)
}

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(st Status) {
	s.status = st
	fns := make([]func(Status), len(s.onStatus))
	copy(fns, s.onStatus)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
	s.mu.Lock()
}

// Connect opens the connection if one is not already open or in progress.
// Idempotent: a no-op while connecting or connected.
func (s *Session) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.status != StatusDisconnected {
		return
	}
	s.setStatus(StatusConnecting)
	go s.dial()
}

func (s *Session) dial() {
	conn, resp, err := s.dialer.Dial(s.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		slog.Debug("dial failed", "url", s.url, "error", err)
		s.setStatus(StatusDisconnected)
		s.scheduleConnect(s.ReconnectDelay)
		s.mu.Unlock()
		return
	}
	s.conn = conn
	s.setStatus(StatusConnected)
	s.mu.Unlock()

	go s.readLoop(conn)
}

// readLoop pumps frames from one physical connection until it dies.
func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			s.handleClose(conn, s.ReconnectDelay)
			return
		}
		ev, err := protocol.Decode(frame)
		if err != nil {
			// Tolerated-loss channel: drop and keep reading.
			slog.Debug("dropping malformed frame", "error", err)
			continue
		}
		s.mu.Lock()
		handlers := make([]Handler, len(s.handlers))
		copy(handlers, s.handlers)
		s.mu.Unlock()
		for _, fn := range handlers {
			fn(ev)
		}
	}
}

// handleClose tears down the given connection (if still current) and
// schedules a reconnect after the given delay.
func (s *Session) handleClose(conn *websocket.Conn, delay time.Duration) {
	conn.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		// A newer connection already replaced this one.
		return
	}
	s.conn = nil
	s.setStatus(StatusDisconnected)
	if !s.closed {
		s.scheduleConnect(delay)
	}
}

// scheduleConnect arms a reconnect attempt. Caller must hold s.mu.
func (s *Session) scheduleConnect(delay time.Duration) {
	time.AfterFunc(delay, s.Connect)
}

// Send enqueues a user_input frame on the wire. A no-op when not connected;
// callers gate on Status themselves.
func (s *Session) Send(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusConnected || s.conn == nil {
		return
	}
	frame, err := protocol.EncodeUserInput(content)
	if err != nil {
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		slog.Debug("send failed", "error", err)
	}
}

// Reset forcibly closes the current connection and reconnects after the
// short reset delay. Used for the explicit "new conversation" action.
func (s *Session) Reset() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		// The read loop observes the close and runs the normal close
		// path; override its delay by scheduling our own connect.
		s.mu.Lock()
		s.conn = nil
		s.setStatus(StatusDisconnected)
		s.scheduleConnect(s.ResetDelay)
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.mu.Lock()
	if !s.closed && s.status == StatusDisconnected {
		s.scheduleConnect(s.ResetDelay)
	}
	s.mu.Unlock()
}

// Close shuts the session down permanently. No further reconnects are
// attempted. Intended for process exit and tests.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.conn = nil
	if s.status != StatusDisconnected {
		s.setStatus(StatusDisconnected)
	}
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
