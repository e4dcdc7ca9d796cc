// internal/transport/session_test.go
package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/agentscope/internal/protocol"
)

// wsServer is a minimal event-stream server for exercising the session.
type wsServer struct {
	*httptest.Server
	conns chan *websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := &wsServer{conns: make(chan *websocket.Conn, 8)}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		srv.conns <- conn
		// Drain inbound frames so writes from the client don't stall.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

func newTestSession(url string) *Session {
	s := NewSession(url)
	s.ReconnectDelay = 20 * time.Millisecond
	s.ResetDelay = 5 * time.Millisecond
	return s
}

func TestSession_ConnectAndReceive(t *testing.T) {
	srv := newWSServer(t)
	sess := newTestSession(srv.url())
	defer sess.Close()

	got := make(chan *protocol.Event, 1)
	sess.Handle(func(ev *protocol.Event) { got <- ev })
	sess.Connect()

	conn := srv.accept(t)
	frame := `{"type":"final_answer","step":1,"timestamp":"t","data":{"content":"done"}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-got:
		if ev.Type != protocol.KindFinalAnswer {
			t.Errorf("expected final_answer, got %s", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSession_MalformedFrameDropped(t *testing.T) {
	srv := newWSServer(t)
	sess := newTestSession(srv.url())
	defer sess.Close()

	got := make(chan *protocol.Event, 2)
	sess.Handle(func(ev *protocol.Event) { got <- ev })
	sess.Connect()

	conn := srv.accept(t)
	conn.WriteMessage(websocket.TextMessage, []byte(`{garbage`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"llm_token","step":0,"timestamp":"t","data":{"token":"x"}}`))

	select {
	case ev := <-got:
		if ev.Type != protocol.KindLLMToken {
			t.Errorf("expected llm_token after dropped frame, got %s", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSession_ReconnectAfterServerClose(t *testing.T) {
	srv := newWSServer(t)
	sess := newTestSession(srv.url())
	defer sess.Close()

	statuses := make(chan Status, 16)
	sess.OnStatus(func(st Status) { statuses <- st })
	sess.Connect()

	conn := srv.accept(t)
	waitStatus(t, statuses, StatusConnecting)
	waitStatus(t, statuses, StatusConnected)

	// Force-close server side; the session must come back by itself.
	conn.Close()
	waitStatus(t, statuses, StatusDisconnected)
	waitStatus(t, statuses, StatusConnecting)
	waitStatus(t, statuses, StatusConnected)
	srv.accept(t)
}

func TestSession_ResetReconnectsQuickly(t *testing.T) {
	srv := newWSServer(t)
	sess := newTestSession(srv.url())
	defer sess.Close()

	statuses := make(chan Status, 16)
	sess.OnStatus(func(st Status) { statuses <- st })
	sess.Connect()
	srv.accept(t)
	waitStatus(t, statuses, StatusConnected)

	sess.Reset()
	waitStatus(t, statuses, StatusDisconnected)
	waitStatus(t, statuses, StatusConnecting)
	waitStatus(t, statuses, StatusConnected)
	srv.accept(t)
}

func TestSession_SendWhileDisconnectedIsNoop(t *testing.T) {
	sess := newTestSession("ws://127.0.0.1:0/ws")
	defer sess.Close()
	// Must not panic or block.
	sess.Send("hello")
}

func TestSession_ConnectIdempotent(t *testing.T) {
	srv := newWSServer(t)
	sess := newTestSession(srv.url())
	defer sess.Close()

	sess.Connect()
	srv.accept(t)
	sess.Connect()
	sess.Connect()

	select {
	case <-srv.conns:
		t.Fatal("redundant Connect opened a second connection")
	case <-time.After(100 * time.Millisecond):
	}
}

func waitStatus(t *testing.T, ch chan Status, want Status) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-ch:
			if st == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %s", want)
		}
	}
}
