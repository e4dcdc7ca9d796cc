// internal/engine/engine_test.go
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/user/agentscope/internal/journal"
	"github.com/user/agentscope/internal/protocol"
	"github.com/user/agentscope/internal/transport"
)

// fakeSource is an in-memory EventSource.
type fakeSource struct {
	handlers []transport.Handler
	onStatus []func(transport.Status)
	status   transport.Status
	sent     []string
	resets   int
}

func (f *fakeSource) Connect() {
	f.setStatus(transport.StatusConnecting)
	f.setStatus(transport.StatusConnected)
}
func (f *fakeSource) Send(content string)           { f.sent = append(f.sent, content) }
func (f *fakeSource) Reset()                        { f.resets++; f.setStatus(transport.StatusDisconnected) }
func (f *fakeSource) Close()                        {}
func (f *fakeSource) Status() transport.Status      { return f.status }
func (f *fakeSource) Handle(fn transport.Handler)   { f.handlers = append(f.handlers, fn) }
func (f *fakeSource) OnStatus(fn func(transport.Status)) {
	f.onStatus = append(f.onStatus, fn)
}

func (f *fakeSource) setStatus(st transport.Status) {
	f.status = st
	for _, fn := range f.onStatus {
		fn(st)
	}
}

func (f *fakeSource) emit(kind protocol.EventKind, step int, data string) {
	ev := &protocol.Event{Type: kind, Step: step, Timestamp: "t", Data: json.RawMessage(data)}
	for _, fn := range f.handlers {
		fn(ev)
	}
}

func startEngine(t *testing.T) (*Engine, *fakeSource) {
	t.Helper()
	src := &fakeSource{status: transport.StatusDisconnected}
	e := New(src, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.Start(ctx)
	return e, src
}

// drain waits until the engine has applied everything emitted so far.
func drain(t *testing.T, e *Engine, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		select {
		case <-e.Updates():
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatal("engine did not reach expected state")
}

func TestEngine_FanOutToBothReducers(t *testing.T) {
	e, src := startEngine(t)

	src.emit(protocol.KindGraphReset, 0, `{}`)
	src.emit(protocol.KindNodeEnter, 1, `{"node_type":"llm","node_id":"llm-1","step":1}`)
	src.emit(protocol.KindLLMToken, 1, `{"token":"Hi"}`)
	src.emit(protocol.KindFinalAnswer, 2, `{"content":"Hi"}`)

	drain(t, e, func() bool {
		nodes, _ := e.Graph()
		return len(nodes) == 3 && len(e.Timeline()) == 1
	})

	nodes, edges := e.Graph()
	if len(edges) != 2 {
		t.Errorf("expected 2 edges, got %d", len(edges))
	}
	if nodes[2].Kind != "answer" {
		t.Errorf("expected terminal answer node, got %s", nodes[2].Kind)
	}
	items := e.Timeline()
	if items[0].Payload["content"] != "Hi" {
		t.Errorf("timeline should hold the final answer, got %v", items[0].Payload)
	}
}

func TestEngine_SendMessageOptimisticAppend(t *testing.T) {
	e, src := startEngine(t)
	drain(t, e, func() bool { return e.Status() == transport.StatusConnected })

	if err := e.SendMessage("hello agent"); err != nil {
		t.Fatal(err)
	}
	if len(src.sent) != 1 || src.sent[0] != "hello agent" {
		t.Fatalf("expected message on the wire, got %v", src.sent)
	}
	items := e.Timeline()
	if len(items) != 1 || items[0].Kind != protocol.KindUserInput {
		t.Fatalf("expected optimistic user item, got %+v", items)
	}
	if !e.Running() {
		t.Error("sending should mark the agent running")
	}

	// The server's echo is graph-only; no duplicate timeline item.
	src.emit(protocol.KindUserInput, 0, `{"content":"hello agent"}`)
	src.emit(protocol.KindFinalAnswer, 1, `{"content":"hi"}`)
	drain(t, e, func() bool { return len(e.Timeline()) == 2 })
}

func TestEngine_SendMessageWhileDisconnected(t *testing.T) {
	src := &fakeSource{status: transport.StatusDisconnected}
	e := New(src, nil)
	if err := e.SendMessage("x"); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if len(e.Timeline()) != 0 {
		t.Error("no optimistic append while disconnected")
	}
}

func TestEngine_NewConversation(t *testing.T) {
	e, src := startEngine(t)
	drain(t, e, func() bool { return e.Status() == transport.StatusConnected })

	e.SendMessage("hi")
	e.NewConversation()

	if len(e.Timeline()) != 0 {
		t.Error("new conversation must clear the timeline")
	}
	if src.resets != 1 {
		t.Errorf("expected 1 transport reset, got %d", src.resets)
	}
}

func TestEngine_DisconnectEndsTurn(t *testing.T) {
	e, src := startEngine(t)
	drain(t, e, func() bool { return e.Status() == transport.StatusConnected })

	e.SendMessage("hi")
	src.setStatus(transport.StatusDisconnected)

	drain(t, e, func() bool { return !e.Running() })
	if e.Status() != transport.StatusDisconnected {
		t.Errorf("status should track the source, got %s", e.Status())
	}
}

func TestEngine_ReplayRebuildsState(t *testing.T) {
	src := &fakeSource{status: transport.StatusDisconnected}
	e := New(src, nil)

	raw := []struct {
		kind protocol.EventKind
		step int
		data string
	}{
		{protocol.KindGraphReset, 0, `{}`},
		{protocol.KindNodeEnter, 1, `{"node_type":"llm","node_id":"llm-1","step":1}`},
		{protocol.KindNodeExit, 1, `{"node_type":"llm","node_id":"llm-1","step":1,"duration_ms":3,"token_usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`},
		{protocol.KindFinalAnswer, 2, `{"content":"done"}`},
	}
	var entries []journal.Entry
	for i, r := range raw {
		ev := &protocol.Event{Type: r.kind, Step: r.step, Timestamp: "t", Data: json.RawMessage(r.data)}
		entries = append(entries, journal.Entry{Seq: int64(i + 1), Event: ev})
	}

	e.Replay(entries)

	nodes, edges := e.Graph()
	if len(nodes) != 3 || len(edges) != 2 {
		t.Fatalf("expected 3 nodes / 2 edges, got %d / %d", len(nodes), len(edges))
	}
	if e.Turn() != 1 {
		t.Errorf("expected 1 turn, got %d", e.Turn())
	}
	if u := e.Usage(); u.TotalTokens != 12 {
		t.Errorf("expected replayed usage total 12, got %d", u.TotalTokens)
	}
	items := e.Timeline()
	if len(items) != 1 || items[0].Payload["content"] != "done" {
		t.Fatalf("expected the final answer in the timeline, got %+v", items)
	}
	if len(src.sent) != 0 {
		t.Error("replay must not touch the wire")
	}
}

func TestEngine_OrderingUnderBurst(t *testing.T) {
	e, src := startEngine(t)

	src.emit(protocol.KindGraphReset, 0, `{}`)
	for i := 1; i <= 50; i++ {
		src.emit(protocol.KindNodeEnter, i, fmt.Sprintf(`{"node_type":"llm","node_id":"n-%d","step":%d}`, i, i))
		src.emit(protocol.KindNodeExit, i, fmt.Sprintf(`{"node_type":"llm","node_id":"n-%d","step":%d,"duration_ms":1}`, i, i))
	}

	drain(t, e, func() bool {
		nodes, _ := e.Graph()
		return len(nodes) == 51
	})
	nodes, edges := e.Graph()
	if len(edges) != 50 {
		t.Errorf("expected 50 edges, got %d", len(edges))
	}
	for i, n := range nodes[1:] {
		if n.ID != fmt.Sprintf("n-%d", i+1) {
			t.Fatalf("nodes out of order at %d: %s", i, n.ID)
		}
		if n.Status != "completed" {
			t.Fatalf("node %s not completed", n.ID)
		}
	}
}
