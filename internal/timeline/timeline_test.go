// internal/timeline/timeline_test.go
package timeline

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/user/agentscope/internal/protocol"
)

func event(kind protocol.EventKind, step int, data string) *protocol.Event {
	return &protocol.Event{
		Type:      kind,
		Step:      step,
		Timestamp: "2026-01-01T00:00:00Z",
		Data:      json.RawMessage(data),
	}
}

func tokenEvent(tok string) *protocol.Event {
	return event(protocol.KindLLMToken, 1, fmt.Sprintf(`{"token":%q}`, tok))
}

func TestStreamingIdempotence(t *testing.T) {
	r := NewReducer()
	r.Apply(tokenEvent("Hel"))
	r.Apply(tokenEvent("lo"))

	items := r.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item while streaming, got %d", len(items))
	}
	if items[0].ID != StreamingID {
		t.Errorf("expected streaming placeholder, got id %s", items[0].ID)
	}
	if items[0].Payload["content"] != "Hello" {
		t.Errorf("expected accumulated Hello, got %v", items[0].Payload["content"])
	}

	r.Apply(event(protocol.KindFinalAnswer, 2, `{"content":"Hello"}`))
	items = r.Items()
	if len(items) != 1 {
		t.Fatalf("expected exactly 1 item after final answer, got %d", len(items))
	}
	if items[0].ID == StreamingID {
		t.Error("placeholder must not survive final answer")
	}
	if items[0].Payload["content"] != "Hello" {
		t.Errorf("expected final content Hello, got %v", items[0].Payload["content"])
	}
	if r.Running() {
		t.Error("final answer must clear the running flag")
	}
}

func TestToolCallClearsStrayStream(t *testing.T) {
	r := NewReducer()
	r.Apply(tokenEvent("thinking..."))
	r.Apply(event(protocol.KindToolCall, 1, `{"tool_call_id":"c1","name":"web_search","arguments":{}}`))

	items := r.Items()
	if len(items) != 1 {
		t.Fatalf("expected only the tool call item, got %d", len(items))
	}
	if items[0].Kind != protocol.KindToolCall {
		t.Errorf("expected tool_call item, got %s", items[0].Kind)
	}

	// A fresh stream after the tool call starts from empty.
	r.Apply(tokenEvent("Hi"))
	items = r.Items()
	if items[len(items)-1].Payload["content"] != "Hi" {
		t.Errorf("accumulator not cleared by tool_call: %v", items[len(items)-1].Payload["content"])
	}
}

func TestErrorTerminatesTurn(t *testing.T) {
	r := NewReducer()
	r.AppendUser("do something", "t")
	if !r.Running() {
		t.Fatal("sending a message should mark the agent running")
	}
	r.Apply(event(protocol.KindError, 1, `{"message":"boom"}`))
	items := r.Items()
	if len(items) != 2 {
		t.Fatalf("expected user + error items, got %d", len(items))
	}
	if r.Running() {
		t.Error("error must clear the running flag")
	}
}

func TestErrorThenResumeKeepsOnePlaceholder(t *testing.T) {
	r := NewReducer()
	r.Apply(tokenEvent("Hel"))
	r.Apply(event(protocol.KindError, 1, `{"message":"boom"}`))

	// The next turn must not inherit the aborted stream.
	r.AppendUser("try again", "t")
	r.Apply(tokenEvent("World"))

	var placeholders int
	for _, item := range r.Items() {
		if item.ID == StreamingID {
			placeholders++
		}
	}
	if placeholders != 1 {
		t.Fatalf("expected exactly 1 streaming placeholder, got %d: %+v", placeholders, r.Items())
	}
	last := r.Items()[len(r.Items())-1]
	if last.ID != StreamingID || last.Payload["content"] != "World" {
		t.Fatalf("placeholder must be last with the fresh stream, got %+v", last)
	}

	r.Apply(event(protocol.KindFinalAnswer, 2, `{"content":"World!"}`))
	for _, item := range r.Items() {
		if item.ID == StreamingID {
			t.Fatalf("placeholder must not survive final answer: %+v", r.Items())
		}
	}
	items := r.Items()
	if len(items) != 3 {
		t.Fatalf("expected error + user + answer items, got %d: %+v", len(items), items)
	}
	if items[2].Payload["content"] != "World!" {
		t.Errorf("expected final content World!, got %v", items[2].Payload["content"])
	}
}

func TestGraphOnlyKindsProduceNoItems(t *testing.T) {
	r := NewReducer()
	for _, kind := range []protocol.EventKind{
		protocol.KindUserInput,
		protocol.KindInitStatus,
		protocol.KindGraphReset,
		protocol.KindNodeEnter,
		protocol.KindNodeExit,
		protocol.KindContextPruned,
		protocol.KindContextCompacted,
		protocol.KindOverflowRecovered,
		protocol.EventKind("mystery"),
	} {
		r.Apply(event(kind, 0, `{}`))
	}
	if got := len(r.Items()); got != 0 {
		t.Errorf("expected no timeline items, got %d", got)
	}
}

func TestToolResultAppended(t *testing.T) {
	r := NewReducer()
	r.Apply(event(protocol.KindToolResult, 2, `{"tool_call_id":"c1","name":"web_search","status":"success","content":"ok"}`))
	items := r.Items()
	if len(items) != 1 || items[0].Kind != protocol.KindToolResult {
		t.Fatalf("expected one tool_result item, got %+v", items)
	}
}

func TestClear(t *testing.T) {
	r := NewReducer()
	r.AppendUser("hi", "t")
	r.Apply(tokenEvent("x"))
	r.Clear()
	if len(r.Items()) != 0 || r.Running() {
		t.Error("clear must drop items and the running flag")
	}
	r.Apply(tokenEvent("y"))
	if r.Items()[0].Payload["content"] != "y" {
		t.Error("accumulator must be empty after clear")
	}
}

func TestIDsAreInstanceScoped(t *testing.T) {
	a := NewReducer()
	b := NewReducer()
	a.AppendUser("one", "t")
	b.AppendUser("uno", "t")
	if a.Items()[0].ID != b.Items()[0].ID {
		t.Error("independent reducers should start their id sequences fresh")
	}
}
