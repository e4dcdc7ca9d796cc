// internal/timeline/timeline.go
package timeline

import (
	"fmt"

	"github.com/user/agentscope/internal/protocol"
)

// StreamingID is the sentinel id of the single mutable item holding
// in-progress generated text before finalization.
const StreamingID = "__streaming__"

// Item is one entry in the user-facing chat log.
type Item struct {
	ID        string
	Kind      protocol.EventKind
	Step      int
	Timestamp string
	Payload   map[string]any
}

// Reducer folds the event stream into a linear chat timeline. Every
// mutation is append-or-replace-the-one-placeholder, so a malformed or
// unrecognized event can never corrupt the log.
//
// Not safe for concurrent use; the engine drives it from one goroutine.
type Reducer struct {
	items     []Item
	streaming string // accumulated token text
	running   bool
	nextID    int
}

// NewReducer creates an empty timeline reducer.
func NewReducer() *Reducer {
	return &Reducer{}
}

func (r *Reducer) newID() string {
	r.nextID++
	return fmt.Sprintf("msg-%d", r.nextID)
}

// AppendUser optimistically appends the user's own message before the server
// echoes anything. The echo itself is graph-only and never re-appended. Any
// stale placeholder from an aborted turn is dropped first.
func (r *Reducer) AppendUser(content, timestamp string) {
	r.streaming = ""
	r.removePlaceholder()
	r.items = append(r.items, Item{
		ID:        r.newID(),
		Kind:      protocol.KindUserInput,
		Timestamp: timestamp,
		Payload:   map[string]any{"content": content},
	})
	r.running = true
}

// Apply folds one inbound event into the timeline.
func (r *Reducer) Apply(ev *protocol.Event) {
	switch ev.Type {
	case protocol.KindLLMToken:
		d, err := ev.LLMToken()
		if err != nil {
			return
		}
		r.streaming += d.Token
		r.setPlaceholder(ev, r.streaming)

	case protocol.KindFinalAnswer:
		r.streaming = ""
		r.removePlaceholder()
		r.items = append(r.items, Item{
			ID:        r.newID(),
			Kind:      ev.Type,
			Step:      ev.Step,
			Timestamp: ev.Timestamp,
			Payload:   ev.DataMap(),
		})
		r.running = false

	case protocol.KindToolCall:
		// Guards against stray partial text when the model emits tokens
		// then calls a tool without a trailing answer event.
		r.streaming = ""
		r.removePlaceholder()
		r.items = append(r.items, Item{
			ID:        r.newID(),
			Kind:      ev.Type,
			Step:      ev.Step,
			Timestamp: ev.Timestamp,
			Payload:   ev.DataMap(),
		})

	case protocol.KindToolResult:
		r.items = append(r.items, Item{
			ID:        r.newID(),
			Kind:      ev.Type,
			Step:      ev.Step,
			Timestamp: ev.Timestamp,
			Payload:   ev.DataMap(),
		})

	case protocol.KindError:
		r.items = append(r.items, Item{
			ID:        r.newID(),
			Kind:      ev.Type,
			Step:      ev.Step,
			Timestamp: ev.Timestamp,
			Payload:   ev.DataMap(),
		})
		r.running = false

	default:
		// user_input echo, init_status, graph_reset, node_enter,
		// node_exit, context management, unknown kinds: graph-only or
		// ignored.
	}
}

// setPlaceholder writes the full accumulated content into the streaming
// placeholder. The placeholder may sit anywhere in the list if other items
// arrived after it; it is pulled out and re-appended so it is always last
// and there is never more than one.
func (r *Reducer) setPlaceholder(ev *protocol.Event, content string) {
	r.removePlaceholder()
	r.items = append(r.items, Item{
		ID:        StreamingID,
		Kind:      protocol.KindFinalAnswer,
		Step:      ev.Step,
		Timestamp: ev.Timestamp,
		Payload:   map[string]any{"content": content},
	})
}

// removePlaceholder drops the streaming placeholder wherever it sits.
func (r *Reducer) removePlaceholder() {
	for i, item := range r.items {
		if item.ID == StreamingID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return
		}
	}
}

// Clear drops all items and the streaming accumulator. The running flag is
// also reset; used by the "new conversation" action.
func (r *Reducer) Clear() {
	r.items = nil
	r.streaming = ""
	r.running = false
}

// SetRunning overrides the agent-running flag (the transport layer drops it
// on disconnect since a dead connection ends the turn for the client).
func (r *Reducer) SetRunning(v bool) {
	r.running = v
}

// Running reports whether the agent is mid-turn from the client's view.
func (r *Reducer) Running() bool {
	return r.running
}

// Items returns a copy of the current timeline.
func (r *Reducer) Items() []Item {
	out := make([]Item, len(r.items))
	copy(out, r.items)
	return out
}
