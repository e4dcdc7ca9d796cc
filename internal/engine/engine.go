// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/user/agentscope/internal/graph"
	"github.com/user/agentscope/internal/journal"
	"github.com/user/agentscope/internal/protocol"
	"github.com/user/agentscope/internal/timeline"
	"github.com/user/agentscope/internal/transport"
)

// ErrNotConnected is returned when a message is sent while the stream is
// down. Callers gate on Status and surface this to the user.
var ErrNotConnected = errors.New("not connected")

// EventSource is the transport surface the engine needs. Satisfied by
// *transport.Session; tests substitute a fake.
type EventSource interface {
	Connect()
	Send(content string)
	Reset()
	Close()
	Status() transport.Status
	Handle(fn transport.Handler)
	OnStatus(fn func(transport.Status))
}

// Engine drives both reducers from one event stream. One inbound event is
// fully processed by both reducers before the next is handled: the dispatch
// loop is the only writer, so the reducers themselves need no locking. The
// engine's mutex exists solely to let presentation goroutines take snapshots.
type Engine struct {
	source   EventSource
	recorder *journal.Recorder

	mu       sync.Mutex
	timeline *timeline.Reducer
	graph    *graph.Reducer
	status   transport.Status

	events  chan *protocol.Event
	updates chan struct{}
	done    chan struct{}
}

// New creates an engine on the given source. recorder may be nil.
func New(source EventSource, recorder *journal.Recorder) *Engine {
	e := &Engine{
		source:   source,
		recorder: recorder,
		timeline: timeline.NewReducer(),
		graph:    graph.NewReducer(),
		status:   transport.StatusDisconnected,
		events:   make(chan *protocol.Event, 256),
		updates:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	source.Handle(e.enqueue)
	source.OnStatus(e.onStatus)
	return e
}

// Start connects the source and runs the dispatch loop until ctx is done.
func (e *Engine) Start(ctx context.Context) {
	e.source.Connect()
	go e.loop(ctx)
}

func (e *Engine) enqueue(ev *protocol.Event) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *Engine) onStatus(st transport.Status) {
	e.mu.Lock()
	e.status = st
	if st == transport.StatusDisconnected {
		// A dead connection ends the turn from the client's view.
		e.timeline.SetRunning(false)
	}
	e.mu.Unlock()
	e.signal()
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case ev := <-e.events:
			e.apply(ev)
		case <-ctx.Done():
			e.source.Close()
			if e.recorder != nil {
				e.recorder.Close()
			}
			return
		}
	}
}

// apply runs one event through both reducers, then records it.
func (e *Engine) apply(ev *protocol.Event) {
	e.mu.Lock()
	e.timeline.Apply(ev)
	e.graph.Apply(ev)
	e.mu.Unlock()

	if e.recorder != nil {
		if err := e.recorder.Append(ev); err != nil {
			slog.Warn("capture append failed", "error", err)
		}
	}
	e.signal()
}

// signal coalesces change notifications for the presentation layer.
func (e *Engine) signal() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}

// Updates delivers a (coalesced) tick after every state change.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

// SendMessage appends the user's message optimistically and puts it on the
// wire. The server's own echo is graph-only, so no duplicate appears.
func (e *Engine) SendMessage(content string) error {
	e.mu.Lock()
	if e.status != transport.StatusConnected {
		e.mu.Unlock()
		return ErrNotConnected
	}
	e.timeline.AppendUser(content, time.Now().UTC().Format(time.RFC3339))
	e.mu.Unlock()

	e.source.Send(content)
	e.signal()
	return nil
}

// NewConversation clears the timeline and tears the transport down; graph
// state is invalidated by the fresh session's init_status.
func (e *Engine) NewConversation() {
	e.mu.Lock()
	e.timeline.Clear()
	e.mu.Unlock()

	e.source.Reset()
	e.signal()
}

// Status returns the connection status as last observed by the engine.
func (e *Engine) Status() transport.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Timeline returns a snapshot of the chat log.
func (e *Engine) Timeline() []timeline.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeline.Items()
}

// Running reports whether the agent is mid-turn.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeline.Running()
}

// Graph returns node and edge snapshots.
func (e *Engine) Graph() ([]graph.Node, []graph.Edge) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Nodes(), e.graph.Edges()
}

// Meta returns the session header metadata.
func (e *Engine) Meta() graph.Meta {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Meta()
}

// Usage returns the session token usage aggregate.
func (e *Engine) Usage() protocol.TokenUsage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Usage()
}

// ActiveSkill returns the graph reducer's current skill marker.
func (e *Engine) ActiveSkill() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.ActiveSkill()
}

// Turn returns the graph reducer's current turn counter.
func (e *Engine) Turn() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Turn()
}

// Replay feeds captured entries through the reducers in recorded order.
// The engine must not be started; the stream stays untouched.
func (e *Engine) Replay(entries []journal.Entry) {
	for _, entry := range entries {
		if entry.Event == nil {
			continue
		}
		e.mu.Lock()
		e.timeline.Apply(entry.Event)
		e.graph.Apply(entry.Event)
		e.mu.Unlock()
	}
}
