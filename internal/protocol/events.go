// internal/protocol/events.go
package protocol

import (
	"encoding/json"
	"fmt"
)

// EventKind identifies one of the agent server's stream event types.
// The set is closed; frames carrying anything else are ignored upstream.
type EventKind string

const (
	KindUserInput         EventKind = "user_input"
	KindLLMToken          EventKind = "llm_token"
	KindToolCall          EventKind = "tool_call"
	KindToolResult        EventKind = "tool_result"
	KindFinalAnswer       EventKind = "final_answer"
	KindError             EventKind = "error"
	KindInitStatus        EventKind = "init_status"
	KindGraphReset        EventKind = "graph_reset"
	KindNodeEnter         EventKind = "node_enter"
	KindNodeExit          EventKind = "node_exit"
	KindContextPruned     EventKind = "context_pruned"
	KindContextCompacted  EventKind = "context_compacted"
	KindOverflowRecovered EventKind = "overflow_recovered"
)

// Known reports whether k is a member of the closed event-kind set.
func (k EventKind) Known() bool {
	switch k {
	case KindUserInput, KindLLMToken, KindToolCall, KindToolResult,
		KindFinalAnswer, KindError, KindInitStatus, KindGraphReset,
		KindNodeEnter, KindNodeExit, KindContextPruned,
		KindContextCompacted, KindOverflowRecovered:
		return true
	}
	return false
}

// Event is the envelope for every frame crossing the stream boundary.
// Data stays raw until a reducer asks for the kind-specific payload.
type Event struct {
	Type      EventKind       `json:"type"`
	Step      int             `json:"step"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// DataMap returns the payload as a generic map for merge-style consumers.
// A missing or malformed payload yields an empty map.
func (e *Event) DataMap() map[string]any {
	m := make(map[string]any)
	if len(e.Data) > 0 {
		_ = json.Unmarshal(e.Data, &m)
	}
	return m
}

// Decode parses a single inbound frame. Unknown kinds are returned as-is so
// callers can decide whether to drop them; only malformed JSON is an error.
func Decode(frame []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("decode event: missing type")
	}
	return &ev, nil
}

// Well-known tool names the graph reducer keys behavior on.
const (
	ToolReadSkillDoc   = "read_skill_doc"
	ToolPythonExecutor = "python_executor"
	ToolShellExecutor  = "shell_executor"
)

// IsSkillExecutor reports whether name is one of the two tools that run
// skill workflows once a skill document has been read.
func IsSkillExecutor(name string) bool {
	return name == ToolPythonExecutor || name == ToolShellExecutor
}
