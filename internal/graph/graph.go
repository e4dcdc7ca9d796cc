// internal/graph/graph.go
package graph

import (
	"github.com/user/agentscope/internal/protocol"
)

// NodeKind classifies a node in the execution graph.
type NodeKind string

const (
	NodeUserInput NodeKind = "user_input"
	NodeLLM       NodeKind = "llm"
	NodeTool      NodeKind = "tool"
	NodeAnswer    NodeKind = "answer"
	NodeError     NodeKind = "error"
)

// NodeStatus is the lifecycle state of a node.
type NodeStatus string

const (
	StatusWaiting   NodeStatus = "waiting"
	StatusRunning   NodeStatus = "running"
	StatusCompleted NodeStatus = "completed"
	StatusError     NodeStatus = "error"
)

// Node is one reasoning or tool step. Data accumulates fields from multiple
// events over the node's lifetime (arguments from tool_call, result content
// from tool_result, duration and token usage from node_exit).
type Node struct {
	ID     string
	Kind   NodeKind
	Label  string
	Status NodeStatus
	Step   int
	Turn   int
	Data   map[string]any
}

// Edge records temporal succession only: the target node directly followed
// the source node. Not a data dependency.
type Edge struct {
	ID     string
	Source string
	Target string
}

// DefaultContextLimit is assumed until init_status advertises one.
const DefaultContextLimit = 131072

// Meta is the session header state surfaced by init_status.
type Meta struct {
	Jobs         []protocol.InitJob
	Tools        []protocol.InitTool
	Skills       []protocol.InitSkill
	SystemPrompt string
	ModelName    string
	ContextLimit int
}

const userPreviewLen = 30
