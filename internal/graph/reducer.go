// internal/graph/reducer.go
package graph

import (
	"fmt"

	"github.com/user/agentscope/internal/protocol"
)

// Reducer incrementally reconstructs the directed execution graph plus the
// session-scoped aggregates (token usage, active skill, turn grouping) from
// the event stream. The server never sends explicit "previous node" or
// "current turn" references; both are inferred here from arrival order.
//
// Not safe for concurrent use; the engine drives it from one goroutine.
type Reducer struct {
	nodes []Node
	edges []Edge
	index map[string]int // node id -> position in nodes

	turn        int
	activeID    string // most recently created node; edge source for the next one
	activeSkill string
	usage       protocol.TokenUsage
	meta        Meta

	nodeSeq int
	edgeSeq int
}

// NewReducer creates an empty graph reducer.
func NewReducer() *Reducer {
	return &Reducer{
		index: make(map[string]int),
		meta:  Meta{ContextLimit: DefaultContextLimit},
	}
}

// Apply folds one inbound event into the graph. Events referencing unknown
// node ids and unknown kinds are ignored; prior state is never disturbed.
func (r *Reducer) Apply(ev *protocol.Event) {
	switch ev.Type {
	case protocol.KindInitStatus:
		r.applyInitStatus(ev)
	case protocol.KindGraphReset:
		r.applyGraphReset()
	case protocol.KindUserInput:
		r.applyUserInput(ev)
	case protocol.KindNodeEnter:
		r.applyNodeEnter(ev)
	case protocol.KindNodeExit:
		r.applyNodeExit(ev)
	case protocol.KindToolCall:
		r.applyToolCall(ev)
	case protocol.KindToolResult:
		r.applyToolResult(ev)
	case protocol.KindFinalAnswer:
		r.applyFinalAnswer(ev)
	case protocol.KindContextPruned:
		if d, err := ev.ContextPruned(); err == nil {
			r.patchActiveNode("context_pruned", d)
		}
	case protocol.KindContextCompacted:
		if d, err := ev.ContextCompacted(); err == nil {
			r.patchActiveNode("context_compacted", d)
		}
	case protocol.KindOverflowRecovered:
		if d, err := ev.OverflowRecovered(); err == nil {
			r.patchActiveNode("overflow_recovered", d)
		}
	}
}

// applyInitStatus performs the full session reset and records the header
// metadata. Counters restart so node and edge id sequences are per-session.
func (r *Reducer) applyInitStatus(ev *protocol.Event) {
	d, err := ev.InitStatus()
	if err != nil {
		return
	}
	r.nodes = nil
	r.edges = nil
	r.index = make(map[string]int)
	r.turn = 0
	r.activeID = ""
	r.activeSkill = ""
	r.usage = protocol.TokenUsage{}
	r.nodeSeq = 0
	r.edgeSeq = 0

	r.meta = Meta{
		Jobs:         d.Jobs,
		Tools:        d.Tools,
		Skills:       d.Skills,
		SystemPrompt: d.SystemPrompt,
		ModelName:    d.ModelName,
		ContextLimit: d.ContextLimit,
	}
	if r.meta.ContextLimit == 0 {
		r.meta.ContextLimit = DefaultContextLimit
	}
}

// applyGraphReset starts a new turn: a synthesized user_input node chained
// from whatever was active, so consecutive turns stay visually connected.
func (r *Reducer) applyGraphReset() {
	r.turn++
	r.nodeSeq++
	r.addNode(Node{
		ID:     fmt.Sprintf("user_%d", r.nodeSeq),
		Kind:   NodeUserInput,
		Label:  "User Input",
		Status: StatusCompleted,
		Turn:   r.turn,
		Data:   map[string]any{"turn": r.turn},
	})
}

// applyUserInput correlates the echoed message text with the user_input node
// created by the preceding graph_reset. It never creates a node.
func (r *Reducer) applyUserInput(ev *protocol.Event) {
	d, err := ev.UserInput()
	if err != nil {
		return
	}
	n := len(r.nodes)
	if n == 0 || r.nodes[n-1].Kind != NodeUserInput {
		return
	}
	preview := d.Content
	if runes := []rune(preview); len(runes) > userPreviewLen {
		preview = string(runes[:userPreviewLen]) + "..."
	}
	r.nodes[n-1].Label = "User: " + preview
	r.nodes[n-1].Data["content"] = d.Content
}

func (r *Reducer) applyNodeEnter(ev *protocol.Event) {
	d, err := ev.NodeEnter()
	if err != nil {
		return
	}

	kind := NodeKind(d.NodeType)
	var label string
	switch {
	case kind == NodeLLM:
		label = fmt.Sprintf("LLM Call #%d", d.Step)
	case d.ToolName == protocol.ToolReadSkillDoc:
		kind = NodeTool
		if r.activeSkill != "" {
			label = "Read Skill: " + r.activeSkill
		} else {
			label = "Read Skill Doc"
		}
	case r.activeSkill != "" && protocol.IsSkillExecutor(d.ToolName):
		kind = NodeTool
		executor := "Python"
		if d.ToolName == protocol.ToolShellExecutor {
			executor = "Shell"
		}
		label = fmt.Sprintf("%s -> %s", r.activeSkill, executor)
	default:
		name := d.ToolName
		if name == "" {
			name = "tool"
		}
		label = "Run: " + name
	}

	data := ev.DataMap()
	data["turn"] = r.turn
	if r.activeSkill != "" {
		data["active_skill"] = r.activeSkill
	}
	r.addNode(Node{
		ID:     d.NodeID,
		Kind:   kind,
		Label:  label,
		Status: StatusRunning,
		Step:   d.Step,
		Turn:   r.turn,
		Data:   data,
	})
}

func (r *Reducer) applyNodeExit(ev *protocol.Event) {
	d, err := ev.NodeExit()
	if err != nil {
		return
	}
	i, ok := r.index[d.NodeID]
	if !ok {
		// Slightly out-of-sync server; nothing to do.
		return
	}
	node := &r.nodes[i]
	if d.Status == "error" {
		node.Status = StatusError
	} else {
		node.Status = StatusCompleted
	}
	for k, v := range ev.DataMap() {
		node.Data[k] = v
	}

	switch NodeKind(d.NodeType) {
	case NodeLLM:
		if d.HasToolCalls {
			node.Label = fmt.Sprintf("LLM #%d -> tool_call", d.Step)
		} else {
			node.Label = fmt.Sprintf("LLM #%d -> answer", d.Step)
		}
		if d.TokenUsage != nil {
			r.mergeTokenUsage(d.TokenUsage)
		}
	case NodeTool:
		result := "[OK]"
		if d.Status == "error" {
			result = "[FAIL]"
		}
		node.Label = node.Label + " " + result
	}
}

// mergeTokenUsage applies the asymmetric merge rule: prompt and total are
// cumulative server-side counts and get replaced; completion is a per-call
// increment and accumulates.
func (r *Reducer) mergeTokenUsage(tu *protocol.TokenUsage) {
	if tu.PromptTokens != 0 {
		r.usage.PromptTokens = tu.PromptTokens
	}
	r.usage.CompletionTokens += tu.CompletionTokens
	if tu.TotalTokens != 0 {
		r.usage.TotalTokens = tu.TotalTokens
	}
}

// applyToolCall records the model's decision on the node that made it. The
// event carries no target node id; it resolves against the running node.
func (r *Reducer) applyToolCall(ev *protocol.Event) {
	d, err := ev.ToolCall()
	if err != nil {
		return
	}
	if d.Name == protocol.ToolReadSkillDoc {
		r.activeSkill = d.SkillName()
	}
	node := r.runningNode()
	if node == nil {
		return
	}
	switch node.Kind {
	case NodeLLM:
		node.Data["tool_call_name"] = d.Name
		node.Data["tool_call_args"] = d.Arguments
		node.Data["tool_call_id"] = d.ToolCallID
	case NodeTool:
		node.Data["arguments"] = d.Arguments
		node.Data["tool_call_id"] = d.ToolCallID
	}
}

func (r *Reducer) applyToolResult(ev *protocol.Event) {
	d, err := ev.ToolResult()
	if err != nil {
		return
	}
	node := r.runningNode()
	if node == nil || node.Kind != NodeTool {
		return
	}
	node.Data["result_content"] = d.Content
	node.Data["result_status"] = d.Status
}

// applyFinalAnswer closes the turn: the skill context never carries across
// turns, and the answer node becomes the edge source for the next turn.
func (r *Reducer) applyFinalAnswer(ev *protocol.Event) {
	d, err := ev.FinalAnswer()
	if err != nil {
		return
	}
	r.activeSkill = ""
	r.nodeSeq++
	r.addNode(Node{
		ID:     fmt.Sprintf("answer_%d", r.nodeSeq),
		Kind:   NodeAnswer,
		Label:  "Final Answer",
		Status: StatusCompleted,
		Step:   ev.Step,
		Turn:   r.turn,
		Data:   map[string]any{"content": d.Content, "turn": r.turn},
	})
}

// addNode appends a node, connects it from the previously active node, and
// marks it as the new active node. Exactly one edge per node creation except
// the session's very first node.
func (r *Reducer) addNode(n Node) {
	if r.activeID != "" {
		r.edgeSeq++
		r.edges = append(r.edges, Edge{
			ID:     fmt.Sprintf("e-%d", r.edgeSeq),
			Source: r.activeID,
			Target: n.ID,
		})
	}
	r.index[n.ID] = len(r.nodes)
	r.nodes = append(r.nodes, n)
	r.activeID = n.ID
}

// runningNode resolves the node a target-less event refers to: the active
// node if it is a running llm/tool step. Falls back to a backward scan for
// compatibility with streams where the pointer is stale.
func (r *Reducer) runningNode() *Node {
	if i, ok := r.index[r.activeID]; ok {
		n := &r.nodes[i]
		if n.Status == StatusRunning && (n.Kind == NodeLLM || n.Kind == NodeTool) {
			return n
		}
	}
	for i := len(r.nodes) - 1; i >= 0; i-- {
		n := &r.nodes[i]
		if n.Status == StatusRunning && (n.Kind == NodeLLM || n.Kind == NodeTool) {
			return n
		}
	}
	return nil
}

// patchActiveNode merges a context-management annotation onto the currently
// active node: the first running node scanning backward, or failing that the
// first llm/tool node. Never creates nodes or edges.
func (r *Reducer) patchActiveNode(key string, value any) {
	if i, ok := r.index[r.activeID]; ok && r.nodes[i].Status == StatusRunning {
		r.nodes[i].Data[key] = value
		return
	}
	for i := len(r.nodes) - 1; i >= 0; i-- {
		if r.nodes[i].Status == StatusRunning {
			r.nodes[i].Data[key] = value
			return
		}
	}
	for i := len(r.nodes) - 1; i >= 0; i-- {
		if r.nodes[i].Kind == NodeLLM || r.nodes[i].Kind == NodeTool {
			r.nodes[i].Data[key] = value
			return
		}
	}
}

// Nodes returns a copy of the current node list in creation order.
func (r *Reducer) Nodes() []Node {
	out := make([]Node, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Edges returns a copy of the current edge list in creation order.
func (r *Reducer) Edges() []Edge {
	out := make([]Edge, len(r.edges))
	copy(out, r.edges)
	return out
}

// Turn returns the current turn counter.
func (r *Reducer) Turn() int { return r.turn }

// ActiveSkill returns the skill marker currently in effect, or "".
func (r *Reducer) ActiveSkill() string { return r.activeSkill }

// Usage returns the session token usage aggregate.
func (r *Reducer) Usage() protocol.TokenUsage { return r.usage }

// Meta returns the session header metadata from the last init_status.
func (r *Reducer) Meta() Meta { return r.meta }
