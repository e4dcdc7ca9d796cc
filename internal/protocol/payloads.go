// internal/protocol/payloads.go
package protocol

import (
	"encoding/json"
	"fmt"
)

// Per-kind payload shapes. Every inbound kind has exactly one of these;
// decodeAs is the single place an envelope turns into a typed payload.

type UserInputData struct {
	Content string `json:"content"`
}

type LLMTokenData struct {
	Token string `json:"token"`
}

type ToolCallData struct {
	ToolCallID string         `json:"tool_call_id"`
	Name       string         `json:"name"`
	Arguments  map[string]any `json:"arguments"`
}

// SkillName extracts the skill_name argument from a read_skill_doc call.
func (d *ToolCallData) SkillName() string {
	if s, ok := d.Arguments["skill_name"].(string); ok {
		return s
	}
	return ""
}

type ToolResultData struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Content    string `json:"content"`
}

type FinalAnswerData struct {
	Content string `json:"content"`
}

type ErrorData struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type InitJob struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type InitTool struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type InitSkill struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type InitStatusData struct {
	Jobs         []InitJob   `json:"jobs"`
	Tools        []InitTool  `json:"tools"`
	Skills       []InitSkill `json:"skills,omitempty"`
	SystemPrompt string      `json:"system_prompt,omitempty"`
	ModelName    string      `json:"model_name,omitempty"`
	ContextLimit int         `json:"context_limit,omitempty"`
}

type NodeEnterData struct {
	NodeType         string `json:"node_type"`
	NodeID           string `json:"node_id"`
	Step             int    `json:"step"`
	ToolName         string `json:"tool_name,omitempty"`
	MessagesSnapshot int    `json:"messages_snapshot,omitempty"`
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type NodeExitData struct {
	NodeType     string      `json:"node_type"`
	NodeID       string      `json:"node_id"`
	Step         int         `json:"step"`
	HasToolCalls bool        `json:"has_tool_calls,omitempty"`
	Status       string      `json:"status,omitempty"`
	DurationMS   float64     `json:"duration_ms"`
	TokenUsage   *TokenUsage `json:"token_usage,omitempty"`
}

type ContextPrunedData struct {
	BeforeTokens      int `json:"before_tokens"`
	AfterTokens       int `json:"after_tokens"`
	DroppedMessages   int `json:"dropped_messages"`
	TruncatedMessages int `json:"truncated_messages,omitempty"`
}

type ContextCompactedData struct {
	BeforeTokens   int `json:"before_tokens"`
	AfterTokens    int `json:"after_tokens"`
	SummaryChars   int `json:"summary_chars"`
	CompactedTurns int `json:"compacted_turns,omitempty"`
}

type OverflowRecoveredData struct {
	RetryCount int    `json:"retry_count"`
	Success    bool   `json:"success"`
	Reason     string `json:"reason"`
}

func decodeAs[T any](e *Event, want EventKind) (*T, error) {
	if e.Type != want {
		return nil, fmt.Errorf("decode %s: event is %s", want, e.Type)
	}
	var out T
	if err := json.Unmarshal(e.Data, &out); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", want, err)
	}
	return &out, nil
}

func (e *Event) UserInput() (*UserInputData, error) { return decodeAs[UserInputData](e, KindUserInput) }
func (e *Event) LLMToken() (*LLMTokenData, error)   { return decodeAs[LLMTokenData](e, KindLLMToken) }
func (e *Event) ToolCall() (*ToolCallData, error)   { return decodeAs[ToolCallData](e, KindToolCall) }
func (e *Event) ToolResult() (*ToolResultData, error) {
	return decodeAs[ToolResultData](e, KindToolResult)
}
func (e *Event) FinalAnswer() (*FinalAnswerData, error) {
	return decodeAs[FinalAnswerData](e, KindFinalAnswer)
}
func (e *Event) Error() (*ErrorData, error) { return decodeAs[ErrorData](e, KindError) }
func (e *Event) InitStatus() (*InitStatusData, error) {
	return decodeAs[InitStatusData](e, KindInitStatus)
}
func (e *Event) NodeEnter() (*NodeEnterData, error) { return decodeAs[NodeEnterData](e, KindNodeEnter) }
func (e *Event) NodeExit() (*NodeExitData, error)   { return decodeAs[NodeExitData](e, KindNodeExit) }
func (e *Event) ContextPruned() (*ContextPrunedData, error) {
	return decodeAs[ContextPrunedData](e, KindContextPruned)
}
func (e *Event) ContextCompacted() (*ContextCompactedData, error) {
	return decodeAs[ContextCompactedData](e, KindContextCompacted)
}
func (e *Event) OverflowRecovered() (*OverflowRecoveredData, error) {
	return decodeAs[OverflowRecoveredData](e, KindOverflowRecovered)
}

// EncodeUserInput builds the outbound user_input frame.
func EncodeUserInput(content string) ([]byte, error) {
	frame := struct {
		Type EventKind     `json:"type"`
		Data UserInputData `json:"data"`
	}{Type: KindUserInput, Data: UserInputData{Content: content}}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode user_input: %w", err)
	}
	return data, nil
}
