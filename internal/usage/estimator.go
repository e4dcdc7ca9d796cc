// internal/usage/estimator.go
package usage

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/agentscope/internal/protocol"
)

// Estimator gives a local token estimate for draft messages so the
// composer can show budget pressure before anything hits the wire. The
// server reports authoritative usage after each LLM call; this only covers
// the outbound side.
type Estimator struct {
	tokenizer *tiktoken.Tiktoken
}

// New creates an estimator for the given model name. Unknown models fall
// back to cl100k_base.
func New(model string) (*Estimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Estimator{tokenizer: enc}, nil
}

// Count returns the token count for a draft message.
func (e *Estimator) Count(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

// Budget describes how a draft plus the session's reported usage sit
// against the advertised context limit.
type Budget struct {
	DraftTokens   int
	SessionTokens int
	ContextLimit  int
}

// Assess combines a draft with the session usage aggregate.
func (e *Estimator) Assess(draft string, u protocol.TokenUsage, contextLimit int) Budget {
	return Budget{
		DraftTokens:   e.Count(draft),
		SessionTokens: u.TotalTokens,
		ContextLimit:  contextLimit,
	}
}

// Fraction returns occupancy of the context window in [0, 1].
func (b Budget) Fraction() float64 {
	if b.ContextLimit <= 0 {
		return 0
	}
	f := float64(b.SessionTokens+b.DraftTokens) / float64(b.ContextLimit)
	if f > 1 {
		return 1
	}
	return f
}
