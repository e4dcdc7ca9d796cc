// internal/usage/estimator_test.go
package usage

import (
	"testing"

	"github.com/user/agentscope/internal/protocol"
)

func TestBudgetFraction(t *testing.T) {
	b := Budget{DraftTokens: 100, SessionTokens: 900, ContextLimit: 2000}
	if got := b.Fraction(); got != 0.5 {
		t.Errorf("expected 0.5, got %f", got)
	}

	b = Budget{DraftTokens: 3000, SessionTokens: 0, ContextLimit: 2000}
	if got := b.Fraction(); got != 1 {
		t.Errorf("fraction should clamp at 1, got %f", got)
	}

	b = Budget{DraftTokens: 10, ContextLimit: 0}
	if got := b.Fraction(); got != 0 {
		t.Errorf("zero limit should report 0, got %f", got)
	}
}

func TestEstimatorCount(t *testing.T) {
	e, err := New("gpt-4")
	if err != nil {
		// Tokenizer data may be unavailable offline.
		t.Skipf("tokenizer unavailable: %v", err)
	}
	if got := e.Count(""); got != 0 {
		t.Errorf("empty draft should be 0 tokens, got %d", got)
	}
	if got := e.Count("hello world"); got == 0 {
		t.Error("non-empty draft should count tokens")
	}

	b := e.Assess("hello", protocol.TokenUsage{TotalTokens: 50}, 1000)
	if b.SessionTokens != 50 || b.ContextLimit != 1000 {
		t.Errorf("assess did not carry fields: %+v", b)
	}
}
