package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordInteractionIncrementsCounters(t *testing.T) {
	before := testutil.ToFloat64(InteractionsCompleted.WithLabelValues("no_output"))
	RecordInteraction("no_output", 1.5, 3)
	after := testutil.ToFloat64(InteractionsCompleted.WithLabelValues("no_output"))
	if after != before+1 {
		t.Errorf("expected InteractionsCompleted to increment by 1, got %v -> %v", before, after)
	}
}

func TestRecordLLMRequestTracksTokensOnlyWhenPositive(t *testing.T) {
	beforePrompt := testutil.ToFloat64(LLMTokensUsed.WithLabelValues("anthropic", "prompt"))
	RecordLLMRequest("anthropic", "ok", 0.2, 0, 0)
	afterPrompt := testutil.ToFloat64(LLMTokensUsed.WithLabelValues("anthropic", "prompt"))
	if afterPrompt != beforePrompt {
		t.Errorf("expected no token increment for zero tokens, got %v -> %v", beforePrompt, afterPrompt)
	}

	RecordLLMRequest("anthropic", "ok", 0.2, 120, 45)
	afterNonZero := testutil.ToFloat64(LLMTokensUsed.WithLabelValues("anthropic", "prompt"))
	if afterNonZero != afterPrompt+120 {
		t.Errorf("expected prompt tokens to accumulate by 120, got %v -> %v", afterPrompt, afterNonZero)
	}
}

func TestRecordInterpreterRun(t *testing.T) {
	before := testutil.ToFloat64(InterpreterRunsTotal.WithLabelValues("ok"))
	RecordInterpreterRun("ok", 0.05)
	after := testutil.ToFloat64(InterpreterRunsTotal.WithLabelValues("ok"))
	if after != before+1 {
		t.Errorf("expected InterpreterRunsTotal to increment by 1, got %v -> %v", before, after)
	}
}
