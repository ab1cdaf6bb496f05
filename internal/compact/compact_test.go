package compact

import (
	"strings"
	"testing"

	"github.com/aq-cli/aq/internal/message"
)

func buildHistory(n int) []message.ChatMessage {
	msgs := []message.ChatMessage{message.NewSystem("sys")}
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			msgs = append(msgs, message.NewUser(strings.Repeat("hello world ", 50)))
		} else {
			msgs = append(msgs, message.NewAssistant(strings.Repeat("ack ", 50), nil))
		}
	}
	return msgs
}

func TestShouldTrigger(t *testing.T) {
	msgs := buildHistory(40)
	if ShouldTrigger(70_000, msgs, 128_000) != true {
		t.Fatalf("expected trigger at 70000/128000 with 41 messages")
	}
	if ShouldTrigger(1000, msgs, 128_000) {
		t.Fatalf("expected no trigger well below threshold")
	}
	if ShouldTrigger(70_000, buildHistory(5), 128_000) {
		t.Fatalf("expected no trigger with <=10 messages")
	}
}

func TestSplitIndex_NeverBeforeSystem(t *testing.T) {
	msgs := buildHistory(2)
	idx := splitIndex(msgs)
	if idx == 0 {
		t.Fatalf("split index must never be 0 (the system message)")
	}
}

func TestRun_CompressedWhenSummaryShrinksHistory(t *testing.T) {
	msgs := buildHistory(40)
	original := EstimateMessages(msgs)

	result := Run(msgs, func(rendered string) (string, error) {
		return "a short but sufficiently long synthetic summary of everything that happened before, well past fifty characters", nil
	})

	if result.Status != Compressed {
		t.Fatalf("expected Compressed, got %v", result.Status)
	}
	if result.NewEst >= original {
		t.Fatalf("compressed estimate %d must be < original %d", result.NewEst, original)
	}
	if result.Messages[0].Role != message.RoleSystem {
		t.Fatalf("rebuilt history must keep the system message first")
	}
}

func TestRun_FailedEmptyOnShortSummary(t *testing.T) {
	msgs := buildHistory(40)
	result := Run(msgs, func(rendered string) (string, error) { return "too short", nil })
	if result.Status != FailedEmpty {
		t.Fatalf("expected FailedEmpty, got %v", result.Status)
	}
	if EstimateMessages(result.Messages) != EstimateMessages(msgs) {
		t.Fatalf("failed compression must return original messages unchanged")
	}
}

func TestRun_FailedInflatedRevertsToOriginal(t *testing.T) {
	msgs := buildHistory(12)
	hugeSummary := strings.Repeat("x", 10_000)
	result := Run(msgs, func(rendered string) (string, error) { return hugeSummary, nil })
	if result.Status != FailedInflated {
		t.Fatalf("expected FailedInflated, got %v", result.Status)
	}
	if len(result.Messages) != len(msgs) {
		t.Fatalf("FailedInflated must return the original message list")
	}
}

func TestEstimateTokens_NonASCIICostsMore(t *testing.T) {
	ascii := EstimateTokens(strings.Repeat("a", 100))
	nonASCII := EstimateTokens(strings.Repeat("中", 100))
	if nonASCII <= ascii {
		t.Fatalf("expected non-ASCII estimate > ASCII estimate, got %v vs %v", nonASCII, ascii)
	}
}
