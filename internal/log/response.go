package log

import (
	"context"
	"fmt"
	"strings"

	"github.com/aq-cli/aq/internal/message"
)

// TurnOutcome summarizes one provider turn for logging: the folded
// content/tool-calls plus usage, independent of any one backend's native
// response shape.
type TurnOutcome struct {
	Content   string
	ToolCalls []message.ToolCallRequest
	Usage     message.TokensSummary
}

// LogResponseCtx logs an LLM response with context (supports agent tracking)
func LogResponseCtx(ctx context.Context, providerName string, outcome TurnOutcome) {
	tracker := GetAgentTracker(ctx)
	var turn int
	var prefix string

	if tracker != nil {
		turn = tracker.CurrentTurn()
		prefix = tracker.GetTurnPrefix(turn)
		WriteAgentDevResponse(tracker, providerName, outcome, turn)
	} else {
		turn = CurrentTurn()
		prefix = GetTurnPrefix(turn)
		WriteDevResponse(providerName, outcome, turn)
	}

	if !enabled {
		return
	}
	logger.Info(renderResponse(prefix, providerName, outcome))
}

// LogResponse logs an LLM response in human-readable format (main loop only)
func LogResponse(providerName string, outcome TurnOutcome) {
	turn := CurrentTurn()
	WriteDevResponse(providerName, outcome, turn)

	if !enabled {
		return
	}
	logger.Info(renderResponse(fmt.Sprintf("Turn %d", turn), providerName, outcome))
}

func renderResponse(prefix, providerName string, outcome TurnOutcome) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<<< [%s] %s | %s\n", prefix, providerName, outcome.Usage.String())

	if outcome.Content != "" {
		sb.WriteString("    Content:\n")
		for _, line := range strings.Split(outcome.Content, "\n") {
			fmt.Fprintf(&sb, "        %s\n", line)
		}
	}
	if len(outcome.ToolCalls) > 0 {
		fmt.Fprintf(&sb, "    ToolCalls(%d):\n", len(outcome.ToolCalls))
		for _, tc := range outcome.ToolCalls {
			fmt.Fprintf(&sb, "      [%s] %s(%s)\n", tc.ID, tc.Name, escapeForLog(tc.RawArgs))
		}
	}
	return sb.String()
}

// LogError logs an error in human-readable format
func LogError(context string, err error) {
	if !enabled {
		return
	}
	logger.Error(fmt.Sprintf("!!! ERROR [%s] %v\n", context, err))
}
