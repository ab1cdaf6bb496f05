package log

import (
	"context"
	"fmt"
	"strings"

	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/provider"
)

// agentTrackerKey is the context key for AgentTurnTracker
type agentTrackerKey struct{}

// WithAgentTracker returns a context with the agent tracker attached
func WithAgentTracker(ctx context.Context, tracker *AgentTurnTracker) context.Context {
	return context.WithValue(ctx, agentTrackerKey{}, tracker)
}

// GetAgentTracker retrieves the agent tracker from context, or nil if not present
func GetAgentTracker(ctx context.Context) *AgentTurnTracker {
	if tracker, ok := ctx.Value(agentTrackerKey{}).(*AgentTurnTracker); ok {
		return tracker
	}
	return nil
}

// LogRequestCtx logs an LLM request with context (supports agent tracking)
func LogRequestCtx(ctx context.Context, providerName, model string, req provider.CompletionRequest) {
	tracker := GetAgentTracker(ctx)
	var turn int
	var prefix string

	if tracker != nil {
		turn = tracker.NextTurn()
		prefix = tracker.GetTurnPrefix(turn)
		WriteAgentDevRequest(tracker, providerName, model, req, turn)
	} else {
		turn = NextTurn()
		prefix = GetTurnPrefix(turn)
		WriteDevRequest(providerName, model, req, turn)
	}

	if !enabled {
		return
	}
	logger.Info(renderRequest(prefix, providerName, model, req))
}

// LogRequest logs an LLM request in human-readable format (main loop only)
func LogRequest(providerName, model string, req provider.CompletionRequest) {
	turn := NextTurn()
	WriteDevRequest(providerName, model, req, turn)

	if !enabled {
		return
	}
	logger.Info(renderRequest(fmt.Sprintf("Turn %d", turn), providerName, model, req))
}

func renderRequest(prefix, providerName, model string, req provider.CompletionRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "───────────────────────────────────────── %s ─────────────────────────────────────────\n", prefix)
	fmt.Fprintf(&sb, ">>> [%s] %s | max_tokens=%d temp=%.1f\n", providerName, model, req.MaxTokens, req.Temperature)

	if req.SystemPrompt != "" {
		fmt.Fprintf(&sb, "    System: %s\n", escapeForLog(req.SystemPrompt))
	}
	if len(req.Tools) > 0 {
		names := make([]string, len(req.Tools))
		for i, t := range req.Tools {
			names[i] = t.Name
		}
		fmt.Fprintf(&sb, "    Tools(%d): [%s]\n", len(req.Tools), strings.Join(names, ", "))
	}

	fmt.Fprintf(&sb, "    Messages(%d):\n", len(req.Messages))
	for i, msg := range req.Messages {
		switch msg.Role {
		case message.RoleUser:
			fmt.Fprintf(&sb, "      [%d] User: %s\n", i, escapeForLog(msg.Content))
		case message.RoleTool:
			fmt.Fprintf(&sb, "      [%d] ToolResult[%s]: %s\n", i, msg.ToolCallID, escapeForLog(msg.Content))
		case message.RoleAssistant:
			if msg.Content != "" {
				fmt.Fprintf(&sb, "      [%d] Assistant: %s\n", i, escapeForLog(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				fmt.Fprintf(&sb, "      [%d] ToolCall: %s(%s)\n", i, tc.Name, escapeForLog(tc.RawArgs))
			}
		}
	}
	return sb.String()
}
