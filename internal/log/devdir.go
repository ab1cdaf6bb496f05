package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/provider"
)

// DevRequest represents the request data saved to JSON file
type DevRequest struct {
	Turn         int                        `json:"turn"`
	Timestamp    time.Time                  `json:"timestamp"`
	Provider     string                     `json:"provider"`
	Model        string                     `json:"model"`
	MaxTokens    int                        `json:"max_tokens"`
	Temperature  float64                    `json:"temperature"`
	SystemPrompt string                     `json:"system_prompt,omitempty"`
	Tools        []provider.ToolSchema      `json:"tools,omitempty"`
	Messages     []message.ChatMessage      `json:"messages"`
}

// DevResponse represents the response data saved to JSON file
type DevResponse struct {
	Turn      int                       `json:"turn"`
	Timestamp time.Time                 `json:"timestamp"`
	Provider  string                    `json:"provider"`
	Content   string                    `json:"content,omitempty"`
	ToolCalls []message.ToolCallRequest `json:"tool_calls,omitempty"`
	Usage     message.TokensSummary     `json:"usage"`
}

// WriteDevRequest writes request data to JSON file in DEV_DIR
func WriteDevRequest(providerName, model string, req provider.CompletionRequest, turn int) {
	if !devEnabled {
		return
	}
	writeJSON(filepath.Join(devDir, fmt.Sprintf("turn-%03d-request.json", turn)), devRequestFrom(providerName, model, req, turn))
}

// WriteDevResponse writes response data to JSON file in DEV_DIR
func WriteDevResponse(providerName string, outcome TurnOutcome, turn int) {
	if !devEnabled {
		return
	}
	writeJSON(filepath.Join(devDir, fmt.Sprintf("turn-%03d-response.json", turn)), devResponseFrom(providerName, outcome, turn))
}

// WriteAgentDevRequest writes a nested agent's request under a
// tracker-prefixed filename so parallel sub-agent runs don't collide.
func WriteAgentDevRequest(tracker *AgentTurnTracker, providerName, model string, req provider.CompletionRequest, turn int) {
	if !devEnabled {
		return
	}
	name := devFilenameSafe(tracker.GetTurnPrefix(turn))
	writeJSON(filepath.Join(devDir, name+"-request.json"), devRequestFrom(providerName, model, req, turn))
}

// WriteAgentDevResponse is WriteAgentDevRequest's response-side counterpart.
func WriteAgentDevResponse(tracker *AgentTurnTracker, providerName string, outcome TurnOutcome, turn int) {
	if !devEnabled {
		return
	}
	name := devFilenameSafe(tracker.GetTurnPrefix(turn))
	writeJSON(filepath.Join(devDir, name+"-response.json"), devResponseFrom(providerName, outcome, turn))
}

func devRequestFrom(providerName, model string, req provider.CompletionRequest, turn int) DevRequest {
	return DevRequest{
		Turn:         turn,
		Timestamp:    time.Now().UTC(),
		Provider:     providerName,
		Model:        model,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
		SystemPrompt: req.SystemPrompt,
		Tools:        req.Tools,
		Messages:     req.Messages,
	}
}

func devResponseFrom(providerName string, outcome TurnOutcome, turn int) DevResponse {
	return DevResponse{
		Turn:      turn,
		Timestamp: time.Now().UTC(),
		Provider:  providerName,
		Content:   outcome.Content,
		ToolCalls: outcome.ToolCalls,
		Usage:     outcome.Usage,
	}
}

// devFilenameSafe replaces characters a turn prefix may carry (":") that
// are awkward in filenames.
func devFilenameSafe(prefix string) string {
	return strings.ReplaceAll(prefix, ":", "_")
}

func writeJSON(filename string, data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filename, jsonData, 0644)
}
