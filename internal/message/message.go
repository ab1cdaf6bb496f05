// Package message defines the canonical chat message and tool-call types
// shared by every other package. Everything downstream (the agent loop,
// the scheduler, the compression service, the stream parser) speaks this
// vocabulary so none of them need to import each other.
package message

import "fmt"

// Role is the speaker of a ChatMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCallRequest is a single tool invocation requested by the model.
// Ids are opaque and compared by equality only.
type ToolCallRequest struct {
	ID        string
	Name      string
	RawArgs   string // raw, possibly-incomplete-until-stream-end JSON
}

// ChatMessage is one turn in the conversation. Content is nullable for a
// tool-only assistant message (ToolCalls set, Content empty). A tool
// message's ToolCallID must match exactly one prior assistant ToolCalls
// entry in the same message sequence (data-model invariant, §3).
type ChatMessage struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCallRequest // assistant only
	ToolCallID string            // tool only
}

// NewSystem builds a system message.
func NewSystem(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// NewUser builds a user message.
func NewUser(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// NewAssistant builds an assistant message carrying content and/or tool calls.
func NewAssistant(content string, calls []ToolCallRequest) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolResult builds a tool-role message correlated to a call id.
func NewToolResult(callID, content string) ChatMessage {
	return ChatMessage{Role: RoleTool, Content: content, ToolCallID: callID}
}

// ToolResult is what a tool invocation produced. Error set means failure;
// Data carries structured side-channel fields (e.g. planMode toggles).
type ToolResult struct {
	LLMContent string
	Error      string
	Data       map[string]any
}

// IsError reports whether the result represents a failure.
func (r ToolResult) IsError() bool { return r.Error != "" }

// ToMessage renders the result as the tool-role ChatMessage the model
// sees, per §4.9 step 7: Success -> llm-content, Error -> "Error: ...".
func (r ToolResult) ToMessage(callID string) ChatMessage {
	if r.IsError() {
		return NewToolResult(callID, "Error: "+r.Error)
	}
	return NewToolResult(callID, r.LLMContent)
}

// TokensSummary accumulates token counters additively across turns.
type TokensSummary struct {
	Prompt     int
	Completion int
	Cached     int
	Total      int
}

// Add merges another summary's counts into this one (additive, never negative).
func (t *TokensSummary) Add(o TokensSummary) {
	t.Prompt += o.Prompt
	t.Completion += o.Completion
	t.Cached += o.Cached
	t.Total += o.Total
}

// String renders a short human-readable usage line.
func (t TokensSummary) String() string {
	return fmt.Sprintf("prompt=%d completion=%d cached=%d total=%d",
		t.Prompt, t.Completion, t.Cached, t.Total)
}

// ValidateToolCallLinkage checks invariant §8.1: every tool-role message's
// ToolCallID matches exactly one assistant tool call earlier in the same
// sequence, and does so exactly once.
func ValidateToolCallLinkage(msgs []ChatMessage) error {
	seen := map[string]bool{}
	matched := map[string]bool{}
	for _, m := range msgs {
		if m.Role == RoleAssistant {
			for _, tc := range m.ToolCalls {
				if seen[tc.ID] {
					return fmt.Errorf("duplicate tool call id %q", tc.ID)
				}
				seen[tc.ID] = true
			}
		}
		if m.Role == RoleTool {
			if !seen[m.ToolCallID] {
				return fmt.Errorf("tool result %q has no matching tool call", m.ToolCallID)
			}
			if matched[m.ToolCallID] {
				return fmt.Errorf("tool call id %q answered more than once", m.ToolCallID)
			}
			matched[m.ToolCallID] = true
		}
	}
	return nil
}
