package provider

import (
	"context"

	"github.com/aq-cli/aq/internal/message"
)

// Provider represents a provider name
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
	ProviderMoonshot  Provider = "moonshot"
)

// AuthMethod represents an authentication method
type AuthMethod string

const (
	AuthAPIKey  AuthMethod = "api_key"
	AuthVertex  AuthMethod = "vertex"
	AuthBedrock AuthMethod = "bedrock"
)

// ProviderMeta contains static metadata about a provider
type ProviderMeta struct {
	Provider    Provider
	AuthMethod  AuthMethod
	EnvVars     []string
	DisplayName string
}

// Key returns a unique key for this provider configuration
func (m ProviderMeta) Key() string {
	return string(m.Provider) + ":" + string(m.AuthMethod)
}

// ModelInfo represents information about an available model
type ModelInfo struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	DisplayName      string `json:"displayName,omitempty"`
	InputTokenLimit  int    `json:"inputTokenLimit,omitempty"`
	OutputTokenLimit int    `json:"outputTokenLimit,omitempty"`
}

// ToolSchema is the wire-neutral shape of one tool advertised to a model,
// derived from a registered tool.Builder (C4/C5) at call time.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest is what the agent loop (C9) hands a provider for one
// turn: the full running history plus the turn's available tools.
type CompletionRequest struct {
	Model        string
	Messages     []message.ChatMessage
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	Tools        []ToolSchema
}

// LLMProvider is the interface every backend (anthropic, openai, google,
// moonshot) implements. Stream opens one turn's model call and translates
// the backend's native wire format into the canonical message.StreamEvent
// sequence the agent loop folds (§4.8/§4.9).
type LLMProvider interface {
	Name() string
	Stream(ctx context.Context, req CompletionRequest) (<-chan message.StreamEvent, error)
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// ProviderFactory creates a new LLMProvider instance.
type ProviderFactory func(ctx context.Context) (LLMProvider, error)
