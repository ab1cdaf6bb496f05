// Package moonshot implements the LLMProvider interface for the Moonshot AI
// platform. Its wire format is the OpenAI-compatible chat-completions SSE
// shape, so this backend exercises the stream package's parser and retry
// policy (C8) directly over net/http rather than going through an SDK.
package moonshot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/aq-cli/aq/internal/log"
	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/provider"
	"github.com/aq-cli/aq/internal/stream"
)

// Client speaks Moonshot's OpenAI-compatible API over plain HTTP.
type Client struct {
	baseURL string
	apiKey  string
	name    string
	http    *http.Client
}

// NewClient builds a Moonshot client against baseURL using apiKey.
func NewClient(baseURL, apiKey, name string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, name: name, http: http.DefaultClient}
}

// Name returns the provider name.
func (c *Client) Name() string { return c.name }

type wireMessage struct {
	Role             string `json:"role"`
	Content          string `json:"content,omitempty"`
	ToolCallID       string `json:"tool_call_id,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
	ToolCalls        []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function wireToolCallFn  `json:"function"`
}

type wireToolCallFn struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type wireRequest struct {
	Model       string         `json:"model"`
	Messages    []wireMessage  `json:"messages"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
	Tools       []wireTool     `json:"tools,omitempty"`
	Stream      bool           `json:"stream"`
	Thinking    map[string]any `json:"thinking,omitempty"`
}

// Stream opens a chat-completions SSE request and folds it through the
// shared C8 parser and retry policy.
func (c *Client) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan message.StreamEvent, error) {
	body, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}

	log.LogRequest(c.name, req.Model, req)

	opener := func(ctx context.Context) (<-chan string, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			return nil, &stream.TransientError{StatusCode: resp.StatusCode, Err: fmt.Errorf("moonshot: %s: %s", resp.Status, string(b))}
		}

		lines := make(chan string)
		go func() {
			defer close(lines)
			defer resp.Body.Close()
			scanner := bufio.NewScanner(resp.Body)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Text()
				data, ok := strings.CutPrefix(line, "data:")
				if !ok {
					continue
				}
				select {
				case lines <- strings.TrimSpace(data):
				case <-ctx.Done():
					return
				}
			}
		}()
		return lines, nil
	}

	return stream.WithRetry(ctx, opener), nil
}

func (c *Client) buildRequest(req provider.CompletionRequest) ([]byte, error) {
	messages := make([]wireMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, wireMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case message.RoleUser:
			messages = append(messages, wireMessage{Role: "user", Content: msg.Content})
		case message.RoleTool:
			messages = append(messages, wireMessage{Role: "tool", Content: msg.Content, ToolCallID: msg.ToolCallID})
		case message.RoleAssistant:
			wm := wireMessage{Role: "assistant", Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
					ID: tc.ID, Type: "function",
					Function: wireToolCallFn{Name: tc.Name, Arguments: tc.RawArgs},
				})
			}
			messages = append(messages, wm)
		}
	}

	wreq := wireRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
		Thinking:    map[string]any{"type": "enabled"},
	}
	for _, t := range req.Tools {
		wreq.Tools = append(wreq.Tools, wireTool{
			Type:     "function",
			Function: wireFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	return json.Marshal(wreq)
}

// staticModels is the fallback list when the models API is unavailable.
var staticModels = []provider.ModelInfo{
	{ID: "moonshot-v1-auto", Name: "moonshot-v1-auto", DisplayName: "Moonshot V1 Auto"},
	{ID: "moonshot-v1-128k", Name: "moonshot-v1-128k", DisplayName: "Moonshot V1 128K"},
	{ID: "kimi-k2-0711-preview", Name: "kimi-k2-0711-preview", DisplayName: "Kimi K2 0711 Preview"},
	{ID: "kimi-k2-0905-preview", Name: "kimi-k2-0905-preview", DisplayName: "Kimi K2 0905 Preview"},
}

// ListModels returns the available models for Moonshot AI using the API.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return staticModels, nil
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return staticModels, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return staticModels, nil
	}

	var page struct {
		Data []struct {
			ID            string `json:"id"`
			ContextLength int    `json:"context_length"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil || len(page.Data) == 0 {
		return staticModels, nil
	}

	models := make([]provider.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, provider.ModelInfo{ID: m.ID, Name: m.ID, DisplayName: m.ID, InputTokenLimit: m.ContextLength})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// Ensure Client implements LLMProvider
var _ provider.LLMProvider = (*Client)(nil)
