package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/aq-cli/aq/internal/log"
	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/provider"
)

// Client implements the LLMProvider interface using the Anthropic SDK
type Client struct {
	client       anthropic.Client
	name         string
	cachedModels []provider.ModelInfo
}

// NewClient creates a new Anthropic client with the given SDK client
func NewClient(client anthropic.Client, name string) *Client {
	return &Client{
		client: client,
		name:   name,
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return c.name
}

// Stream sends a completion request and translates Anthropic's native SSE
// events directly into the canonical message.StreamEvent sequence.
func (c *Client) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan message.StreamEvent, error) {
	out := make(chan message.StreamEvent)

	anthropicMsgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case message.RoleUser:
			anthropicMsgs = append(anthropicMsgs, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case message.RoleTool:
			anthropicMsgs = append(anthropicMsgs, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		case message.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
				if msg.Content != "" {
					blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
				}
				for _, tc := range msg.ToolCalls {
					var input any
					if tc.RawArgs != "" {
						if err := json.Unmarshal([]byte(tc.RawArgs), &input); err != nil {
							input = tc.RawArgs
						}
					} else {
						input = map[string]any{}
					}
					blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
				}
				anthropicMsgs = append(anthropicMsgs, anthropic.NewAssistantMessage(blocks...))
			} else {
				anthropicMsgs = append(anthropicMsgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  anthropicMsgs,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			inputSchema := anthropic.ToolInputSchemaParam{}
			if properties, ok := t.Parameters["properties"]; ok {
				inputSchema.Properties = properties
			}
			if required, ok := t.Parameters["required"].([]string); ok {
				inputSchema.Required = required
			} else if required, ok := t.Parameters["required"].([]any); ok {
				requiredStrs := make([]string, 0, len(required))
				for _, r := range required {
					if s, ok := r.(string); ok {
						requiredStrs = append(requiredStrs, s)
					}
				}
				inputSchema.Required = requiredStrs
			}
			tools = append(tools, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        t.Name,
					Description: anthropic.String(t.Description),
					InputSchema: inputSchema,
				},
			})
		}
		params.Tools = tools
	}

	log.LogRequest(c.name, req.Model, req)

	go func() {
		defer close(out)

		stream := c.client.Messages.NewStreaming(ctx, params)

		var currentToolID, currentToolName, currentToolInput string
		var usage message.TokensSummary
		streamStart := time.Now()
		chunkCount := 0

		for stream.Next() {
			event := stream.Current()
			chunkCount++

			switch event.Type {
			case "content_block_start":
				block := event.AsContentBlockStart()
				if block.ContentBlock.Type == "tool_use" {
					currentToolID = block.ContentBlock.ID
					currentToolName = block.ContentBlock.Name
					currentToolInput = ""
				}
			case "content_block_delta":
				delta := event.AsContentBlockDelta()
				switch delta.Delta.Type {
				case "text_delta":
					if delta.Delta.Text != "" {
						out <- message.Content(delta.Delta.Text)
					}
				case "thinking_delta":
					if delta.Delta.Thinking != "" {
						out <- message.Thought(delta.Delta.Thinking)
					}
				case "input_json_delta":
					currentToolInput += delta.Delta.PartialJSON
				}
			case "content_block_stop":
				if currentToolID != "" && currentToolName != "" {
					out <- message.ToolCallEvent(message.ToolCallRequest{
						ID: currentToolID, Name: currentToolName, RawArgs: currentToolInput,
					})
					currentToolID, currentToolName, currentToolInput = "", "", ""
				}
			case "message_delta":
				msgDelta := event.AsMessageDelta()
				usage.Completion = int(msgDelta.Usage.OutputTokens)
			case "message_start":
				msgStart := event.AsMessageStart()
				usage.Prompt = int(msgStart.Message.Usage.InputTokens)
				usage.Cached = int(msgStart.Message.Usage.CacheReadInputTokens)
			}
		}

		log.LogStreamDone(c.name, time.Since(streamStart), chunkCount)

		if err := stream.Err(); err != nil {
			log.LogError(c.name, err)
			out <- message.ErrorEvent(err.Error())
			out <- message.FinishedEvent()
			return
		}

		usage.Total = usage.Prompt + usage.Completion
		out <- message.UsageEvent(usage)
		out <- message.FinishedEvent()
	}()

	return out, nil
}

// defaultModels is the fallback static model list
var defaultModels = []provider.ModelInfo{
	{ID: "claude-opus-4-5@20251101", Name: "Claude Opus 4.5", DisplayName: "Claude Opus 4.5 (Most Capable)"},
	{ID: "claude-sonnet-4-5@20250929", Name: "Claude Sonnet 4.5", DisplayName: "Claude Sonnet 4.5 (Balanced)"},
	{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", DisplayName: "Claude Sonnet 4"},
	{ID: "claude-haiku-3-5@20241022", Name: "Claude Haiku 3.5", DisplayName: "Claude Haiku 3.5 (Fast)"},
}

// ListModels returns available models using the Anthropic Models API,
// falling back to a static list if the API call fails.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	if len(c.cachedModels) > 0 {
		return c.cachedModels, nil
	}

	models, err := c.fetchModels(ctx)
	if err != nil {
		c.cachedModels = defaultModels
		return c.cachedModels, nil
	}
	c.cachedModels = models
	return c.cachedModels, nil
}

// fetchModels fetches available models from the Anthropic Models API
func (c *Client) fetchModels(ctx context.Context) ([]provider.ModelInfo, error) {
	pager := c.client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})

	var models []provider.ModelInfo
	for pager.Next() {
		m := pager.Current()
		models = append(models, provider.ModelInfo{
			ID:          m.ID,
			Name:        m.DisplayName,
			DisplayName: m.DisplayName,
		})
	}
	if err := pager.Err(); err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("no models returned from API")
	}
	return models, nil
}

// Ensure Client implements LLMProvider
var _ provider.LLMProvider = (*Client)(nil)
