package openai

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"

	"github.com/aq-cli/aq/internal/log"
	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/provider"
)

// Client implements the LLMProvider interface using the OpenAI SDK's Chat
// Completions streaming, translated to the canonical StreamEvent sequence.
type Client struct {
	client openai.Client
	name   string
}

// NewClient creates a new OpenAI client with the given SDK client
func NewClient(client openai.Client, name string) *Client {
	return &Client{client: client, name: name}
}

// Name returns the provider name
func (c *Client) Name() string {
	return c.name
}

// Stream sends a completion request via Chat Completions streaming.
func (c *Client) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan message.StreamEvent, error) {
	out := make(chan message.StreamEvent)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case message.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case message.RoleTool:
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		case message.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				var asstMsg openai.ChatCompletionAssistantMessageParam
				if msg.Content != "" {
					asstMsg.Content.OfString = openai.Opt(msg.Content)
				}
				asstMsg.ToolCalls = make([]openai.ChatCompletionMessageToolCallUnionParam, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					asstMsg.ToolCalls[i] = openai.ChatCompletionMessageToolCallUnionParam{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID: tc.ID,
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      tc.Name,
								Arguments: tc.RawArgs,
							},
						},
					}
				}
				messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &asstMsg})
			} else {
				messages = append(messages, openai.AssistantMessage(msg.Content))
			}
		}
	}

	params := openai.ChatCompletionNewParams{Model: req.Model, Messages: messages}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolUnionParam{
				OfFunction: &openai.ChatCompletionFunctionToolParam{
					Function: openai.FunctionDefinitionParam{
						Name:        t.Name,
						Description: openai.String(t.Description),
						Parameters:  openai.FunctionParameters(t.Parameters),
					},
				},
			})
		}
		params.Tools = tools
	}

	log.LogRequest(c.name, req.Model, req)

	go func() {
		defer close(out)

		stream := c.client.Chat.Completions.NewStreaming(ctx, params)

		type accumulator struct {
			id, name string
			args     strings.Builder
		}
		toolCalls := map[int]*accumulator{}
		order := []int{}
		var usage message.TokensSummary

		streamStart := time.Now()
		chunkCount := 0

		for stream.Next() {
			chunk := stream.Current()
			chunkCount++

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					out <- message.Content(choice.Delta.Content)
				}
				for _, tc := range choice.Delta.ToolCalls {
					idx := int(tc.Index)
					acc, ok := toolCalls[idx]
					if !ok {
						acc = &accumulator{}
						toolCalls[idx] = acc
						order = append(order, idx)
					}
					if tc.ID != "" {
						acc.id = tc.ID
					}
					if tc.Function.Name != "" {
						acc.name += tc.Function.Name
					}
					acc.args.WriteString(tc.Function.Arguments)
				}
			}

			if chunk.Usage.PromptTokens > 0 {
				usage.Prompt = int(chunk.Usage.PromptTokens)
			}
			if chunk.Usage.CompletionTokens > 0 {
				usage.Completion = int(chunk.Usage.CompletionTokens)
			}
			if chunk.Usage.PromptTokensDetails.CachedTokens > 0 {
				usage.Cached = int(chunk.Usage.PromptTokensDetails.CachedTokens)
			}
		}

		log.LogStreamDone(c.name, time.Since(streamStart), chunkCount)

		if err := stream.Err(); err != nil {
			log.LogError(c.name, err)
			out <- message.ErrorEvent(err.Error())
			out <- message.FinishedEvent()
			return
		}

		for _, idx := range order {
			acc := toolCalls[idx]
			out <- message.ToolCallEvent(message.ToolCallRequest{ID: acc.id, Name: acc.name, RawArgs: acc.args.String()})
		}

		usage.Total = usage.Prompt + usage.Completion
		out <- message.UsageEvent(usage)
		out <- message.FinishedEvent()
	}()

	return out, nil
}

// ListModels returns the available models for OpenAI using the API
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, err
	}

	models := make([]provider.ModelInfo, 0)
	for _, m := range page.Data {
		id := m.ID
		if strings.HasPrefix(id, "dall-e") ||
			strings.HasPrefix(id, "tts-") ||
			strings.HasPrefix(id, "whisper-") ||
			strings.HasPrefix(id, "text-embedding") ||
			strings.HasPrefix(id, "omni-moderation") ||
			strings.HasPrefix(id, "davinci") ||
			strings.HasPrefix(id, "babbage") ||
			strings.HasPrefix(id, "sora") ||
			strings.HasPrefix(id, "gpt-image") ||
			strings.Contains(id, "-tts") ||
			strings.Contains(id, "-transcribe") ||
			strings.Contains(id, "-realtime") ||
			strings.Contains(id, "computer-use") ||
			strings.HasSuffix(id, "-instruct") {
			continue
		}
		models = append(models, provider.ModelInfo{ID: id, Name: id, DisplayName: id})
	}

	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// Ensure Client implements LLMProvider
var _ provider.LLMProvider = (*Client)(nil)
