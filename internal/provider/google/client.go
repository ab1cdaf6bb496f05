package google

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/aq-cli/aq/internal/log"
	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/provider"
)

// Client implements the LLMProvider interface using the Google GenAI SDK
type Client struct {
	client *genai.Client
	name   string
}

// NewClient creates a new Google client with the given SDK client
func NewClient(client *genai.Client, name string) *Client {
	return &Client{client: client, name: name}
}

// Name returns the provider name
func (c *Client) Name() string { return c.name }

// Stream sends a completion request and translates Gemini's native stream
// into the canonical StreamEvent sequence.
func (c *Client) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan message.StreamEvent, error) {
	out := make(chan message.StreamEvent)

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case message.RoleTool:
			var result map[string]any
			if err := json.Unmarshal([]byte(msg.Content), &result); err != nil {
				result = map[string]any{"result": msg.Content}
			}
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{ID: msg.ToolCallID, Response: result},
				}},
			})
		case message.RoleAssistant:
			parts := make([]*genai.Part, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				if tc.RawArgs != "" {
					_ = json.Unmarshal([]byte(tc.RawArgs), &args)
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		default: // user
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: msg.Content}}})
		}
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if len(req.Tools) > 0 {
		funcDecls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			fd := &genai.FunctionDeclaration{Name: t.Name, Description: t.Description}
			if t.Parameters != nil {
				fd.ParametersJsonSchema = t.Parameters
			}
			funcDecls = append(funcDecls, fd)
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: funcDecls}}
	}

	log.LogRequest(c.name, req.Model, req)

	go func() {
		defer close(out)

		var usage message.TokensSummary
		streamStart := time.Now()
		chunkCount := 0

		for result, err := range c.client.Models.GenerateContentStream(ctx, req.Model, contents, config) {
			if err != nil {
				log.LogError(c.name, err)
				out <- message.ErrorEvent(err.Error())
				out <- message.FinishedEvent()
				return
			}
			chunkCount++

			for _, candidate := range result.Candidates {
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part.Text != "" {
						out <- message.Content(part.Text)
					}
					if part.FunctionCall != nil {
						fc := part.FunctionCall
						argsJSON, _ := json.Marshal(fc.Args)
						out <- message.ToolCallEvent(message.ToolCallRequest{ID: fc.ID, Name: fc.Name, RawArgs: string(argsJSON)})
					}
				}
			}

			if result.UsageMetadata != nil {
				usage.Prompt = int(result.UsageMetadata.PromptTokenCount)
				usage.Completion = int(result.UsageMetadata.CandidatesTokenCount)
				usage.Cached = int(result.UsageMetadata.CachedContentTokenCount)
			}
		}

		log.LogStreamDone(c.name, time.Since(streamStart), chunkCount)

		usage.Total = usage.Prompt + usage.Completion
		out <- message.UsageEvent(usage)
		out <- message.FinishedEvent()
	}()

	return out, nil
}

// ListModels returns the available models for Google using the API
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	models := make([]provider.ModelInfo, 0)

	for m, err := range c.client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}
		name := m.Name
		if !strings.Contains(name, "gemini") {
			continue
		}
		id, _ := strings.CutPrefix(name, "models/")
		if strings.Contains(id, "-exp") || strings.Contains(id, "-latest") {
			continue
		}
		displayName := m.DisplayName
		if displayName == "" {
			displayName = id
		}
		models = append(models, provider.ModelInfo{
			ID: id, Name: displayName, DisplayName: displayName,
			InputTokenLimit: int(m.InputTokenLimit), OutputTokenLimit: int(m.OutputTokenLimit),
		})
	}

	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// NewAPIKeyClient creates a new Google client using API Key authentication
func NewAPIKeyClient(ctx context.Context) (provider.LLMProvider, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return NewClient(client, "google:api_key"), nil
}

// Ensure Client implements LLMProvider
var _ provider.LLMProvider = (*Client)(nil)
