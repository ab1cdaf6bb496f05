// Package stream implements the chat-completion SSE event parser and retry
// policy (C8). It consumes chunk-sized SSE lines from a transport the core
// does not own, and produces the canonical message.StreamEvent sequence the
// agent loop (C9) folds.
package stream

import (
	"encoding/json"
	"strings"

	"github.com/aq-cli/aq/internal/message"
)

// rawChunk mirrors the OpenAI-compatible wire shape described in spec §6:
// choices[0].delta carries content/tool_calls/function_call; usage (with
// prompt_tokens_details.cached_tokens) appears on the final chunk.
type rawChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index int    `json:"index"`
				ID    string `json:"id"`
				Type  string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
			FunctionCall *struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			} `json:"function_call"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
		PromptTokensDetails *struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
}

// toolCallAccumulator gathers fragments for one tool-call slot, indexed by
// the chunk's "index" field. Name and arguments are concatenated across
// fragments; id is overwritten whenever a fragment supplies one (§4.8).
type toolCallAccumulator struct {
	id        string
	name      string
	arguments strings.Builder
}

// Parse consumes SSE "data:" payload lines (prefix already stripped by the
// transport) and emits the typed StreamEvent sequence. It never blocks past
// what lines delivers and never panics on malformed input: malformed JSON
// lines are silently ignored per §4.8.
func Parse(lines <-chan string) <-chan message.StreamEvent {
	out := make(chan message.StreamEvent)
	go func() {
		defer close(out)

		accum := map[int]*toolCallAccumulator{}
		order := []int{}
		sawFinish := false
		sawContent := false

		for line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "[DONE]" {
				break
			}
			var chunk rawChunk
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				continue
			}

			if chunk.Usage != nil {
				u := message.TokensSummary{
					Prompt:     chunk.Usage.PromptTokens,
					Completion: chunk.Usage.CompletionTokens,
					Total:      chunk.Usage.TotalTokens,
				}
				if chunk.Usage.PromptTokensDetails != nil {
					u.Cached = chunk.Usage.PromptTokensDetails.CachedTokens
				}
				out <- message.UsageEvent(u)
			}

			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				sawContent = true
				out <- message.Content(choice.Delta.Content)
			}

			for _, tc := range choice.Delta.ToolCalls {
				acc, ok := accum[tc.Index]
				if !ok {
					acc = &toolCallAccumulator{}
					accum[tc.Index] = acc
					order = append(order, tc.Index)
				}
				if tc.ID != "" {
					acc.id = tc.ID
				}
				if tc.Function.Name != "" {
					acc.name += tc.Function.Name
				}
				acc.arguments.WriteString(tc.Function.Arguments)
			}

			// Legacy single function_call shape is assigned to index 0.
			if fc := choice.Delta.FunctionCall; fc != nil {
				acc, ok := accum[0]
				if !ok {
					acc = &toolCallAccumulator{}
					accum[0] = acc
					order = append(order, 0)
				}
				if fc.Name != "" {
					acc.name += fc.Name
				}
				acc.arguments.WriteString(fc.Arguments)
			}

			if choice.FinishReason != nil {
				sawFinish = true
			}
		}

		for _, idx := range order {
			acc := accum[idx]
			out <- message.ToolCallEvent(message.ToolCallRequest{
				ID:      acc.id,
				Name:    acc.name,
				RawArgs: acc.arguments.String(),
			})
		}

		if !sawFinish && !sawContent && len(order) == 0 {
			out <- message.InvalidStreamEvent()
		}
		out <- message.FinishedEvent()
	}()
	return out
}
