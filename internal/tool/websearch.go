package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/provider/search"
)

// WebSearchBuilder queries the configured search provider (Brave, Exa,
// Serper — see internal/provider/search) and renders results as Markdown.
type WebSearchBuilder struct{}

func (WebSearchBuilder) Name() string        { return "WebSearch" }
func (WebSearchBuilder) DisplayName() string { return "Web Search" }
func (WebSearchBuilder) Description() string { return "Search the web for up-to-date information." }
func (WebSearchBuilder) Kind() Kind          { return KindReadOnly }

func (WebSearchBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":           map[string]any{"type": "string"},
			"num_results":     map[string]any{"type": "integer"},
			"allowed_domains": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"blocked_domains": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"query"},
	}
}

func (b WebSearchBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	query, _ := params["query"].(string)
	if query == "" {
		return nil, &ToolError{Message: "query is required"}
	}
	numResults := 10
	if n, ok := asInt(params["num_results"]); ok && n > 0 {
		numResults = n
	}
	return &webSearchInvocation{
		query: query, numResults: numResults,
		allowed: stringSlice(params["allowed_domains"]), blocked: stringSlice(params["blocked_domains"]),
	}, nil
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

type webSearchInvocation struct {
	query              string
	numResults         int
	allowed, blocked   []string
}

func (i *webSearchInvocation) Describe() string { return i.query }

func (i *webSearchInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *webSearchInvocation) Execute(ctx context.Context) message.ToolResult {
	results, err := search.GetDefaultProvider().Search(ctx, i.query, search.SearchOptions{
		NumResults:     i.numResults,
		AllowedDomains: i.allowed,
		BlockedDomains: i.blocked,
		Timeout:        30 * time.Second,
	})
	if err != nil {
		return message.ToolResult{Error: fmt.Sprintf("search failed: %v", err)}
	}

	var sb strings.Builder
	if len(results) == 0 {
		sb.WriteString("No results found for: " + i.query)
	} else {
		fmt.Fprintf(&sb, "Found %d results for: %s\n\n", len(results), i.query)
		for _, r := range results {
			fmt.Fprintf(&sb, "- [%s](%s)\n", r.Title, r.URL)
			if r.Snippet != "" {
				fmt.Fprintf(&sb, "  %s\n\n", r.Snippet)
			}
		}
	}
	return message.ToolResult{LLMContent: sb.String(), Data: map[string]any{"result_count": len(results)}}
}
