package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/aq-cli/aq/internal/message"
)

const (
	maxResponseSize = 5 * 1024 * 1024
	httpTimeout     = 30 * time.Second
)

// WebFetchBuilder retrieves a URL and, for HTML responses, converts the
// body to Markdown.
type WebFetchBuilder struct{}

func (WebFetchBuilder) Name() string        { return "WebFetch" }
func (WebFetchBuilder) DisplayName() string { return "Web Fetch" }
func (WebFetchBuilder) Description() string { return "Fetch a URL and return its content as Markdown." }
func (WebFetchBuilder) Kind() Kind          { return KindReadOnly }

func (WebFetchBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":    map[string]any{"type": "string"},
			"format": map[string]any{"type": "string", "enum": []string{"markdown", "text"}},
		},
		"required": []string{"url"},
	}
}

func (b WebFetchBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	url, _ := params["url"].(string)
	if url == "" {
		return nil, &ToolError{Message: "url is required"}
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	format, _ := params["format"].(string)
	if format == "" {
		format = "markdown"
	}
	return &webFetchInvocation{url: url, format: format}, nil
}

type webFetchInvocation struct{ url, format string }

func (i *webFetchInvocation) Describe() string { return i.url }

func (i *webFetchInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *webFetchInvocation) Execute(ctx context.Context) message.ToolResult {
	client := &http.Client{Timeout: httpTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.url, nil)
	if err != nil {
		return message.ToolResult{Error: "invalid URL: " + err.Error()}
	}
	req.Header.Set("User-Agent", "aq/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return message.ToolResult{Error: "request failed: " + err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return message.ToolResult{Error: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return message.ToolResult{Error: "failed to read response: " + err.Error()}
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")
	if i.format == "markdown" && strings.Contains(contentType, "text/html") {
		converter := md.NewConverter("", true, nil)
		if markdown, convErr := converter.ConvertString(content); convErr == nil {
			content = markdown
		}
	}

	lines := strings.Split(content, "\n")
	truncated := false
	if len(lines) > maxReadLines {
		lines = lines[:maxReadLines]
		content = strings.Join(lines, "\n")
		truncated = true
	}
	if truncated {
		content += "\n... (truncated)"
	}
	return message.ToolResult{LLMContent: content, Data: map[string]any{"status_code": resp.StatusCode}}
}
