package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/tool/permission"
)

// WriteBuilder overwrites or creates a file with the given content.
type WriteBuilder struct{}

func (WriteBuilder) Name() string        { return "Write" }
func (WriteBuilder) DisplayName() string { return "Write" }
func (WriteBuilder) Description() string {
	return "Create a file or overwrite it entirely with new content."
}
func (WriteBuilder) Kind() Kind { return KindMutating }

func (WriteBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{"type": "string"},
			"content":   map[string]any{"type": "string"},
		},
		"required": []string{"file_path", "content"},
	}
}

func (b WriteBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	filePath, _ := params["file_path"].(string)
	content, ok := params["content"].(string)
	if filePath == "" {
		return nil, &ToolError{Message: "file_path is required"}
	}
	if !ok {
		return nil, &ToolError{Message: "content is required"}
	}
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(ictx.CWD, filePath)
	}
	return &writeInvocation{path: filePath, content: content}, nil
}

type writeInvocation struct {
	path, content string
}

func (i *writeInvocation) Describe() string { return i.path }

func (i *writeInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails {
	_, err := os.Stat(i.path)
	isNew := os.IsNotExist(err)
	diff := ""
	if !isNew {
		if old, readErr := os.ReadFile(i.path); readErr == nil {
			diff = permission.UnifiedDiff(i.path, string(old), i.content)
		}
	}
	return &message.ConfirmationDetails{
		Kind:      message.ConfirmEdit,
		Title:     "Write file",
		FilePath:  i.path,
		Diff:      diff,
		IsNewFile: isNew,
	}
}

func (i *writeInvocation) Execute(ctx context.Context) message.ToolResult {
	if err := os.MkdirAll(filepath.Dir(i.path), 0755); err != nil {
		return message.ToolResult{Error: "failed to create directory: " + err.Error()}
	}
	_, statErr := os.Stat(i.path)
	isNew := os.IsNotExist(statErr)

	if err := os.WriteFile(i.path, []byte(i.content), 0644); err != nil {
		return message.ToolResult{Error: "failed to write file: " + err.Error()}
	}

	action := "Updated"
	if isNew {
		action = "Created"
	}
	lineCount := 1
	for _, c := range i.content {
		if c == '\n' {
			lineCount++
		}
	}
	return message.ToolResult{LLMContent: fmt.Sprintf("%s %s (%d lines)", action, i.path, lineCount)}
}
