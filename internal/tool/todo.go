package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aq-cli/aq/internal/message"
)

// TodoWriteBuilder takes the whole todo list in one call, checks each
// entry, and returns a per-status count with the list itself in
// Data["todos"]. It does not read or write DefaultTodoStore, the store that
// TaskCreate/TaskUpdate edit.
type TodoWriteBuilder struct{}

func (TodoWriteBuilder) Name() string        { return "TodoWrite" }
func (TodoWriteBuilder) DisplayName() string { return "Todo Write" }
func (TodoWriteBuilder) Description() string {
	return "Create and manage a structured task list. Use this to track progress on multi-step tasks."
}
func (TodoWriteBuilder) Kind() Kind { return KindMutating }

func (TodoWriteBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"todos": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"content":    map[string]any{"type": "string"},
						"status":     map[string]any{"type": "string", "enum": []string{"pending", "in_progress", "completed"}},
						"activeForm": map[string]any{"type": "string"},
					},
					"required": []string{"content", "status", "activeForm"},
				},
			},
		},
		"required": []string{"todos"},
	}
}

func (b TodoWriteBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	todosRaw, ok := params["todos"]
	if !ok {
		return nil, &ToolError{Message: "missing required parameter: todos"}
	}
	todosJSON, err := json.Marshal(todosRaw)
	if err != nil {
		return nil, &ToolError{Message: "invalid todos format: " + err.Error()}
	}
	var todos []TodoItem
	if err := json.Unmarshal(todosJSON, &todos); err != nil {
		return nil, &ToolError{Message: "failed to parse todos: " + err.Error()}
	}
	for i, t := range todos {
		if t.Content == "" {
			return nil, &ToolError{Message: fmt.Sprintf("todo[%d]: content is required", i)}
		}
		if t.Status != "pending" && t.Status != "in_progress" && t.Status != "completed" {
			return nil, &ToolError{Message: fmt.Sprintf("todo[%d]: invalid status %q", i, t.Status)}
		}
		if t.ActiveForm == "" {
			return nil, &ToolError{Message: fmt.Sprintf("todo[%d]: activeForm is required", i)}
		}
	}
	return &todoWriteInvocation{todos: todos}, nil
}

// TodoItem is the wire shape the model sends for a single todo entry.
type TodoItem struct {
	Content    string `json:"content"`
	Status     string `json:"status"`
	ActiveForm string `json:"activeForm"`
}

type todoWriteInvocation struct{ todos []TodoItem }

func (i *todoWriteInvocation) Describe() string { return fmt.Sprintf("%d todos", len(i.todos)) }

func (i *todoWriteInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *todoWriteInvocation) Execute(ctx context.Context) message.ToolResult {
	pending, inProgress, completed := 0, 0, 0
	for _, t := range i.todos {
		switch t.Status {
		case "pending":
			pending++
		case "in_progress":
			inProgress++
		case "completed":
			completed++
		}
	}
	return message.ToolResult{
		LLMContent: fmt.Sprintf("Todo list updated: %d pending, %d in progress, %d completed", pending, inProgress, completed),
		Data:       map[string]any{"todos": i.todos},
	}
}
