package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aq-cli/aq/internal/message"
)

// TaskUpdateBuilder mutates a single task's status, fields, or blocking
// relationships, the completion of TaskCreate/TaskGet/TaskList's surface.
type TaskUpdateBuilder struct{}

func (TaskUpdateBuilder) Name() string        { return "TaskUpdate" }
func (TaskUpdateBuilder) DisplayName() string { return "Task Update" }
func (TaskUpdateBuilder) Description() string { return "Update a task's status or details." }
func (TaskUpdateBuilder) Kind() Kind          { return KindMutating }

func (TaskUpdateBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"taskId":       map[string]any{"type": "string"},
			"status":       map[string]any{"type": "string", "enum": []string{TodoStatusPending, TodoStatusInProgress, TodoStatusCompleted, TodoStatusDeleted}},
			"subject":      map[string]any{"type": "string"},
			"description":  map[string]any{"type": "string"},
			"activeForm":   map[string]any{"type": "string"},
			"owner":        map[string]any{"type": "string"},
			"metadata":     map[string]any{"type": "object"},
			"addBlocks":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"addBlockedBy": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"taskId"},
	}
}

func (b TaskUpdateBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	taskID, _ := params["taskId"].(string)
	if taskID == "" {
		return nil, &ToolError{Message: "taskId is required"}
	}

	if status, _ := params["status"].(string); status == TodoStatusDeleted {
		return &taskUpdateInvocation{taskID: taskID, delete: true}, nil
	}

	opts, statusChange, err := buildUpdateOptions(params)
	if err != nil {
		return nil, &ToolError{Message: err.Error()}
	}
	if len(opts) == 0 {
		return nil, &ToolError{Message: "no updates specified"}
	}
	return &taskUpdateInvocation{taskID: taskID, opts: opts, statusChange: statusChange}, nil
}

type taskUpdateInvocation struct {
	taskID       string
	delete       bool
	opts         []UpdateOption
	statusChange string
}

func (i *taskUpdateInvocation) Describe() string { return "#" + i.taskID }

func (i *taskUpdateInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *taskUpdateInvocation) Execute(ctx context.Context) message.ToolResult {
	if i.delete {
		if err := DefaultTodoStore.Delete(i.taskID); err != nil {
			return message.ToolResult{Error: err.Error()}
		}
		return message.ToolResult{LLMContent: fmt.Sprintf("Task #%s deleted", i.taskID)}
	}

	if err := DefaultTodoStore.Update(i.taskID, i.opts...); err != nil {
		return message.ToolResult{Error: err.Error()}
	}
	out := fmt.Sprintf("Updated task #%s", i.taskID)
	if i.statusChange != "" {
		out += " -> " + i.statusChange
	}
	return message.ToolResult{LLMContent: out}
}

// buildUpdateOptions extracts update options from params, returning the
// options, a human-readable status change (if any), and an error for an
// invalid status value.
func buildUpdateOptions(params map[string]any) ([]UpdateOption, string, error) {
	var opts []UpdateOption
	var statusChange string

	if status, ok := params["status"].(string); ok && status != "" {
		switch status {
		case TodoStatusPending, TodoStatusInProgress, TodoStatusCompleted:
			opts = append(opts, WithStatus(status))
			statusChange = status
		default:
			return nil, "", fmt.Errorf("invalid status: %s (must be pending, in_progress, completed, or deleted)", status)
		}
	}

	if subject, ok := params["subject"].(string); ok && subject != "" {
		opts = append(opts, WithSubject(subject))
	}
	if description, ok := params["description"].(string); ok && description != "" {
		opts = append(opts, WithDescription(description))
	}
	if activeForm, ok := params["activeForm"].(string); ok && activeForm != "" {
		opts = append(opts, WithActiveForm(activeForm))
	}
	if owner, ok := params["owner"].(string); ok && owner != "" {
		opts = append(opts, WithOwner(owner))
	}
	if metadata, ok := params["metadata"].(map[string]any); ok {
		opts = append(opts, WithMetadata(metadata))
	}
	if ids := parseStringSlice(params["addBlocks"]); len(ids) > 0 {
		opts = append(opts, WithAddBlocks(ids))
	}
	if ids := parseStringSlice(params["addBlockedBy"]); len(ids) > 0 {
		opts = append(opts, WithAddBlockedBy(ids))
	}

	return opts, statusChange, nil
}

// parseStringSlice converts a JSON-decoded value to []string, handling
// both []any (normal array decode) and a raw JSON-array string.
func parseStringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		var result []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case string:
		var result []string
		if err := json.Unmarshal([]byte(val), &result); err == nil {
			return result
		}
		return []string{val}
	}
	return nil
}
