package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/aq-cli/aq/internal/message"
)

// TaskGetBuilder retrieves a single task's full details by id.
type TaskGetBuilder struct{}

func (TaskGetBuilder) Name() string        { return "TaskGet" }
func (TaskGetBuilder) DisplayName() string { return "Task Get" }
func (TaskGetBuilder) Description() string { return "Retrieve task details by ID." }
func (TaskGetBuilder) Kind() Kind          { return KindReadOnly }

func (TaskGetBuilder) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"taskId": map[string]any{"type": "string"}},
		"required":   []string{"taskId"},
	}
}

func (b TaskGetBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	id, _ := params["taskId"].(string)
	if id == "" {
		return nil, &ToolError{Message: "taskId is required"}
	}
	return &taskGetInvocation{taskID: id}, nil
}

type taskGetInvocation struct{ taskID string }

func (i *taskGetInvocation) Describe() string { return "#" + i.taskID }

func (i *taskGetInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *taskGetInvocation) Execute(ctx context.Context) message.ToolResult {
	t, ok := DefaultTodoStore.Get(i.taskID)
	if !ok {
		return message.ToolResult{Error: fmt.Sprintf("task %s not found", i.taskID)}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Task #%s: %s\n", t.ID, t.Subject)
	fmt.Fprintf(&sb, "Status: %s\n", t.Status)
	if t.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", t.Description)
	}
	if t.ActiveForm != "" {
		fmt.Fprintf(&sb, "Active form: %s\n", t.ActiveForm)
	}
	if t.Owner != "" {
		fmt.Fprintf(&sb, "Owner: %s\n", t.Owner)
	}
	if len(t.Blocks) > 0 {
		fmt.Fprintf(&sb, "Blocks: %s\n", strings.Join(t.Blocks, ", "))
	}
	if open := DefaultTodoStore.OpenBlockers(t.ID); len(open) > 0 {
		fmt.Fprintf(&sb, "Blocked by (open): %s\n", strings.Join(open, ", "))
	}
	return message.ToolResult{LLMContent: sb.String()}
}
