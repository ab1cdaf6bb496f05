package tool

import (
	"context"
	"fmt"

	"github.com/aq-cli/aq/internal/message"
)

// TaskCreateBuilder adds a single task to the shared task-list store.
type TaskCreateBuilder struct{}

func (TaskCreateBuilder) Name() string        { return "TaskCreate" }
func (TaskCreateBuilder) DisplayName() string { return "Task Create" }
func (TaskCreateBuilder) Description() string { return "Create a task to track progress." }
func (TaskCreateBuilder) Kind() Kind          { return KindMutating }

func (TaskCreateBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject":     map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"activeForm":  map[string]any{"type": "string"},
			"metadata":    map[string]any{"type": "object"},
		},
		"required": []string{"subject", "description"},
	}
}

func (b TaskCreateBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	subject, _ := params["subject"].(string)
	if subject == "" {
		return nil, &ToolError{Message: "subject is required"}
	}
	description, _ := params["description"].(string)
	if description == "" {
		return nil, &ToolError{Message: "description is required"}
	}
	activeForm, _ := params["activeForm"].(string)
	metadata, _ := params["metadata"].(map[string]any)
	return &taskCreateInvocation{subject: subject, description: description, activeForm: activeForm, metadata: metadata}, nil
}

type taskCreateInvocation struct {
	subject, description, activeForm string
	metadata                         map[string]any
}

func (i *taskCreateInvocation) Describe() string { return i.subject }

func (i *taskCreateInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *taskCreateInvocation) Execute(ctx context.Context) message.ToolResult {
	t := DefaultTodoStore.Create(i.subject, i.description, i.activeForm, i.metadata)
	return message.ToolResult{
		LLMContent: fmt.Sprintf("Task #%s created: %s", t.ID, t.Subject),
		Data:       map[string]any{"task_id": t.ID},
	}
}
