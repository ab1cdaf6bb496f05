package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/aq-cli/aq/internal/message"
)

// TaskListBuilder lists every non-deleted task in the shared store.
type TaskListBuilder struct{}

func (TaskListBuilder) Name() string        { return "TaskList" }
func (TaskListBuilder) DisplayName() string { return "Task List" }
func (TaskListBuilder) Description() string { return "List all tracked tasks." }
func (TaskListBuilder) Kind() Kind          { return KindReadOnly }

func (TaskListBuilder) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (b TaskListBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	if _, err := ValidateArgs(schema, rawArgs); err != nil {
		return nil, err
	}
	return &taskListInvocation{}, nil
}

type taskListInvocation struct{}

func (i *taskListInvocation) Describe() string { return "list tasks" }

func (i *taskListInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func taskStatusIcon(t *TodoTask) string {
	switch t.Status {
	case TodoStatusCompleted:
		return "x"
	case TodoStatusInProgress:
		return "~"
	default:
		if DefaultTodoStore.IsBlocked(t.ID) {
			return ">"
		}
		return " "
	}
}

func (i *taskListInvocation) Execute(ctx context.Context) message.ToolResult {
	tasks := DefaultTodoStore.List()
	if len(tasks) == 0 {
		return message.ToolResult{LLMContent: "No tasks found."}
	}

	var sb strings.Builder
	completed := 0
	for _, t := range tasks {
		if t.Status == TodoStatusCompleted {
			completed++
		}
		line := fmt.Sprintf("[%s] #%s: %s [%s]", taskStatusIcon(t), t.ID, t.Subject, t.Status)
		if t.Owner != "" {
			line += fmt.Sprintf(" (owner: %s)", t.Owner)
		}
		if open := DefaultTodoStore.OpenBlockers(t.ID); len(open) > 0 {
			line += fmt.Sprintf(" [blocked by: %s]", strings.Join(open, ", "))
		}
		sb.WriteString(line + "\n")
	}
	return message.ToolResult{
		LLMContent: sb.String(),
		Data:       map[string]any{"completed": completed, "total": len(tasks)},
	}
}
