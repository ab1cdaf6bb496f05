package tool

import (
	"context"
	"fmt"

	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/task"
)

// KillShellBuilder terminates a running background task started by Bash's
// run_in_background mode.
type KillShellBuilder struct{}

func (KillShellBuilder) Name() string        { return "KillShell" }
func (KillShellBuilder) DisplayName() string { return "Kill Shell" }
func (KillShellBuilder) Description() string { return "Terminate a running background task by its id." }
func (KillShellBuilder) Kind() Kind          { return KindMutating }

func (KillShellBuilder) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"task_id": map[string]any{"type": "string"}},
		"required":   []string{"task_id"},
	}
}

func (b KillShellBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	id, _ := params["task_id"].(string)
	if id == "" {
		return nil, &ToolError{Message: "task_id is required"}
	}
	return &killShellInvocation{taskID: id}, nil
}

type killShellInvocation struct{ taskID string }

func (i *killShellInvocation) Describe() string { return "kill " + i.taskID }

// MaybeConfirmationDetails returns nil: killing a task this agent started
// is not a destructive action against the user's workspace state.
func (i *killShellInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *killShellInvocation) Execute(ctx context.Context) message.ToolResult {
	bgTask, found := task.DefaultManager.Get(i.taskID)
	if !found {
		return message.ToolResult{Error: "task not found: " + i.taskID}
	}
	if !bgTask.IsRunning() {
		info := bgTask.GetStatus()
		return message.ToolResult{Error: fmt.Sprintf("task already completed with status: %s", info.Status)}
	}

	if err := task.DefaultManager.Kill(i.taskID); err != nil {
		return message.ToolResult{Error: fmt.Sprintf("failed to kill task: %v", err)}
	}

	final := bgTask.GetStatus()
	out := fmt.Sprintf("Task killed.\nTask ID: %s\nStatus: %s", i.taskID, final.Status)
	if final.Output != "" {
		out += fmt.Sprintf("\n\nOutput before kill:\n%s", final.Output)
	}
	return message.ToolResult{LLMContent: out}
}
