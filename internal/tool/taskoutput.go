package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/task"
)

// TaskOutputBuilder retrieves output and status for a background task,
// optionally blocking until it finishes or a timeout elapses.
type TaskOutputBuilder struct{}

func (TaskOutputBuilder) Name() string        { return "TaskOutput" }
func (TaskOutputBuilder) DisplayName() string { return "Task Output" }
func (TaskOutputBuilder) Description() string { return "Retrieve output from a background task." }
func (TaskOutputBuilder) Kind() Kind          { return KindReadOnly }

func (TaskOutputBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{"type": "string"},
			"block":   map[string]any{"type": "boolean", "description": "Wait for completion. Default true."},
			"timeout": map[string]any{"type": "number", "description": "Max wait in ms when blocking. Default 30000, capped at 600000."},
		},
		"required": []string{"task_id"},
	}
}

func (b TaskOutputBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	id, _ := params["task_id"].(string)
	if id == "" {
		return nil, &ToolError{Message: "task_id is required"}
	}
	block := true
	if v, ok := params["block"].(bool); ok {
		block = v
	}
	timeout := 30 * time.Second
	if ms, ok := asInt(params["timeout"]); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
		if timeout > 600*time.Second {
			timeout = 600 * time.Second
		}
	}
	return &taskOutputInvocation{taskID: id, block: block, timeout: timeout}, nil
}

type taskOutputInvocation struct {
	taskID  string
	block   bool
	timeout time.Duration
}

func (i *taskOutputInvocation) Describe() string { return i.taskID }

func (i *taskOutputInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *taskOutputInvocation) Execute(ctx context.Context) message.ToolResult {
	bgTask, found := task.DefaultManager.Get(i.taskID)
	if !found {
		return message.ToolResult{Error: "task not found: " + i.taskID}
	}

	if i.block && bgTask.IsRunning() {
		if !bgTask.WaitForCompletion(i.timeout) {
			info := bgTask.GetStatus()
			return message.ToolResult{
				LLMContent: info.Output,
				Error:      fmt.Sprintf("timeout waiting for task (still running, PID: %d)", info.PID),
			}
		}
	}

	info := bgTask.GetStatus()
	var statusStr string
	switch info.Status {
	case task.StatusRunning:
		statusStr = "running"
	case task.StatusCompleted:
		statusStr = "completed"
	case task.StatusFailed:
		statusStr = fmt.Sprintf("failed (exit code: %d)", info.ExitCode)
	case task.StatusKilled:
		statusStr = "killed"
	default:
		statusStr = string(info.Status)
	}

	out := fmt.Sprintf("Task ID: %s\nStatus: %s\nPID: %d\n", info.ID, statusStr, info.PID)
	if info.Command != "" {
		out += fmt.Sprintf("Command: %s\n", info.Command)
	}
	if !info.EndTime.IsZero() {
		out += fmt.Sprintf("Duration: %v\n", info.EndTime.Sub(info.StartTime))
	}
	if info.Output != "" {
		out += fmt.Sprintf("\nOutput:\n%s", info.Output)
	}
	if info.Error != "" {
		out += fmt.Sprintf("\nError: %s", info.Error)
	}
	return message.ToolResult{LLMContent: out, Data: map[string]any{"status": statusStr}}
}
