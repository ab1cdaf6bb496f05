package tool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/aq-cli/aq/internal/classifier"
	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/task"
)

// BashBuilder executes shell commands, gated on the command risk
// classifier (C3): Safe commands run without a confirmation prompt, and
// Unknown/Dangerous commands surface a ConfirmExec detail for the
// scheduler's policy gate to act on.
type BashBuilder struct{}

func (BashBuilder) Name() string        { return "Bash" }
func (BashBuilder) DisplayName() string { return "Bash" }
func (BashBuilder) Description() string {
	return "Execute a shell command in the workspace and return its combined stdout/stderr."
}
func (BashBuilder) Kind() Kind { return KindMutating }

func (BashBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "A short human-readable description of what the command does",
			},
			"timeout_ms": map[string]any{
				"type":        "integer",
				"description": "Timeout in milliseconds, capped at 600000. Default 120000.",
			},
			"run_in_background": map[string]any{
				"type":        "boolean",
				"description": "Run the command detached and return immediately with a task id",
			},
		},
		"required": []string{"command"},
	}
}

func (b BashBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	command, _ := params["command"].(string)
	if strings.TrimSpace(command) == "" {
		return nil, &ToolError{Message: "command is required"}
	}
	desc, _ := params["description"].(string)
	background, _ := params["run_in_background"].(bool)
	timeout := 120 * time.Second
	if ms, ok := params["timeout_ms"].(float64); ok && ms > 0 {
		timeout = min(time.Duration(ms)*time.Millisecond, 600*time.Second)
	}
	return &bashInvocation{
		command: command, description: desc,
		background: background, timeout: timeout, cwd: ictx.CWD,
	}, nil
}

type bashInvocation struct {
	command, description string
	background            bool
	timeout               time.Duration
	cwd                   string
}

func (i *bashInvocation) Describe() string {
	if i.description != "" {
		return i.description
	}
	return i.command
}

// MaybeConfirmationDetails returns non-nil for anything the classifier
// doesn't vouch for as Safe. This is a pure read of the risk table; it
// performs no I/O.
func (i *bashInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails {
	if classifier.Classify(i.command) == classifier.Safe {
		return nil
	}
	return &message.ConfirmationDetails{
		Kind:    message.ConfirmExec,
		Title:   "Run shell command",
		Command: i.command,
	}
}

func (i *bashInvocation) Execute(ctx context.Context) message.ToolResult {
	if i.background {
		return i.executeBackground(ctx)
	}

	runCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "bash", "-c", i.command)
	cmd.Dir = i.cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := combineOutput(stdout.String(), stderr.String())

	const maxLen = 30000
	if len(output) > maxLen {
		output = output[:maxLen] + "\n... (output truncated)"
	}

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return message.ToolResult{LLMContent: output, Error: fmt.Sprintf("command timed out after %s", i.timeout)}
		}
		errMsg := err.Error()
		if exitErr, ok := err.(*exec.ExitError); ok {
			errMsg = fmt.Sprintf("exit code %d", exitErr.ExitCode())
		}
		return message.ToolResult{LLMContent: output, Error: errMsg}
	}
	return message.ToolResult{LLMContent: output}
}

func combineOutput(stdout, stderr string) string {
	if stderr == "" {
		return stdout
	}
	if stdout == "" {
		return stderr
	}
	return stdout + "\n" + stderr
}

// executeBackground launches the command detached from the invocation's
// timeout context and returns immediately with a handle; the background
// task registry (adapted from the teacher's task manager) owns its
// lifecycle from here.
func (i *bashInvocation) executeBackground(ctx context.Context) message.ToolResult {
	taskCtx, cancel := context.WithTimeout(context.Background(), i.timeout)
	cmd := exec.CommandContext(taskCtx, "bash", "-c", i.command)
	cmd.Dir = i.cwd
	setBackgroundProcAttrs(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return message.ToolResult{Error: fmt.Sprintf("failed to create stdout pipe: %v", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return message.ToolResult{Error: fmt.Sprintf("failed to create stderr pipe: %v", err)}
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return message.ToolResult{Error: fmt.Sprintf("failed to start command: %v", err)}
	}

	bgTask := task.DefaultManager.Create(cmd, i.command, i.description, taskCtx, cancel)

	go func() {
		defer cancel()
		var stdoutBuf, stderrBuf bytes.Buffer
		done := make(chan struct{}, 2)
		go func() { stdoutBuf.ReadFrom(stdout); done <- struct{}{} }()
		go func() { stderrBuf.ReadFrom(stderr); done <- struct{}{} }()
		<-done
		<-done
		err := cmd.Wait()
		bgTask.AppendOutput([]byte(combineOutput(stdoutBuf.String(), stderrBuf.String())))
		exitCode := 0
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		bgTask.Complete(exitCode, err)
	}()

	return message.ToolResult{
		LLMContent: fmt.Sprintf("Command started in background.\nTask ID: %s\nPID: %d", bgTask.ID, bgTask.PID),
		Data:       map[string]any{"task_id": bgTask.ID},
	}
}
