package tool

import (
	"context"
	"fmt"

	"github.com/aq-cli/aq/internal/message"
)

// AgentExecutor decouples the Task tool from the agent loop package.
type AgentExecutor interface {
	Run(ctx context.Context, req AgentExecRequest) (*AgentExecResult, error)
	RunBackground(req AgentExecRequest) (AgentTaskInfo, error)
	GetAgentConfig(agentType string) (AgentConfigInfo, bool)
	GetParentModelID() string
}

type AgentExecRequest struct {
	Agent       string
	Prompt      string
	Description string
	Background  bool
	ResumeID    string
	Model       string
	MaxTurns    int
	Cwd         string
}

type AgentExecResult struct {
	AgentName   string
	Success     bool
	Content     string
	TurnCount   int
	TotalTokens int
	Error       string
}

type AgentTaskInfo struct {
	TaskID    string
	AgentName string
}

type AgentConfigInfo struct {
	Name           string
	Description    string
	PermissionMode string
	Tools          []string
}

// agentExecutor is installed once by cmd/aq at startup, mirroring how
// task.DefaultManager is a package-level singleton shared across tools.
var agentExecutor AgentExecutor

// SetAgentExecutor wires the agent loop into the Task tool.
func SetAgentExecutor(e AgentExecutor) { agentExecutor = e }

// TaskBuilder spawns a subagent to carry out an isolated, multi-step task.
type TaskBuilder struct{}

func (TaskBuilder) Name() string        { return "Task" }
func (TaskBuilder) DisplayName() string { return "Task" }
func (TaskBuilder) Description() string { return "Launch a subagent to handle a complex task." }
func (TaskBuilder) Kind() Kind          { return KindMutating }

func (TaskBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subagent_type": map[string]any{"type": "string"},
			"prompt":        map[string]any{"type": "string"},
			"description":   map[string]any{"type": "string"},
			"run_in_background": map[string]any{
				"type": "boolean", "default": false,
			},
			"resume":    map[string]any{"type": "string"},
			"model":     map[string]any{"type": "string", "enum": []string{"sonnet", "opus", "haiku"}},
			"max_turns": map[string]any{"type": "integer"},
		},
		"required": []string{"subagent_type", "prompt"},
	}
}

func (b TaskBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	agentType, _ := params["subagent_type"].(string)
	if agentType == "" {
		return nil, &ToolError{Message: "subagent_type is required"}
	}
	prompt, _ := params["prompt"].(string)
	if prompt == "" {
		return nil, &ToolError{Message: "prompt is required"}
	}
	if agentExecutor == nil {
		return nil, &ToolError{Message: "agent executor not configured"}
	}
	config, ok := agentExecutor.GetAgentConfig(agentType)
	if !ok {
		return nil, &ToolError{Message: "unknown agent type: " + agentType}
	}
	description, _ := params["description"].(string)
	if description == "" {
		description = "Run agent task"
	}
	runBackground, _ := params["run_in_background"].(bool)
	resumeID, _ := params["resume"].(string)
	model, _ := params["model"].(string)
	maxTurns, _ := asInt(params["max_turns"])

	effectiveModel := model
	if effectiveModel == "" {
		effectiveModel = agentExecutor.GetParentModelID()
	}

	return &taskInvocation{
		req: AgentExecRequest{
			Agent: agentType, Prompt: prompt, Description: description,
			Background: runBackground, ResumeID: resumeID, Model: effectiveModel,
			MaxTurns: maxTurns, Cwd: ictx.CWD,
		},
		config: config,
	}, nil
}

type taskInvocation struct {
	req    AgentExecRequest
	config AgentConfigInfo
}

func (i *taskInvocation) Describe() string {
	return fmt.Sprintf("spawn %s agent: %s", i.config.Name, i.req.Description)
}

// MaybeConfirmationDetails flags the spawn so the scheduler's policy gate can
// require confirmation before handing tool access to a new agent.
func (i *taskInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails {
	return &message.ConfirmationDetails{
		Kind:       message.ConfirmAgentSpawn,
		Title:      i.Describe(),
		AgentName:  i.config.Name,
		AgentTools: i.config.Tools,
		Background: i.req.Background,
	}
}

func (i *taskInvocation) Execute(ctx context.Context) message.ToolResult {
	if i.req.Background {
		info, err := agentExecutor.RunBackground(i.req)
		if err != nil {
			return message.ToolResult{Error: fmt.Sprintf("failed to start background agent: %v", err)}
		}
		return message.ToolResult{
			LLMContent: fmt.Sprintf("Agent started in background.\nTask ID: %s\nAgent: %s\n\nUse TaskOutput with task_id=%q to check the result.",
				info.TaskID, info.AgentName, info.TaskID),
			Data: map[string]any{"task_id": info.TaskID},
		}
	}

	result, err := agentExecutor.Run(ctx, i.req)
	if err != nil {
		return message.ToolResult{Error: fmt.Sprintf("agent execution failed: %v", err)}
	}
	if !result.Success {
		return message.ToolResult{LLMContent: result.Content, Error: result.Error}
	}
	content := result.Content
	if content == "" {
		content = fmt.Sprintf("Agent completed successfully.\nTurns: %d\nTokens: %d", result.TurnCount, result.TotalTokens)
	}
	return message.ToolResult{LLMContent: content, Data: map[string]any{"turn_count": result.TurnCount}}
}
