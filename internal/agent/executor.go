package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aq-cli/aq/internal/agentdef"
	"github.com/aq-cli/aq/internal/approval"
	"github.com/aq-cli/aq/internal/bus"
	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/provider"
	"github.com/aq-cli/aq/internal/task"
	"github.com/aq-cli/aq/internal/tool"
)

// Executor implements tool.AgentExecutor, letting the Task tool spawn
// subagents without internal/tool importing this package (which would be a
// cycle: this package already imports internal/tool for the Registry/
// Scheduler it drives). One Executor is installed per process via
// tool.SetAgentExecutor.
type Executor struct {
	Provider provider.LLMProvider
	Model    string // the parent agent's model, used as a subagent default

	Tools  *tool.Registry // the full registry; subagents get a filtered view
	Agents *agentdef.Registry

	Tasks *task.Manager
}

var _ tool.AgentExecutor = (*Executor)(nil)

// GetParentModelID reports the model the top-level agent is running, used
// when a Task invocation doesn't pin a specific model.
func (e *Executor) GetParentModelID() string { return e.Model }

// GetAgentConfig exposes an agent type's catalogue entry to the Task tool.
func (e *Executor) GetAgentConfig(agentType string) (tool.AgentConfigInfo, bool) {
	cfg, ok := e.Agents.Get(agentType)
	if !ok {
		return tool.AgentConfigInfo{}, false
	}
	return tool.AgentConfigInfo{
		Name:           cfg.Name,
		Description:    cfg.Description,
		PermissionMode: string(cfg.PermissionMode),
		Tools:          e.resolveToolNames(cfg.Tools),
	}, true
}

// resolveToolNames turns an agent's allow/deny configuration into the
// concrete tool names it will run with against the current registry.
func (e *Executor) resolveToolNames(access agentdef.ToolAccess) []string {
	if access.Mode == agentdef.ToolAccessAllowlist {
		return access.Allow
	}
	deny := make(map[string]bool, len(access.Deny))
	for _, n := range access.Deny {
		deny[n] = true
	}
	var out []string
	for _, n := range e.Tools.Names() {
		if !deny[n] {
			out = append(out, n)
		}
	}
	return out
}

// scopedRegistry builds the tool registry a subagent run is allowed to use.
func (e *Executor) scopedRegistry(access agentdef.ToolAccess) *tool.Registry {
	reg := tool.NewRegistry()
	for _, name := range e.resolveToolNames(access) {
		if b, ok := e.Tools.Get(name); ok {
			reg.MustRegister(b)
		}
	}
	return reg
}

// Run drives a subagent to completion synchronously (§ Task tool, C9 reused
// per invocation rather than shared, since each subagent run owns its own
// bus and history per the spec's entity-ownership notes).
func (e *Executor) Run(ctx context.Context, req tool.AgentExecRequest) (*tool.AgentExecResult, error) {
	cfg, ok := e.Agents.Get(req.Agent)
	if !ok {
		return nil, fmt.Errorf("unknown agent type: %s", req.Agent)
	}

	model := req.Model
	if model == "" {
		model = cfg.Model
	}
	if model == "" {
		model = e.Model
	}
	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = cfg.MaxTurns
	}
	if maxTurns <= 0 {
		maxTurns = agentdef.DefaultMaxTurns
	}

	reg := e.scopedRegistry(cfg.Tools)
	b := bus.New()
	l := New(e.Provider, model, reg, b, approval.NewPathTracker())
	defer l.Destroy()

	msgs := []message.ChatMessage{}
	if sys := cfg.GetSystemPrompt(); sys != "" {
		msgs = append(msgs, message.NewSystem(sys))
	}
	msgs = append(msgs, message.NewUser(req.Prompt))

	result := l.Run(ctx, msgs, 0)

	content := lastAssistantText(result.Messages)
	success := ctx.Err() == nil
	errMsg := ""
	if !success {
		errMsg = ctx.Err().Error()
	}
	return &tool.AgentExecResult{
		AgentName:   cfg.Name,
		Success:     success,
		Content:     content,
		TurnCount:   result.Turns,
		TotalTokens: result.Usage.Total,
		Error:       errMsg,
	}, nil
}

// RunBackground launches a subagent asynchronously and registers it with
// internal/task so TaskOutput/TaskKill can observe and control it.
func (e *Executor) RunBackground(req tool.AgentExecRequest) (tool.AgentTaskInfo, error) {
	cfg, ok := e.Agents.Get(req.Agent)
	if !ok {
		return tool.AgentTaskInfo{}, fmt.Errorf("unknown agent type: %s", req.Agent)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	at := task.NewAgentTask(id, cfg.Name, req.Description, runCtx, cancel)
	e.Tasks.Register(at)

	go func() {
		result, err := e.Run(runCtx, req)
		if err != nil {
			at.Complete(err)
			return
		}
		at.UpdateProgress(result.TurnCount, result.TotalTokens)
		at.AppendOutput([]byte(result.Content))
		if !result.Success {
			at.Complete(fmt.Errorf("%s", result.Error))
			return
		}
		at.Complete(nil)
	}()

	return tool.AgentTaskInfo{TaskID: id, AgentName: cfg.Name}, nil
}

func lastAssistantText(msgs []message.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == message.RoleAssistant && msgs[i].Content != "" {
			return msgs[i].Content
		}
	}
	return ""
}
