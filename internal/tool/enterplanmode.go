package tool

import (
	"context"

	"github.com/aq-cli/aq/internal/bus"
	"github.com/aq-cli/aq/internal/message"
)

// EnterPlanRequest/EnterPlanResponse correlate the round trip over the bus.
type EnterPlanRequest struct {
	ID      string
	Message string
}

type EnterPlanResponse struct {
	RequestID string
	Approved  bool
}

// EnterPlanModeBuilder asks the operator for consent to switch the agent
// loop's tool set to the read-only plan-mode subset.
type EnterPlanModeBuilder struct{}

func (EnterPlanModeBuilder) Name() string        { return "EnterPlanMode" }
func (EnterPlanModeBuilder) DisplayName() string { return "Enter Plan Mode" }
func (EnterPlanModeBuilder) Description() string {
	return "Request to switch to plan mode before making changes to a complex task."
}
func (EnterPlanModeBuilder) Kind() Kind { return KindReadOnly }

func (EnterPlanModeBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string", "description": "Why plan mode is needed"},
		},
	}
}

func (b EnterPlanModeBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	msg, _ := params["message"].(string)
	return &enterPlanInvocation{message: msg, bus: ictx.Bus}, nil
}

type enterPlanInvocation struct {
	message string
	bus     *bus.Bus
}

func (i *enterPlanInvocation) Describe() string { return "request plan mode" }

func (i *enterPlanInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *enterPlanInvocation) Execute(ctx context.Context) message.ToolResult {
	reqID := newRequestID()
	i.bus.Emit(bus.AskUserRequest, EnterPlanRequest{ID: reqID, Message: i.message})

	raw, err := i.bus.WaitFor(bus.AskUserResponse, func(p any) bool {
		r, ok := p.(EnterPlanResponse)
		return ok && r.RequestID == reqID
	})
	if err != nil {
		return message.ToolResult{Error: "cancelled: " + err.Error()}
	}
	resp := raw.(EnterPlanResponse)
	if !resp.Approved {
		return message.ToolResult{
			LLMContent: "User declined to enter plan mode. Proceed with the task using available tools, or ask for clarification.",
		}
	}
	return message.ToolResult{
		LLMContent: "User approved entering plan mode. Explore using read-only tools and call ExitPlanMode with your plan when ready.",
		Data:       map[string]any{"planMode": true},
	}
}
