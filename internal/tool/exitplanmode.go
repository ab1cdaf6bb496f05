package tool

import (
	"context"

	"github.com/aq-cli/aq/internal/bus"
	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/plan"
)

// PlanRequest/PlanResponse correlate the exit-plan-mode round trip.
type PlanRequest struct {
	ID   string
	Plan string
}

type PlanResponse struct {
	RequestID    string
	Approved     bool
	ApproveMode  string // "clear-auto" | "auto" | "manual" | "modify"
	ModifiedPlan string
}

// ExitPlanModeBuilder submits the accumulated plan for approval and, on
// approval, signals the agent loop to leave plan mode.
type ExitPlanModeBuilder struct{}

func (ExitPlanModeBuilder) Name() string        { return "ExitPlanMode" }
func (ExitPlanModeBuilder) DisplayName() string { return "Exit Plan Mode" }
func (ExitPlanModeBuilder) Description() string {
	return "Submit the implementation plan for approval and leave plan mode."
}
func (ExitPlanModeBuilder) Kind() Kind { return KindReadOnly }

func (ExitPlanModeBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"plan": map[string]any{"type": "string", "description": "The plan, in markdown"},
		},
		"required": []string{"plan"},
	}
}

func (b ExitPlanModeBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	plan, _ := params["plan"].(string)
	if plan == "" {
		return nil, &ToolError{Message: "plan is required"}
	}
	return &exitPlanInvocation{plan: plan, bus: ictx.Bus}, nil
}

type exitPlanInvocation struct {
	plan string
	bus  *bus.Bus
}

func (i *exitPlanInvocation) Describe() string { return "submit plan for approval" }

func (i *exitPlanInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

var planModeDescriptions = map[string]string{
	"clear-auto": "Plan approved. Context cleared. Auto-accept mode enabled for edits.",
	"auto":       "Plan approved. Auto-accept mode enabled for edits.",
	"manual":     "Plan approved. Manual approval mode: each change requires confirmation.",
	"modify":     "Plan modified and approved.",
}

func (i *exitPlanInvocation) Execute(ctx context.Context) message.ToolResult {
	reqID := newRequestID()
	i.bus.Emit(bus.AskUserRequest, PlanRequest{ID: reqID, Plan: i.plan})

	raw, err := i.bus.WaitFor(bus.AskUserResponse, func(p any) bool {
		r, ok := p.(PlanResponse)
		return ok && r.RequestID == reqID
	})
	if err != nil {
		return message.ToolResult{Error: "cancelled: " + err.Error()}
	}
	resp := raw.(PlanResponse)
	if !resp.Approved {
		return message.ToolResult{LLMContent: "Plan was rejected. Revise it based on feedback and try again."}
	}
	desc, ok := planModeDescriptions[resp.ApproveMode]
	if !ok {
		desc = "Plan approved."
	}
	i.persist(resp)
	return message.ToolResult{
		LLMContent: desc + "\n\nYou may now proceed with the implementation.",
		Data:       map[string]any{"planMode": false, "approve_mode": resp.ApproveMode},
	}
}

// persist saves an approved plan to the user-level plan history. Best
// effort: a history write failure doesn't undo the approval the user
// already granted.
func (i *exitPlanInvocation) persist(resp PlanResponse) {
	content := i.plan
	if resp.ApproveMode == "modify" && resp.ModifiedPlan != "" {
		content = resp.ModifiedPlan
	}
	store, err := plan.NewStore()
	if err != nil {
		return
	}
	_, _ = store.Save(&plan.Plan{
		ID:      plan.GeneratePlanNameFromContent(content),
		Status:  plan.StatusApproved,
		Content: content,
	})
}
