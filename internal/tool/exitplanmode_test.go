package tool

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/aq-cli/aq/internal/bus"
)

func buildExitPlan(t *testing.T, planText string) Invocation {
	t.Helper()
	b := ExitPlanModeBuilder{}
	args, err := json.Marshal(map[string]string{"plan": planText})
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	inv, err := b.Build(string(args), &InvocationContext{Bus: bus.New()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return inv
}

func TestExitPlanModeRejected(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	inv := buildExitPlan(t, "# Plan\ndo the thing")
	impl := inv.(*exitPlanInvocation)

	impl.bus.On(bus.AskUserRequest, func(payload any) {
		req := payload.(PlanRequest)
		impl.bus.Emit(bus.AskUserResponse, PlanResponse{RequestID: req.ID, Approved: false})
	})

	result := inv.Execute(context.Background())
	if result.IsError() {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if !strings.Contains(result.LLMContent, "rejected") {
		t.Fatalf("LLMContent = %q, want rejection message", result.LLMContent)
	}
}

func TestExitPlanModeApprovedPersistsPlan(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	inv := buildExitPlan(t, "# Ship dark mode\nadd a toggle")
	impl := inv.(*exitPlanInvocation)

	impl.bus.On(bus.AskUserRequest, func(payload any) {
		req := payload.(PlanRequest)
		impl.bus.Emit(bus.AskUserResponse, PlanResponse{RequestID: req.ID, Approved: true, ApproveMode: "auto"})
	})

	result := inv.Execute(context.Background())
	if result.IsError() {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if result.Data["approve_mode"] != "auto" {
		t.Fatalf("Data[approve_mode] = %v, want auto", result.Data["approve_mode"])
	}

	entries, err := os.ReadDir(home + "/.aq/plans")
	if err != nil {
		t.Fatalf("read plans dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 persisted plan file", len(entries))
	}
}
