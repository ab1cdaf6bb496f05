package scheduler

import (
	"context"
	"testing"

	"github.com/aq-cli/aq/internal/approval"
	"github.com/aq-cli/aq/internal/bus"
	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/tool"
)

type fakeInvocation struct {
	describe string
	details  *message.ConfirmationDetails
	result   message.ToolResult
}

func (f *fakeInvocation) Describe() string { return f.describe }
func (f *fakeInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails {
	return f.details
}
func (f *fakeInvocation) Execute(ctx context.Context) message.ToolResult { return f.result }

type fakeBuilder struct {
	name    string
	kind    tool.Kind
	build   func(rawArgs string, ctx *tool.InvocationContext) (tool.Invocation, error)
}

func (b *fakeBuilder) Name() string                 { return b.name }
func (b *fakeBuilder) DisplayName() string          { return b.name }
func (b *fakeBuilder) Description() string          { return b.name }
func (b *fakeBuilder) Kind() tool.Kind              { return b.kind }
func (b *fakeBuilder) Schema() map[string]any       { return map[string]any{"type": "object"} }
func (b *fakeBuilder) Build(rawArgs string, ctx *tool.InvocationContext) (tool.Invocation, error) {
	return b.build(rawArgs, ctx)
}

func registryWith(t *testing.T, builders ...*fakeBuilder) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	for _, b := range builders {
		if err := reg.Register(b); err != nil {
			t.Fatalf("register %s: %v", b.name, err)
		}
	}
	return reg
}

// Scenario B (spec §8): two read-only auto calls run concurrently, results
// appear in input order.
func TestSchedule_ParallelAutoCallsPreserveOrder(t *testing.T) {
	reg := registryWith(t, &fakeBuilder{
		name: "list_directory",
		kind: tool.KindReadOnly,
		build: func(rawArgs string, ctx *tool.InvocationContext) (tool.Invocation, error) {
			return &fakeInvocation{result: message.ToolResult{LLMContent: "ok:" + rawArgs}}, nil
		},
	})
	b := bus.New()
	defer b.Destroy()
	sched := New(reg, b, approval.NewPathTracker())

	reqs := []message.ToolCallRequest{
		{ID: "X", Name: "list_directory", RawArgs: "{}"},
		{ID: "Y", Name: "list_directory", RawArgs: "{}"},
	}
	calls := sched.Schedule(context.Background(), reqs, &tool.InvocationContext{})

	if len(calls) != 2 || calls[0].ID != "X" || calls[1].ID != "Y" {
		t.Fatalf("expected order X,Y, got %+v", calls)
	}
	for _, c := range calls {
		if c.State != Success {
			t.Fatalf("call %s: expected Success, got %v (%s)", c.ID, c.State, c.ErrMessage)
		}
	}
}

func TestSchedule_UnknownToolIsTerminalError(t *testing.T) {
	reg := registryWith(t)
	b := bus.New()
	defer b.Destroy()
	sched := New(reg, b, approval.NewPathTracker())

	calls := sched.Schedule(context.Background(), []message.ToolCallRequest{
		{ID: "Z", Name: "does_not_exist", RawArgs: "{}"},
	}, &tool.InvocationContext{})

	if calls[0].State != Error {
		t.Fatalf("expected Error, got %v", calls[0].State)
	}
}

// Scenario D (spec §8): ProceedAlways on PathAccess latches the tracker so
// a following PathAccess call runs Auto without another round-trip.
func TestSchedule_ProceedAlwaysLatchesPathApproval(t *testing.T) {
	details := &message.ConfirmationDetails{Kind: message.ConfirmPathAccess, ResolvedPath: "/outside"}
	reg := registryWith(t, &fakeBuilder{
		name: "read_file",
		kind: tool.KindReadOnly,
		build: func(rawArgs string, ctx *tool.InvocationContext) (tool.Invocation, error) {
			return &fakeInvocation{details: details, result: message.ToolResult{LLMContent: "data"}}, nil
		},
	}, &fakeBuilder{
		name: "write_file",
		kind: tool.KindMutating,
		build: func(rawArgs string, ctx *tool.InvocationContext) (tool.Invocation, error) {
			return &fakeInvocation{details: details, result: message.ToolResult{LLMContent: "written"}}, nil
		},
	})
	b := bus.New()
	defer b.Destroy()
	paths := approval.NewPathTracker()
	sched := New(reg, b, paths)

	responded := make(chan struct{})
	b.On(bus.ToolConfirmationRequest, func(p any) {
		req := p.(ConfirmationRequest)
		b.Emit(bus.ToolConfirmationResponse, ConfirmationResponse{CallID: req.CallID, Outcome: message.ProceedAlways})
		close(responded)
	})

	calls := sched.Schedule(context.Background(), []message.ToolCallRequest{
		{ID: "A", Name: "read_file", RawArgs: "{}"},
	}, &tool.InvocationContext{})
	<-responded
	if calls[0].State != Success {
		t.Fatalf("expected Success after ProceedAlways, got %v", calls[0].State)
	}
	if !paths.IsAllowed() {
		t.Fatalf("expected path tracker latched after ProceedAlways")
	}

	// Second PathAccess call: tracker already allows, so no confirmation
	// round-trip should be required (decide() resolves straight to Auto).
	calls2 := sched.Schedule(context.Background(), []message.ToolCallRequest{
		{ID: "B", Name: "write_file", RawArgs: "{}"},
	}, &tool.InvocationContext{})
	if calls2[0].State != Success {
		t.Fatalf("expected auto-approved Success, got %v", calls2[0].State)
	}
}

func TestSchedule_CancelOutcomeIsRecorded(t *testing.T) {
	details := &message.ConfirmationDetails{Kind: message.ConfirmExec, Command: "rm foo"}
	reg := registryWith(t, &fakeBuilder{
		name: "run_shell_command",
		kind: tool.KindMutating,
		build: func(rawArgs string, ctx *tool.InvocationContext) (tool.Invocation, error) {
			return &fakeInvocation{details: details}, nil
		},
	})
	b := bus.New()
	defer b.Destroy()
	sched := New(reg, b, approval.NewPathTracker())

	b.On(bus.ToolConfirmationRequest, func(p any) {
		req := p.(ConfirmationRequest)
		b.Emit(bus.ToolConfirmationResponse, ConfirmationResponse{CallID: req.CallID, Outcome: message.Cancel})
	})

	calls := sched.Schedule(context.Background(), []message.ToolCallRequest{
		{ID: "C", Name: "run_shell_command", RawArgs: "{}"},
	}, &tool.InvocationContext{})
	if calls[0].State != Cancelled || calls[0].CancelRsn != "User declined" {
		t.Fatalf("expected Cancelled/User declined, got %v/%s", calls[0].State, calls[0].CancelRsn)
	}
}
