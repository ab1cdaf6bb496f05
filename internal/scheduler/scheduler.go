// Package scheduler drives a batch of tool calls through the state machine
// described in spec §4.6 (C6): it partitions auto-approved calls from
// confirm-required ones, consults the path-approval tracker and any policy
// overrides, and round-trips confirmations through the message bus.
package scheduler

import (
	"context"
	"sync"

	"github.com/aq-cli/aq/internal/approval"
	"github.com/aq-cli/aq/internal/bus"
	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/tool"
)

// State is a call's position in the lifecycle described in spec §3.
type State int

const (
	Validating State = iota
	Scheduled
	AwaitingApproval
	Executing
	Success
	Error
	Cancelled
)

// Call is one tool call's accumulated state as it moves through the
// scheduler. No field is ever cleared once set; transitions only add
// information, never remove it (spec §4.6 invariants).
type Call struct {
	ID      string
	Name    string
	RawArgs string

	State State

	Invocation  tool.Invocation
	Description string
	Details     *message.ConfirmationDetails

	Result     message.ToolResult
	ErrMessage string
	CancelRsn  string
}

// Terminal reports whether c has reached a state schedule() will not advance further.
func (c *Call) Terminal() bool {
	return c.State == Success || c.State == Error || c.State == Cancelled
}

// PolicyFunc resolves the policy decision for a call whose confirmation
// details are non-nil, before the tracker/bus round-trip. It lets a caller
// layer rule-based allow/deny overrides (SPEC_FULL "Rule-based permission
// overrides") underneath the scheduler's own PathAccess auto-approval
// without changing this package's state machine. A nil PolicyFunc behaves
// as "always AskUser".
type PolicyFunc func(call *Call, details message.ConfirmationDetails) message.PolicyDecision

// Scheduler runs batches of tool calls to completion.
type Scheduler struct {
	Registry *tool.Registry
	Bus      *bus.Bus
	Paths    *approval.PathTracker
	Policy   PolicyFunc
}

// New builds a Scheduler over the given registry, bus, and path tracker.
func New(reg *tool.Registry, b *bus.Bus, paths *approval.PathTracker) *Scheduler {
	return &Scheduler{Registry: reg, Bus: b, Paths: paths}
}

// Schedule drives requests through Stage A (build/validate), Stage B
// (partition + execute), and Stage C (per-call policy/confirm/execute) and
// returns completed calls in input order. Schedule never panics or returns
// an error itself; every failure surfaces as a terminal Call state.
func (s *Scheduler) Schedule(ctx context.Context, requests []message.ToolCallRequest, ictx *tool.InvocationContext) []*Call {
	calls := s.startBatch(requests, ictx)

	var auto, confirmRequired []*Call
	for _, c := range calls {
		if c.State != Scheduled {
			continue // already terminal from Stage A failures
		}
		details := c.Invocation.MaybeConfirmationDetails()
		c.Details = details
		if details == nil {
			auto = append(auto, c)
		} else {
			confirmRequired = append(confirmRequired, c)
		}
	}

	s.runAuto(ctx, auto)
	for _, c := range confirmRequired {
		s.runOne(ctx, c)
	}

	s.Bus.Emit(bus.ToolCallsUpdate, snapshot(calls))
	return calls
}

// startBatch implements Stage A: build an Invocation for every request,
// turning lookup/parse/validation failures into terminal Error calls.
func (s *Scheduler) startBatch(requests []message.ToolCallRequest, ictx *tool.InvocationContext) []*Call {
	calls := make([]*Call, len(requests))
	for i, req := range requests {
		c := &Call{ID: req.ID, Name: req.Name, RawArgs: req.RawArgs, State: Validating}
		calls[i] = c

		builder, ok := s.Registry.Get(req.Name)
		if !ok {
			c.State = Error
			c.ErrMessage = "unknown tool: " + req.Name
			continue
		}
		inv, err := builder.Build(req.RawArgs, ictx)
		if err != nil {
			c.State = Error
			c.ErrMessage = err.Error()
			continue
		}
		c.Invocation = inv
		c.Description = inv.Describe()
		c.State = Scheduled
	}
	return calls
}

// runAuto executes every auto-approved call concurrently and waits for all
// of them (Stage B fan-out).
func (s *Scheduler) runAuto(ctx context.Context, calls []*Call) {
	var wg sync.WaitGroup
	for _, c := range calls {
		wg.Add(1)
		go func(c *Call) {
			defer wg.Done()
			s.execute(ctx, c)
		}(c)
	}
	wg.Wait()
}

// runOne drives a single confirm-required call through Stage C.
func (s *Scheduler) runOne(ctx context.Context, c *Call) {
	if ctx.Err() != nil {
		c.State = Cancelled
		c.CancelRsn = "Aborted"
		return
	}

	decision := s.decide(c)
	switch decision {
	case message.PolicyDeny:
		c.State = Cancelled
		c.CancelRsn = "denied by policy"
		return
	case message.PolicyAuto:
		s.execute(ctx, c)
		return
	}

	c.State = AwaitingApproval
	payload, err := s.Bus.EmitAndWaitFor(
		bus.ToolConfirmationRequest, ConfirmationRequest{CallID: c.ID, Details: *c.Details},
		bus.ToolConfirmationResponse, func(p any) bool {
			resp, ok := p.(ConfirmationResponse)
			return ok && resp.CallID == c.ID
		})
	if err != nil {
		c.State = Cancelled
		c.CancelRsn = "Aborted"
		return
	}
	resp := payload.(ConfirmationResponse)

	switch resp.Outcome {
	case message.Cancel:
		c.State = Cancelled
		c.CancelRsn = "User declined"
		return
	case message.ProceedAlways:
		if c.Details.Kind == message.ConfirmPathAccess {
			s.Paths.ApproveAll()
		}
	case message.ProceedOnce:
	}

	s.execute(ctx, c)
}

// decide implements Stage C step 1: policy gate before the tracker/bus
// round-trip. PathAccess calls that are already globally approved, or a
// caller-supplied PolicyFunc's verdict, short-circuit straight to Auto.
func (s *Scheduler) decide(c *Call) message.PolicyDecision {
	if c.Details.Kind == message.ConfirmPathAccess && s.Paths.IsAllowed() {
		return message.PolicyAuto
	}
	if s.Policy != nil {
		return s.Policy(c, *c.Details)
	}
	return message.PolicyAskUser
}

// execute runs Stage C step 3: call Execute inside a safe boundary so a
// panicking tool invocation, an abort, or an error result all resolve to a
// terminal Call state rather than crashing the scheduler.
func (s *Scheduler) execute(ctx context.Context, c *Call) {
	if ctx.Err() != nil {
		c.State = Cancelled
		c.CancelRsn = "Aborted"
		return
	}
	c.State = Executing

	result := func() (res message.ToolResult) {
		defer func() {
			if r := recover(); r != nil {
				res = message.ToolResult{Error: panicMessage(r)}
			}
		}()
		return c.Invocation.Execute(ctx)
	}()

	if ctx.Err() != nil {
		c.State = Cancelled
		c.CancelRsn = "Aborted"
		return
	}
	c.Result = result
	if result.IsError() {
		c.State = Error
		c.ErrMessage = result.Error
		return
	}
	c.State = Success
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "tool invocation panicked"
}

// ToMessage renders a completed call's outcome as the tool-role message the
// model sees, per spec §4.9 step 7.
func (c *Call) ToMessage() message.ChatMessage {
	switch c.State {
	case Success:
		return c.Result.ToMessage(c.ID)
	case Error:
		return message.NewToolResult(c.ID, "Error: "+c.ErrMessage)
	case Cancelled:
		return message.NewToolResult(c.ID, "Cancelled: "+c.CancelRsn)
	default:
		return message.NewToolResult(c.ID, "Cancelled: "+c.CancelRsn)
	}
}

// ConfirmationRequest is the ToolConfirmationRequest payload emitted on the
// bus (spec §4.6 Stage C step 2).
type ConfirmationRequest struct {
	CallID  string
	Details message.ConfirmationDetails
}

// ConfirmationResponse is the ToolConfirmationResponse payload a UI emits
// back, correlated by CallID.
type ConfirmationResponse struct {
	CallID  string
	Outcome message.ConfirmationOutcome
}

// snapshot copies calls (already in input order) for the ToolCallsUpdate
// event so a subscriber can't observe scheduler-internal mutation races.
func snapshot(calls []*Call) []*Call {
	out := make([]*Call, len(calls))
	copy(out, calls)
	return out
}
