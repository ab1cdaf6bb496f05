// Package agent implements the multi-turn agent loop (C9): stream, collect
// tool calls, schedule them, append results, repeat. It owns the loop
// detector, plan-mode tool-set gating, and context-window hygiene
// (delegated to internal/compact) described in spec §4.9.
package agent

import (
	"context"
	"strings"

	"github.com/aq-cli/aq/internal/approval"
	"github.com/aq-cli/aq/internal/bus"
	"github.com/aq-cli/aq/internal/compact"
	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/provider"
	"github.com/aq-cli/aq/internal/scheduler"
	"github.com/aq-cli/aq/internal/tool"
)

// maxTurns is the hard cap on turns per run (§4.9 step 8).
const maxTurns = 100

// maxInvalidStreamRetries bounds the "Please continue." recovery (§4.9 step 4).
const maxInvalidStreamRetries = 2

// loopWindow and loopThreshold size the signature sliding window for
// repeated-tool-call detection (§4.9 step 6).
const loopWindow = 8
const loopThreshold = 4

// planModeTools is the fixed read-only tool subset available while plan
// mode is active (spec GLOSSARY, §4.9 step 2).
var planModeTools = map[string]bool{
	"glob": true, "grep": true, "read": true, "ls": true,
	"websearch": true, "askuserquestion": true, "skill": true, "exitplanmode": true,
}

// Callbacks lets the caller observe a run without coupling the loop to any
// particular UI.
type Callbacks struct {
	OnContent  func(text string)
	OnThinking func(text string)
	OnError    func(msg string)
	OnNotice   func(msg string) // retries, compression, loop-detected, etc.
}

// Loop drives one conversation's turns. A Loop is constructed fresh per run
// (its Registry/Scheduler/Bus are owned for the run's duration per spec's
// entity-ownership notes, §3).
type Loop struct {
	Provider   provider.LLMProvider
	Model      string
	Registry   *tool.Registry
	Scheduler  *scheduler.Scheduler
	Bus        *bus.Bus
	Paths      *approval.PathTracker
	Summarize  compact.Summarizer
	TokenLimit int

	PlanMode bool

	Callbacks Callbacks
}

// Result is what Run returns: the full message history (system + history +
// this run's turns) and the accumulated token usage.
type Result struct {
	Messages []message.ChatMessage
	Usage    message.TokensSummary
	Turns    int
}

// New builds a Loop ready to run, with a Scheduler on the given bus. New
// subscribes to nothing: the caller answers the bus's tool-confirmation and
// ask-user requests. Callers must call Destroy when the run is over (it
// destroys the bus).
func New(p provider.LLMProvider, model string, reg *tool.Registry, b *bus.Bus, paths *approval.PathTracker) *Loop {
	return &Loop{
		Provider:  p,
		Model:     model,
		Registry:  reg,
		Scheduler: scheduler.New(reg, b, paths),
		Bus:       b,
		Paths:     paths,
	}
}

// Destroy releases the loop's bus. Safe to call once per run.
func (l *Loop) Destroy() { l.Bus.Destroy() }

// Run drives messages (system + history + the new user turn) through the
// turn loop until end-of-turn, an error, an abort, loop detection, or the
// turn cap.
func (l *Loop) Run(ctx context.Context, messages []message.ChatMessage, lastPromptTokens int) Result {
	msgs := append([]message.ChatMessage(nil), messages...)
	var usage message.TokensSummary
	var signatures []string

	for turn := 0; turn < maxTurns; turn++ {
		if ctx.Err() != nil {
			return Result{Messages: msgs, Usage: usage, Turns: turn}
		}

		if turn > 0 && l.Summarize != nil && compact.ShouldTrigger(lastPromptTokens, msgs, l.TokenLimit) {
			result := compact.Run(msgs, l.Summarize)
			if result.Status == compact.Compressed {
				msgs = result.Messages
				l.notice("context compressed")
			}
		}

		invalidRetries := 0
	turnRestart:
		assistantContent, pending, turnUsage, promptTokens, invalid, errMsg := l.streamOneTurn(ctx, msgs)
		usage.Add(turnUsage)
		if promptTokens > 0 {
			lastPromptTokens = promptTokens
		}
		if errMsg != "" {
			l.err(errMsg)
			return Result{Messages: msgs, Usage: usage, Turns: turn}
		}
		if invalid {
			invalidRetries++
			if invalidRetries > maxInvalidStreamRetries {
				l.err("model stream ended without content or tool calls")
				return Result{Messages: msgs, Usage: usage, Turns: turn}
			}
			msgs = append(msgs, message.NewUser("Please continue."))
			goto turnRestart
		}

		if len(pending) == 0 {
			if assistantContent != "" {
				msgs = append(msgs, message.NewAssistant(assistantContent, nil))
			}
			return Result{Messages: msgs, Usage: usage, Turns: turn + 1}
		}

		sig := signature(pending)
		signatures = append(signatures, sig)
		if len(signatures) > loopWindow {
			signatures = signatures[len(signatures)-loopWindow:]
		}
		if repeatedTail(signatures, loopThreshold) {
			l.notice("loop detected: stopping")
			return Result{Messages: msgs, Usage: usage, Turns: turn + 1}
		}

		msgs = append(msgs, message.NewAssistant(assistantContent, pending))

		ictx := &tool.InvocationContext{CWD: "", PlanMode: l.PlanMode, Bus: l.Bus}
		completed := l.Scheduler.Schedule(ctx, pending, ictx)
		for _, c := range completed {
			msgs = append(msgs, c.ToMessage())
			if c.State == scheduler.Success {
				if planMode, ok := c.Result.Data["planMode"].(bool); ok {
					l.PlanMode = planMode
				}
			}
		}
	}

	l.notice("max turns reached")
	return Result{Messages: msgs, Usage: usage, Turns: maxTurns}
}

// streamOneTurn opens one model stream and folds its events per §4.9 step 3.
func (l *Loop) streamOneTurn(ctx context.Context, msgs []message.ChatMessage) (content string, pending []message.ToolCallRequest, usage message.TokensSummary, promptTokens int, invalid bool, errMsg string) {
	tools := l.toolSchemas()
	events, err := l.Provider.Stream(ctx, provider.CompletionRequest{Model: l.Model, Messages: msgs, Tools: tools})
	if err != nil {
		return "", nil, usage, 0, false, err.Error()
	}

	var b strings.Builder
	for ev := range events {
		switch ev.Kind {
		case message.EventContent:
			b.WriteString(ev.Text)
			l.content(ev.Text)
		case message.EventThought:
			l.thinking(ev.Text)
		case message.EventToolCall:
			pending = append(pending, ev.ToolCall)
		case message.EventUsage:
			usage.Add(ev.Usage)
			if ev.Usage.Prompt > 0 {
				promptTokens = ev.Usage.Prompt
			}
		case message.EventRetry:
			l.notice("retrying request")
		case message.EventError:
			errMsg = ev.Err
		case message.EventInvalidStream:
			invalid = true
		case message.EventFinished:
		}
	}
	content = b.String()
	return
}

// toolSchemas resolves the tool set for this turn: the full registry, or,
// in plan mode, the fixed read-only subset (§4.9 step 2).
func (l *Loop) toolSchemas() []provider.ToolSchema {
	names := l.Registry.Names()
	out := make([]provider.ToolSchema, 0, len(names))
	for _, name := range names {
		if l.PlanMode && !planModeTools[strings.ToLower(name)] {
			continue
		}
		b, ok := l.Registry.Get(name)
		if !ok {
			continue
		}
		out = append(out, provider.ToolSchema{
			Name:        b.Name(),
			Description: b.Description(),
			Parameters:  b.Schema(),
		})
	}
	return out
}

func signature(calls []message.ToolCallRequest) string {
	parts := make([]string, len(calls))
	for i, c := range calls {
		parts[i] = c.Name + ":" + c.RawArgs
	}
	return strings.Join(parts, "|")
}

// repeatedTail reports whether the last n signatures are all identical.
func repeatedTail(sigs []string, n int) bool {
	if len(sigs) < n {
		return false
	}
	tail := sigs[len(sigs)-n:]
	for _, s := range tail[1:] {
		if s != tail[0] {
			return false
		}
	}
	return true
}

func (l *Loop) content(s string) {
	if l.Callbacks.OnContent != nil {
		l.Callbacks.OnContent(s)
	}
}
func (l *Loop) thinking(s string) {
	if l.Callbacks.OnThinking != nil {
		l.Callbacks.OnThinking(s)
	}
}
func (l *Loop) err(s string) {
	if l.Callbacks.OnError != nil {
		l.Callbacks.OnError(s)
	}
}
func (l *Loop) notice(s string) {
	if l.Callbacks.OnNotice != nil {
		l.Callbacks.OnNotice(s)
	}
}
