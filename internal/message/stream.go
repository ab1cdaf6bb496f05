package message

// EventKind tags a StreamEvent's payload. Modeled as a sum type over a
// single struct (spec §9 Design Notes) rather than an interface hierarchy:
// the Kind field is the discriminant, and only the fields relevant to that
// Kind are populated.
type EventKind int

const (
	EventContent EventKind = iota
	EventThought
	EventToolCall
	EventUsage
	EventRetry
	EventError
	EventInvalidStream
	EventFinished
)

// StreamEvent is the typed union C8 (the stream parser) emits and C9 (the
// agent loop) folds. At most one EventFinished is ever emitted per stream;
// EventError is terminal for that stream.
type StreamEvent struct {
	Kind EventKind

	Text     string          // EventContent, EventThought
	ToolCall ToolCallRequest // EventToolCall
	Usage    TokensSummary   // EventUsage

	RetryAttempt int // EventRetry
	RetryMax     int // EventRetry

	Err string // EventError
}

func Content(text string) StreamEvent  { return StreamEvent{Kind: EventContent, Text: text} }
func Thought(text string) StreamEvent  { return StreamEvent{Kind: EventThought, Text: text} }
func ToolCallEvent(tc ToolCallRequest) StreamEvent {
	return StreamEvent{Kind: EventToolCall, ToolCall: tc}
}
func UsageEvent(u TokensSummary) StreamEvent { return StreamEvent{Kind: EventUsage, Usage: u} }
func RetryEvent(attempt, max int) StreamEvent {
	return StreamEvent{Kind: EventRetry, RetryAttempt: attempt, RetryMax: max}
}
func ErrorEvent(msg string) StreamEvent   { return StreamEvent{Kind: EventError, Err: msg} }
func InvalidStreamEvent() StreamEvent     { return StreamEvent{Kind: EventInvalidStream} }
func FinishedEvent() StreamEvent          { return StreamEvent{Kind: EventFinished} }

// ConfirmationKind tags a ConfirmationDetails payload.
type ConfirmationKind int

const (
	ConfirmExec ConfirmationKind = iota
	ConfirmEdit
	ConfirmPathAccess
	ConfirmAgentSpawn
)

// ConfirmationDetails is the structured reason a tool invocation requires
// approval before it executes.
type ConfirmationDetails struct {
	Kind  ConfirmationKind
	Title string

	Command      string // ConfirmExec
	FilePath     string // ConfirmEdit
	Diff         string // ConfirmEdit: unified diff preview
	IsNewFile    bool   // ConfirmEdit: true when the edit creates FilePath
	ResolvedPath string // ConfirmPathAccess

	AgentName    string   // ConfirmAgentSpawn
	AgentTools   []string // ConfirmAgentSpawn
	Background   bool     // ConfirmAgentSpawn
}

// ConfirmationOutcome is the user's (or UI's) response to a confirmation request.
type ConfirmationOutcome int

const (
	ProceedOnce ConfirmationOutcome = iota
	ProceedAlways
	Cancel
)

// PolicyDecision is what the scheduler's policy gate resolves to before
// deciding whether to prompt.
type PolicyDecision int

const (
	PolicyDeny PolicyDecision = iota
	PolicyAskUser
	PolicyAuto
)
