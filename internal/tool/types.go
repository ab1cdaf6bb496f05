package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aq-cli/aq/internal/bus"
	"github.com/aq-cli/aq/internal/message"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Kind classifies a tool as read-only or mutating. The scheduler (C6) does
// not read it: it splits calls into concurrent auto-run and serialized
// confirmation by each invocation's MaybeConfirmationDetails.
type Kind int

const (
	// KindReadOnly tools never mutate state and never require confirmation.
	KindReadOnly Kind = iota
	// KindMutating tools change file-system or process state and may
	// require confirmation depending on policy and prior approvals.
	KindMutating
)

// Builder is the tool-registry contract (C4/C5): each registered tool
// exposes its identity, a JSON schema for validating raw arguments, and
// the two-phase build/confirm/execute lifecycle the scheduler drives.
type Builder interface {
	Name() string
	DisplayName() string
	Description() string
	Kind() Kind

	// Schema returns the tool's parameter JSON schema (draft 2020-12),
	// used both to advertise the tool to the model and to validate
	// build-time input.
	Schema() map[string]any

	// Build parses rawArgs as JSON, validates it against Schema and any
	// per-tool rules, and returns a ready-to-run Invocation. Build never
	// has side effects; it is pure parsing plus validation.
	Build(rawArgs string, ctx *InvocationContext) (Invocation, error)
}

// InvocationContext carries the ambient state a tool build/execute needs
// that is not part of its declared arguments.
type InvocationContext struct {
	CWD      string
	PlanMode bool
	// Bus is used by interactive tools (AskUser, EnterPlanMode,
	// ExitPlanMode) that must round-trip through the UI mid-Execute rather
	// than through the confirmation-details path.
	Bus *bus.Bus
}

// Invocation is a validated, ready-to-execute tool call. MaybeConfirmation
// is a pure inspection: it must not perform I/O or mutate any state, so the
// scheduler can call it freely while deciding whether to pause for
// approval (C5, C6 Stage B).
type Invocation interface {
	// Describe returns a short human-readable summary of what this
	// invocation will do, used in confirmation prompts and transcripts.
	Describe() string

	// MaybeConfirmationDetails returns non-nil when this specific
	// invocation requires user approval before Execute runs. Pure,
	// side-effect-free.
	MaybeConfirmationDetails() *message.ConfirmationDetails

	// Execute performs the tool's effect and returns its result. Only
	// called after any required confirmation has been resolved.
	Execute(ctx context.Context) message.ToolResult
}

// ToolError is a Build-time validation failure, distinct from an
// execution-time ToolResult error: a Build failure is never retried or
// executed; the scheduler marks the call Error and the model receives
// "Error: <message>" as its tool result (spec §4.5 step 2).
type ToolError struct {
	Message string
}

func (e *ToolError) Error() string { return e.Message }

var schemaCompiler = jsonschema.NewCompiler()

// CompileSchema marshals a tool's parameter schema, adds it to the shared
// compiler as mem://<name>.json and compiles it. Each builder's Build calls
// it, so this work is repeated on every call.
func CompileSchema(name string, raw map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("tool %s: marshal schema: %w", name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("tool %s: unmarshal schema: %w", name, err)
	}
	res := "mem://" + name + ".json"
	if err := schemaCompiler.AddResource(res, doc); err != nil {
		return nil, fmt.Errorf("tool %s: add schema resource: %w", name, err)
	}
	return schemaCompiler.Compile(res)
}

// ValidateArgs decodes rawArgs as JSON and validates it against schema,
// returning the decoded map for further per-tool inspection.
func ValidateArgs(schema *jsonschema.Schema, rawArgs string) (map[string]any, error) {
	var params any
	if err := json.Unmarshal([]byte(rawArgs), &params); err != nil {
		return nil, &ToolError{Message: "invalid JSON arguments: " + err.Error()}
	}
	if schema != nil {
		if err := schema.Validate(params); err != nil {
			return nil, &ToolError{Message: "argument validation failed: " + err.Error()}
		}
	}
	m, ok := params.(map[string]any)
	if !ok {
		return nil, &ToolError{Message: "arguments must be a JSON object"}
	}
	return m, nil
}
