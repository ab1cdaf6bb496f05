package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aq-cli/aq/internal/bus"
	"github.com/aq-cli/aq/internal/message"
)

// QuestionOption is a single selectable answer.
type QuestionOption struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Question is one question in an AskUserQuestion call.
type Question struct {
	Question    string           `json:"question"`
	Header      string           `json:"header"`
	Options     []QuestionOption `json:"options"`
	MultiSelect bool             `json:"multiSelect"`
}

// AskUserRequest is published on the bus for the UI to render.
type AskUserRequest struct {
	ID        string
	Questions []Question
}

// AskUserResponse is published back by the UI.
type AskUserResponse struct {
	RequestID string
	Answers   map[int][]string
	Cancelled bool
}

// AskUserBuilder pauses the agent loop to gather structured input from the
// operator via the shared bus (C1), correlated by request id.
type AskUserBuilder struct{}

func (AskUserBuilder) Name() string        { return "AskUserQuestion" }
func (AskUserBuilder) DisplayName() string { return "Ask" }
func (AskUserBuilder) Description() string {
	return "Ask the user 1-4 multiple-choice questions to resolve an ambiguity before proceeding."
}
func (AskUserBuilder) Kind() Kind { return KindReadOnly }

func (AskUserBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"maxItems": 4,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question": map[string]any{"type": "string"},
						"header":   map[string]any{"type": "string", "maxLength": 12},
						"options": map[string]any{
							"type": "array", "minItems": 2, "maxItems": 4,
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"label":       map[string]any{"type": "string"},
									"description": map[string]any{"type": "string"},
								},
								"required": []string{"label"},
							},
						},
						"multiSelect": map[string]any{"type": "boolean"},
					},
					"required": []string{"question", "options"},
				},
			},
		},
		"required": []string{"questions"},
	}
}

func (b AskUserBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(params["questions"])
	if err != nil {
		return nil, &ToolError{Message: "invalid questions: " + err.Error()}
	}
	var questions []Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, &ToolError{Message: "invalid questions: " + err.Error()}
	}
	return &askUserInvocation{questions: questions, bus: ictx.Bus}, nil
}

type askUserInvocation struct {
	questions []Question
	bus       *bus.Bus
}

func (i *askUserInvocation) Describe() string {
	if len(i.questions) == 0 {
		return "ask the user"
	}
	return i.questions[0].Question
}

func (i *askUserInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *askUserInvocation) Execute(ctx context.Context) message.ToolResult {
	reqID := newRequestID()
	i.bus.Emit(bus.AskUserRequest, AskUserRequest{ID: reqID, Questions: i.questions})

	raw, err := i.bus.WaitFor(bus.AskUserResponse, func(p any) bool {
		r, ok := p.(AskUserResponse)
		return ok && r.RequestID == reqID
	})
	if err != nil {
		return message.ToolResult{Error: "cancelled: " + err.Error()}
	}
	resp := raw.(AskUserResponse)
	if resp.Cancelled {
		return message.ToolResult{LLMContent: "User cancelled the question prompt without answering."}
	}

	var sb strings.Builder
	sb.WriteString("User responses:\n")
	for idx, q := range i.questions {
		answers := resp.Answers[idx]
		if len(answers) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s: %s", q.Header, strings.Join(answers, ", "))
	}
	return message.ToolResult{LLMContent: sb.String()}
}
