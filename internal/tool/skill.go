package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/skill"
)

// SkillBuilder loads a packaged skill's instructions into the conversation.
type SkillBuilder struct{}

func (SkillBuilder) Name() string        { return "Skill" }
func (SkillBuilder) DisplayName() string { return "Skill" }
func (SkillBuilder) Description() string { return "Execute a skill within the main conversation." }
func (SkillBuilder) Kind() Kind          { return KindMutating }

func (SkillBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"skill": map[string]any{"type": "string"},
			"args":  map[string]any{"type": "string"},
		},
		"required": []string{"skill"},
	}
}

func (b SkillBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	name, _ := params["skill"].(string)
	if name == "" {
		return nil, &ToolError{Message: "skill parameter is required"}
	}
	if skill.DefaultRegistry == nil {
		return nil, &ToolError{Message: "skill registry not initialized"}
	}
	sk, ok := skill.DefaultRegistry.Get(name)
	if !ok {
		sk = skill.DefaultRegistry.FindByPartialName(name)
		if sk == nil {
			return nil, &ToolError{Message: "skill not found: " + name}
		}
	}
	if !sk.IsEnabled() {
		return nil, &ToolError{Message: "skill is disabled: " + sk.FullName()}
	}
	args, _ := params["args"].(string)
	return &skillInvocation{sk: sk, args: args}, nil
}

type skillInvocation struct {
	sk   *skill.Skill
	args string
}

func (i *skillInvocation) Describe() string {
	if i.args == "" {
		return "load skill: " + i.sk.FullName()
	}
	return fmt.Sprintf("load skill: %s with args: %s", i.sk.FullName(), i.args)
}

func (i *skillInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *skillInvocation) Execute(ctx context.Context) message.ToolResult {
	instructions := i.sk.GetInstructions()
	if instructions == "" {
		return message.ToolResult{Error: "skill has no instructions: " + i.sk.FullName()}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<skill-invocation name=%q>\n", i.sk.FullName())
	if i.args != "" {
		fmt.Fprintf(&sb, "User arguments: %s\n\n", i.args)
	}
	if i.sk.SkillDir != "" {
		if len(i.sk.Scripts) > 0 {
			sb.WriteString("Available scripts (use Bash to execute):\n")
			for _, s := range i.sk.Scripts {
				fmt.Fprintf(&sb, "  - %s/scripts/%s\n", i.sk.SkillDir, s)
			}
			sb.WriteString("\n")
		}
		if len(i.sk.References) > 0 {
			sb.WriteString("Reference files (use Read when needed):\n")
			for _, r := range i.sk.References {
				fmt.Fprintf(&sb, "  - %s/references/%s\n", i.sk.SkillDir, r)
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString(instructions)
	sb.WriteString("\n</skill-invocation>")

	return message.ToolResult{
		LLMContent: sb.String(),
		Data: map[string]any{
			"skill_name":   i.sk.FullName(),
			"script_count": len(i.sk.Scripts),
			"ref_count":    len(i.sk.References),
		},
	}
}
