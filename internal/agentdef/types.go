// Package agentdef discovers and stores sub-agent definitions: named,
// reusable agent configurations (model, permission mode, tool access,
// system prompt, skills) loaded from built-ins and from Markdown files with
// YAML frontmatter under .aq/agents/*.md (SPEC_FULL "Sub-agent and skill
// discovery"). It feeds the Prompt Assembler's (C13) Sub-Agents section and
// the Task tool's agent catalogue; it does not execute agents itself — that
// is internal/agent's job (C9).
package agentdef

// PermissionMode controls how a spawned agent handles tool confirmations.
type PermissionMode string

const (
	PermissionDefault     PermissionMode = "default"
	PermissionAcceptEdits PermissionMode = "acceptEdits"
	PermissionDontAsk     PermissionMode = "dontAsk"
	PermissionPlan        PermissionMode = "plan"
)

// ToolAccessMode controls how an agent's tool list is computed.
type ToolAccessMode string

const (
	ToolAccessAllowlist ToolAccessMode = "allowlist"
	ToolAccessDenylist  ToolAccessMode = "denylist"
)

// ToolAccess configures which tools an agent type may use.
type ToolAccess struct {
	Mode  ToolAccessMode `yaml:"mode" json:"mode"`
	Allow []string       `yaml:"allow,omitempty" json:"allow,omitempty"`
	Deny  []string       `yaml:"deny,omitempty" json:"deny,omitempty"`
}

// AgentConfig is one named agent type's configuration.
type AgentConfig struct {
	Name           string         `yaml:"name" json:"name"`
	Description    string         `yaml:"description" json:"description"`
	Model          string         `yaml:"model" json:"model"`
	PermissionMode PermissionMode `yaml:"permission-mode" json:"permission_mode"`
	Tools          ToolAccess     `yaml:"tools" json:"tools"`
	Skills         []string       `yaml:"skills,omitempty" json:"skills,omitempty"`
	SystemPrompt   string         `yaml:"system-prompt,omitempty" json:"system_prompt,omitempty"`
	MaxTurns       int            `yaml:"max-turns" json:"max_turns"`
	Background     bool           `yaml:"background" json:"background"`

	// SourceFile is set for file-defined agents; the full system prompt
	// body is loaded lazily from it on first GetSystemPrompt call.
	SourceFile          string `yaml:"-" json:"-"`
	systemPromptLoaded  bool   `yaml:"-" json:"-"`
}

// GetSystemPrompt returns the system prompt, lazily loading the body from
// SourceFile on first access for file-defined agents.
func (c *AgentConfig) GetSystemPrompt() string {
	if c.systemPromptLoaded || c.SourceFile == "" {
		return c.SystemPrompt
	}
	c.systemPromptLoaded = true
	if prompt := LoadAgentSystemPrompt(c.SourceFile); prompt != "" {
		c.SystemPrompt = prompt
	}
	return c.SystemPrompt
}

// DefaultMaxTurns bounds an agent's run when its config doesn't set one.
const DefaultMaxTurns = 100
