// Package system assembles the agent's system prompt (C13). The prompt is
// built from independently toggleable sections — Preamble, Core Mandates,
// Sub-Agents, Agent Skills, Hook Context, Primary Workflows or Planning
// Workflow (mutually exclusive), Operational Guidelines, Sandbox,
// Autonomous Mode, Git Repository, Final Reminder — each gated by an
// AQ_<SECTION> environment variable and composed with the user's memory
// files and the tool catalogue.
package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/aq-cli/aq/internal/agentdef"
	"github.com/aq-cli/aq/internal/hooks"
	"github.com/aq-cli/aq/internal/skill"
)

// maxImportDepth is the maximum recursion depth for @import resolution.
const maxImportDepth = 5

// Config holds everything BuildPrompt needs to assemble one prompt.
type Config struct {
	Provider string // Provider name: anthropic, openai, google, moonshot
	Model    string
	Cwd      string
	IsGit    bool

	PlanMode    bool // selects the Planning Workflow section over Primary Workflows
	Interactive bool // phrasing hint for the Preamble
	Autonomous  bool // includes the Autonomous Mode section
	Sandbox     string

	Memory      string   // pre-loaded memory content; BuildPrompt loads it if empty
	AgentPrompt string   // agentdef.AgentConfig.GetSystemPrompt() override, if any
	Tools       []string // names of tools available this turn, for ${<tool>_ToolName} substitution
	HookContext string   // rendered hook-injected additional context, if any
	Extra       []string // additional ad-hoc sections
}

// System is a reusable assembler bound to one conversation's static facts.
type System struct {
	Provider string
	Model    string
	Cwd      string
	IsGit    bool
	PlanMode bool
	Extra    []string
	Memory   string
	Hooks    *hooks.Engine
	Tools    []string
}

// Prompt builds the complete system prompt from the System's fields. When
// Hooks is set, the SessionStart hook's AdditionalContext (if any) is
// folded in as the prompt's Hook Context section.
func (s *System) Prompt() string {
	memory := s.Memory
	if memory == "" {
		memory = LoadMemory(s.Cwd)
	}
	cfg := Config{
		Provider:    s.Provider,
		Model:       s.Model,
		Cwd:         s.Cwd,
		IsGit:       s.IsGit,
		PlanMode:    s.PlanMode,
		Memory:      memory,
		Tools:       s.Tools,
		Extra:       s.Extra,
		HookContext: s.hookContext(),
	}
	return BuildPrompt(cfg)
}

// hookContext runs the SessionStart hook, if any are registered, and
// returns the additional context it wants folded into the prompt.
func (s *System) hookContext() string {
	if s.Hooks == nil || !s.Hooks.HasHooks(hooks.SessionStart) {
		return ""
	}
	outcome := s.Hooks.Execute(context.Background(), hooks.SessionStart, hooks.HookInput{Cwd: s.Cwd})
	return outcome.AdditionalContext
}

// section is included when env var AQ_<KEY> is not "0" or "false".
func sectionEnabled(key string) bool {
	v := strings.ToLower(os.Getenv("AQ_" + key))
	return v != "0" && v != "false"
}

// BuildPrompt assembles the system prompt per the section list in order:
// Preamble, Core Mandates, Sub-Agents, Agent Skills, Hook Context, Primary
// Workflows or Planning Workflow (mutually exclusive), Operational
// Guidelines, Sandbox, Autonomous Mode, Git Repository, Final Reminder.
//
// SYSTEM_MD overrides the whole template with the content of the file it
// points to (still subject to the substitutions below). WRITE_SYSTEM_MD
// dumps the final prompt to the named file for debugging.
func BuildPrompt(cfg Config) string {
	if override := os.Getenv("SYSTEM_MD"); override != "" {
		if data, err := os.ReadFile(override); err == nil {
			return substitute(string(data), cfg)
		}
	}

	var parts []string
	add := func(key, content string) {
		if sectionEnabled(key) && strings.TrimSpace(content) != "" {
			parts = append(parts, content)
		}
	}

	add("PREAMBLE", preamble(cfg))
	add("CORE_MANDATES", coreMandates)
	add("SUB_AGENTS", subAgentsSection())
	add("AGENT_SKILLS", availableSkillsPrompt())
	add("HOOK_CONTEXT", cfg.HookContext)

	if cfg.PlanMode {
		add("PLANNING_WORKFLOW", planningWorkflow)
	} else {
		add("PRIMARY_WORKFLOWS", primaryWorkflows)
	}

	add("OPERATIONAL_GUIDELINES", operationalGuidelines)
	add("SANDBOX", sandboxSection(cfg.Sandbox))
	if cfg.Autonomous {
		add("AUTONOMOUS_MODE", autonomousMode)
	}
	add("GIT_REPOSITORY", gitRepositorySection(cfg.IsGit))
	add("ENVIRONMENT", formatEnv(cfg))

	if cfg.Memory != "" {
		parts = append(parts, formatMemory(cfg.Memory))
	}
	parts = append(parts, cfg.Extra...)

	add("FINAL_REMINDER", finalReminder)

	result := substitute(join(parts), cfg)

	if out := os.Getenv("WRITE_SYSTEM_MD"); out != "" {
		_ = os.WriteFile(out, []byte(result), 0644)
	}

	return result
}

// substitute performs the template fill-ins described for C13:
// {{CONTEXT}}, ${AgentSkills}, ${SubAgents}, ${AvailableTools}, and
// ${<tool>_ToolName} for each declared tool.
func substitute(tpl string, cfg Config) string {
	tpl = strings.ReplaceAll(tpl, "{{CONTEXT}}", formatEnv(cfg))
	tpl = strings.ReplaceAll(tpl, "${AgentSkills}", availableSkillsPrompt())
	tpl = strings.ReplaceAll(tpl, "${SubAgents}", subAgentsSection())
	tpl = strings.ReplaceAll(tpl, "${AvailableTools}", strings.Join(cfg.Tools, ", "))
	for _, t := range cfg.Tools {
		tpl = strings.ReplaceAll(tpl, "${"+t+"_ToolName}", t)
	}
	return tpl
}

func preamble(cfg Config) string {
	mode := "You are operating as a non-interactive coding agent."
	if cfg.Interactive {
		mode = "You are operating inside a terminal, embedded next to the user's shell session."
	}
	return fmt.Sprintf("You are aq, an AI coding assistant. %s\nProvider: %s  Model: %s", mode, cfg.Provider, cfg.Model)
}

const coreMandates = `Core mandates:
- Follow existing code conventions; check imports and neighboring files before assuming a library is available.
- Make the minimal change that satisfies the request; do not refactor unrelated code.
- Never fabricate file paths, APIs, or command output.
- Prefer editing existing files over creating new ones.`

const primaryWorkflows = `Primary workflow: understand the request, locate the relevant code, make the change, verify it compiles and tests pass where feasible.`

const planningWorkflow = `Planning workflow: you are in plan mode. Gather information with read-only tools, then call ExitPlanMode with a complete implementation plan. Do not make any edits until the plan is approved.`

const operationalGuidelines = `Operational guidelines:
- Use tools instead of guessing: read files before editing them, search before assuming something doesn't exist.
- Explain destructive or hard-to-reverse actions before taking them.`

const autonomousMode = `Autonomous mode: no user is present to answer clarifying questions. Make reasonable assumptions and proceed; note them in your final summary.`

const finalReminder = `Remember: verify your changes against the user's actual request before concluding.`

func sandboxSection(mode string) string {
	switch mode {
	case "sandbox-exec":
		return "Sandbox: commands run under macOS seatbelt; filesystem writes outside the project may be denied."
	case "":
		return ""
	default:
		return "Sandbox: commands run unsandboxed; use judgment before destructive operations."
	}
}

func gitRepositorySection(isGit bool) string {
	if !isGit {
		return ""
	}
	return "Git repository: this directory is a git repo. Prefer `git status`/`git diff` to confirm state before committing."
}

// subAgentsSection renders the Sub-Agents prompt section from the agent
// type registry (names, descriptions, and tool access), deduplicated
// case-insensitively with the registry's insertion order preserved.
func subAgentsSection() string {
	return agentdef.DefaultRegistry.GetAgentPromptForLLM()
}

// availableSkillsPrompt renders the Agent Skills section, tolerating a
// registry that hasn't been initialized yet (skill.Initialize not called).
func availableSkillsPrompt() string {
	if skill.DefaultRegistry == nil {
		return ""
	}
	return skill.DefaultRegistry.GetAvailableSkillsPrompt()
}

// formatEnv generates the dynamic environment section.
func formatEnv(cfg Config) string {
	gitStatus := "No"
	if cfg.IsGit {
		gitStatus = "Yes"
	}
	return fmt.Sprintf(`<env>
Working directory: %s
Is git repo: %s
Platform: %s
Date: %s
Model: %s
</env>`, cfg.Cwd, gitStatus, runtime.GOOS,
		time.Now().Format("2006-01-02"), cfg.Model)
}

// formatMemory wraps memory content in XML tags.
func formatMemory(m string) string {
	return "<memory>\n" + m + "\n</memory>"
}

// join concatenates non-empty parts with double newlines.
func join(parts []string) string {
	var filtered []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			filtered = append(filtered, p)
		}
	}
	return strings.Join(filtered, "\n\n")
}

// MemoryFile represents a loaded memory file with metadata.
type MemoryFile struct {
	Path    string
	Size    int64
	Content string
	Level   string // "global", "project", or "local"
	Source  string // "rules" for rules directory files, empty otherwise
}

// LoadMemory loads memory content from standard locations.
// Priority: AQ.md files first, falling back to CLAUDE.md if not found.
func LoadMemory(cwd string) string {
	files := LoadMemoryFiles(cwd)
	if len(files) == 0 {
		return ""
	}
	var parts []string
	for _, f := range files {
		parts = append(parts, f.Content)
	}
	return strings.Join(parts, "\n\n")
}

// LoadMemoryFiles loads all memory files with metadata.
// Returns files in order: global, global rules, project, project rules, local.
func LoadMemoryFiles(cwd string) []MemoryFile {
	var files []MemoryFile
	homeDir, _ := os.UserHomeDir()
	seen := make(map[string]bool)

	userSources := []string{
		filepath.Join(homeDir, ".aq", "AQ.md"),
		filepath.Join(homeDir, ".claude", "CLAUDE.md"),
	}
	if f := loadMemoryFile(userSources, "global", "", seen); f != nil {
		files = append(files, *f)
	}

	userRulesDir := filepath.Join(homeDir, ".aq", "rules")
	files = append(files, loadRulesDirectory(userRulesDir, "global", seen)...)

	projectSources := []string{
		filepath.Join(cwd, ".aq", "AQ.md"),
		filepath.Join(cwd, "AQ.md"),
		filepath.Join(cwd, ".claude", "CLAUDE.md"),
		filepath.Join(cwd, "CLAUDE.md"),
	}
	if f := loadMemoryFile(projectSources, "project", "", seen); f != nil {
		files = append(files, *f)
	}

	projectRulesDir := filepath.Join(cwd, ".aq", "rules")
	files = append(files, loadRulesDirectory(projectRulesDir, "project", seen)...)

	localSources := []string{
		filepath.Join(cwd, ".aq", "AQ.local.md"),
	}
	if f := loadMemoryFile(localSources, "local", "", seen); f != nil {
		files = append(files, *f)
	}

	return files
}

// loadMemoryFile loads the first existing file from sources with @import resolution.
func loadMemoryFile(sources []string, level, source string, seen map[string]bool) *MemoryFile {
	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			continue
		}
		if seen[src] {
			continue
		}

		data, err := os.ReadFile(src)
		if err != nil {
			continue
		}

		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}

		seen[src] = true
		content = resolveImports(content, filepath.Dir(src), 0, seen)

		return &MemoryFile{
			Path:    src,
			Size:    info.Size(),
			Content: fmt.Sprintf("<!-- Source: %s -->\n%s", src, content),
			Level:   level,
			Source:  source,
		}
	}
	return nil
}

// loadRulesDirectory loads all .md files from a rules directory, sorted.
func loadRulesDirectory(dir string, level string, seen map[string]bool) []MemoryFile {
	var files []MemoryFile

	entries, err := os.ReadDir(dir)
	if err != nil {
		return files
	}

	var mdFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(strings.ToLower(name), ".md") {
			mdFiles = append(mdFiles, filepath.Join(dir, name))
		}
	}
	sort.Strings(mdFiles)

	for _, path := range mdFiles {
		if f := loadMemoryFile([]string{path}, level, "rules", seen); f != nil {
			files = append(files, *f)
		}
	}

	return files
}

// resolveImports processes @path/to/file.md import statements in content.
// Max depth is limited to prevent infinite recursion.
func resolveImports(content string, basePath string, depth int, seen map[string]bool) string {
	if depth >= maxImportDepth {
		return content
	}

	importRe := regexp.MustCompile(`(?m)^@([^\s@]+\.md)\s*$`)

	return importRe.ReplaceAllStringFunc(content, func(match string) string {
		importPath := strings.TrimPrefix(strings.TrimSpace(match), "@")

		fullPath := filepath.Clean(filepath.Join(basePath, importPath))

		if seen[fullPath] {
			return fmt.Sprintf("<!-- Skipped (cycle): @%s -->", importPath)
		}

		data, err := os.ReadFile(fullPath)
		if err != nil {
			return fmt.Sprintf("<!-- Import not found: @%s -->", importPath)
		}

		seen[fullPath] = true
		importedContent := strings.TrimSpace(string(data))
		importedContent = resolveImports(importedContent, filepath.Dir(fullPath), depth+1, seen)

		return fmt.Sprintf("<!-- Imported: %s -->\n%s", importPath, importedContent)
	})
}

// CompactPrompt returns the instruction prepended to a compression request (C7).
func CompactPrompt() string {
	return "Summarize the conversation so far, preserving file paths, decisions, and outstanding tasks. Be concise."
}

// MemoryPaths holds categorized memory file paths.
type MemoryPaths struct {
	Global       []string
	GlobalRules  string
	Project      []string
	ProjectRules string
	Local        []string
}

// GetMemoryPaths returns the search paths for memory files (legacy split).
func GetMemoryPaths(cwd string) (userPaths, projectPaths []string) {
	paths := GetAllMemoryPaths(cwd)
	return paths.Global, paths.Project
}

// GetAllMemoryPaths returns all memory paths organized by category.
func GetAllMemoryPaths(cwd string) MemoryPaths {
	homeDir, _ := os.UserHomeDir()

	return MemoryPaths{
		Global: []string{
			filepath.Join(homeDir, ".aq", "AQ.md"),
			filepath.Join(homeDir, ".claude", "CLAUDE.md"),
		},
		GlobalRules: filepath.Join(homeDir, ".aq", "rules"),
		Project: []string{
			filepath.Join(cwd, ".aq", "AQ.md"),
			filepath.Join(cwd, "AQ.md"),
			filepath.Join(cwd, ".claude", "CLAUDE.md"),
			filepath.Join(cwd, "CLAUDE.md"),
		},
		ProjectRules: filepath.Join(cwd, ".aq", "rules"),
		Local: []string{
			filepath.Join(cwd, ".aq", "AQ.local.md"),
		},
	}
}

// FindMemoryFile returns the first existing file path from the given list.
func FindMemoryFile(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ListRulesFiles returns all .md files in a rules directory, sorted.
func ListRulesFiles(rulesDir string) []string {
	entries, err := os.ReadDir(rulesDir)
	if err != nil {
		return nil
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(strings.ToLower(name), ".md") {
			files = append(files, filepath.Join(rulesDir, name))
		}
	}
	sort.Strings(files)
	return files
}

// GetFileSize returns the size of a file in bytes, or 0 if not found.
func GetFileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// FormatFileSize formats a file size for display.
func FormatFileSize(size int64) string {
	if size >= 1024*1024 {
		return fmt.Sprintf("%.1fMB", float64(size)/(1024*1024))
	}
	if size >= 1024 {
		return fmt.Sprintf("%.1fKB", float64(size)/1024)
	}
	return fmt.Sprintf("%dB", size)
}
