package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/aq-cli/aq/internal/message"
)

// LsBuilder lists one directory's immediate entries. Named in the
// plan-mode read-only tool subset but absent from the teacher's tool
// package; added to round out non-destructive exploration alongside Read,
// Glob, and Grep.
type LsBuilder struct{}

func (LsBuilder) Name() string        { return "Ls" }
func (LsBuilder) DisplayName() string { return "List Directory" }
func (LsBuilder) Description() string { return "List the immediate entries of a directory." }
func (LsBuilder) Kind() Kind          { return KindReadOnly }

func (LsBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "Directory to list. Default cwd."},
		},
	}
}

func (b LsBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	path := ictx.CWD
	if p, ok := params["path"].(string); ok && p != "" {
		if filepath.IsAbs(p) {
			path = p
		} else {
			path = filepath.Join(ictx.CWD, p)
		}
	}
	return &lsInvocation{path: path}, nil
}

type lsInvocation struct{ path string }

func (i *lsInvocation) Describe() string { return i.path }

func (i *lsInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *lsInvocation) Execute(ctx context.Context) message.ToolResult {
	entries, err := os.ReadDir(i.path)
	if err != nil {
		if os.IsNotExist(err) {
			return message.ToolResult{Error: "path not found: " + i.path}
		}
		return message.ToolResult{Error: "failed to list directory: " + err.Error()}
	}
	sort.Slice(entries, func(a, c int) bool { return entries[a].Name() < entries[c].Name() })

	var out string
	for _, e := range entries {
		if ignoredDirs[e.Name()] {
			continue
		}
		suffix := ""
		if e.IsDir() {
			suffix = "/"
		}
		out += fmt.Sprintf("%s%s\n", e.Name(), suffix)
	}
	if out == "" {
		return message.ToolResult{LLMContent: "(empty directory)"}
	}
	return message.ToolResult{LLMContent: out}
}
