package tool

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aq-cli/aq/internal/message"
)

const maxGlobResults = 100

// ignoredDirs are directories skipped during a native tree walk.
var ignoredDirs = map[string]bool{
	"node_modules": true, ".git": true, ".svn": true, ".hg": true,
	"vendor": true, "__pycache__": true, ".cache": true, "dist": true, "build": true,
}

// GlobBuilder finds files matching a glob pattern via a native directory
// walk (doublestar), never shelling out to `find` (Open Question
// resolution, see SPEC_FULL.md).
type GlobBuilder struct{}

func (GlobBuilder) Name() string        { return "Glob" }
func (GlobBuilder) DisplayName() string { return "Glob" }
func (GlobBuilder) Description() string {
	return "Find files matching a glob pattern (** supported), newest modified first."
}
func (GlobBuilder) Kind() Kind { return KindReadOnly }

func (GlobBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{"type": "string"},
			"path":    map[string]any{"type": "string", "description": "Base directory. Default cwd."},
		},
		"required": []string{"pattern"},
	}
}

func (b GlobBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	pattern, _ := params["pattern"].(string)
	if pattern == "" {
		return nil, &ToolError{Message: "pattern is required"}
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, &ToolError{Message: "invalid glob pattern: " + pattern}
	}
	base := ictx.CWD
	if p, ok := params["path"].(string); ok && p != "" {
		if filepath.IsAbs(p) {
			base = p
		} else {
			base = filepath.Join(ictx.CWD, p)
		}
	}
	return &globInvocation{pattern: pattern, base: base}, nil
}

type globInvocation struct{ pattern, base string }

func (i *globInvocation) Describe() string { return i.pattern + " in " + i.base }

func (i *globInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *globInvocation) Execute(ctx context.Context) message.ToolResult {
	if _, err := os.Stat(i.base); err != nil {
		return message.ToolResult{Error: "path not found: " + i.base}
	}

	type match struct {
		path string
		mod  int64
	}
	var matches []match

	err := filepath.WalkDir(i.base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			if ignoredDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(i.base, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		ok, err := doublestar.Match(i.pattern, rel)
		if err != nil || !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		matches = append(matches, match{path: rel, mod: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil && err != context.Canceled {
		return message.ToolResult{Error: "glob error: " + err.Error()}
	}

	sort.Slice(matches, func(a, c int) bool { return matches[a].mod > matches[c].mod })
	truncated := len(matches) > maxGlobResults
	if truncated {
		matches = matches[:maxGlobResults]
	}

	var sb strings.Builder
	for _, m := range matches {
		sb.WriteString(m.path)
		sb.WriteString("\n")
	}
	if len(matches) == 0 {
		return message.ToolResult{LLMContent: "(no files matched)"}
	}
	out := sb.String()
	if truncated {
		out += "... (truncated)\n"
	}
	return message.ToolResult{LLMContent: out, Data: map[string]any{"count": len(matches)}}
}
