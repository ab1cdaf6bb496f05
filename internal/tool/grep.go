package tool

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aq-cli/aq/internal/message"
)

const (
	maxGrepMatches = 50
	maxGrepFiles   = 1000
)

// GrepBuilder searches file contents with a regular expression.
type GrepBuilder struct{}

func (GrepBuilder) Name() string        { return "Grep" }
func (GrepBuilder) DisplayName() string { return "Grep" }
func (GrepBuilder) Description() string {
	return "Search file contents for a regular expression, case-insensitively."
}
func (GrepBuilder) Kind() Kind { return KindReadOnly }

func (GrepBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{"type": "string"},
			"path":    map[string]any{"type": "string"},
			"include": map[string]any{"type": "string", "description": "Glob filter on file name, e.g. '*.go'"},
		},
		"required": []string{"pattern"},
	}
}

func (b GrepBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	pattern, _ := params["pattern"].(string)
	if pattern == "" {
		return nil, &ToolError{Message: "pattern is required"}
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, &ToolError{Message: "invalid pattern: " + err.Error()}
	}
	base := ictx.CWD
	if p, ok := params["path"].(string); ok && p != "" {
		if filepath.IsAbs(p) {
			base = p
		} else {
			base = filepath.Join(ictx.CWD, p)
		}
	}
	include, _ := params["include"].(string)
	return &grepInvocation{re: re, pattern: pattern, base: base, include: include}, nil
}

type grepInvocation struct {
	re      *regexp.Regexp
	pattern, base, include string
}

func (i *grepInvocation) Describe() string { return fmt.Sprintf("%q in %s", i.pattern, i.base) }

func (i *grepInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

func (i *grepInvocation) Execute(ctx context.Context) message.ToolResult {
	info, err := os.Stat(i.base)
	if err != nil {
		return message.ToolResult{Error: "path not found: " + i.base}
	}

	var sb strings.Builder
	matchCount := 0
	filesSearched := 0

	search := func(path, rel string) error {
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()
		head := make([]byte, 512)
		n, _ := f.Read(head)
		for _, b := range head[:n] {
			if b == 0 {
				return nil
			}
		}
		f.Seek(0, 0)
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if i.re.MatchString(line) {
				text := strings.TrimSpace(line)
				if len(text) > maxLineLength {
					text = text[:maxLineLength] + "..."
				}
				fmt.Fprintf(&sb, "%s:%d: %s\n", rel, lineNo, text)
				matchCount++
				if matchCount >= maxGrepMatches {
					return filepath.SkipAll
				}
			}
		}
		return nil
	}

	if !info.IsDir() {
		search(i.base, filepath.Base(i.base))
	} else {
		filepath.WalkDir(i.base, func(path string, d os.DirEntry, err error) error {
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
			if i.include != "" {
				if ok, _ := filepath.Match(i.include, d.Name()); !ok {
					return nil
				}
			}
			rel, err := filepath.Rel(i.base, path)
			if err != nil {
				rel = path
			}
			filesSearched++
			if filesSearched > maxGrepFiles {
				return filepath.SkipAll
			}
			return search(path, rel)
		})
	}

	if matchCount == 0 {
		return message.ToolResult{LLMContent: "(no matches found)"}
	}
	out := sb.String()
	if matchCount >= maxGrepMatches {
		out += "... (truncated)\n"
	}
	return message.ToolResult{LLMContent: out, Data: map[string]any{"match_count": matchCount}}
}
