package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/tool/permission"
)

// EditBuilder performs an exact string replacement inside an existing file.
type EditBuilder struct{}

func (EditBuilder) Name() string        { return "Edit" }
func (EditBuilder) DisplayName() string { return "Edit" }
func (EditBuilder) Description() string {
	return "Replace an exact string occurrence in a file with a new string."
}
func (EditBuilder) Kind() Kind { return KindMutating }

func (EditBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path":   map[string]any{"type": "string"},
			"old_string":  map[string]any{"type": "string"},
			"new_string":  map[string]any{"type": "string"},
			"replace_all": map[string]any{"type": "boolean"},
		},
		"required": []string{"file_path", "old_string", "new_string"},
	}
}

func (b EditBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	filePath, _ := params["file_path"].(string)
	oldString, ok1 := params["old_string"].(string)
	newString, ok2 := params["new_string"].(string)
	if filePath == "" {
		return nil, &ToolError{Message: "file_path is required"}
	}
	if !ok1 || !ok2 {
		return nil, &ToolError{Message: "old_string and new_string are required"}
	}
	if oldString == newString {
		return nil, &ToolError{Message: "old_string and new_string must differ"}
	}
	replaceAll, _ := params["replace_all"].(bool)
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(ictx.CWD, filePath)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ToolError{Message: "file not found: " + filePath}
		}
		return nil, &ToolError{Message: "failed to read file: " + err.Error()}
	}
	oldContent := string(content)

	matchedOld := oldString
	if !strings.Contains(oldContent, oldString) {
		// Fallback: retry against a whitespace-collapsed view of both sides,
		// then map the match back onto the original content. Handles the
		// common case of a model reproducing code with re-indented or
		// re-wrapped whitespace.
		fixed, ok := fuzzyLocate(oldContent, oldString)
		if !ok {
			return nil, &ToolError{Message: "old_string not found in file"}
		}
		matchedOld = fixed
	}

	count := strings.Count(oldContent, matchedOld)
	if !replaceAll && count > 1 {
		return nil, &ToolError{Message: fmt.Sprintf("old_string is not unique in file (%d occurrences); pass replace_all or include more context", count)}
	}

	var newContent string
	if replaceAll {
		newContent = strings.ReplaceAll(oldContent, matchedOld, newString)
	} else {
		newContent = strings.Replace(oldContent, matchedOld, newString, 1)
	}

	return &editInvocation{
		path: filePath, oldContent: oldContent, newContent: newContent,
		replaceCount: count, orReplaceAll: replaceAll,
	}, nil
}

// fuzzyLocate finds needle in haystack after collapsing runs of whitespace
// on both sides, returning the verbatim haystack substring that matched.
func fuzzyLocate(haystack, needle string) (string, bool) {
	normNeedle := collapseWhitespace(needle)
	if normNeedle == "" {
		return "", false
	}
	lines := strings.Split(haystack, "\n")
	needleLines := strings.Count(needle, "\n") + 1
	for i := 0; i+needleLines <= len(lines); i++ {
		candidate := strings.Join(lines[i:i+needleLines], "\n")
		if collapseWhitespace(candidate) == normNeedle {
			return candidate, true
		}
	}
	return "", false
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

type editInvocation struct {
	path                   string
	oldContent, newContent string
	replaceCount           int
	orReplaceAll           bool
}

func (i *editInvocation) Describe() string { return i.path }

func (i *editInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails {
	return &message.ConfirmationDetails{
		Kind:     message.ConfirmEdit,
		Title:    "Edit file",
		FilePath: i.path,
		Diff:     permission.UnifiedDiff(i.path, i.oldContent, i.newContent),
	}
}

func (i *editInvocation) Execute(ctx context.Context) message.ToolResult {
	if err := os.WriteFile(i.path, []byte(i.newContent), 0644); err != nil {
		return message.ToolResult{Error: "failed to write file: " + err.Error()}
	}
	return message.ToolResult{LLMContent: fmt.Sprintf("Edited %s (%d replacement(s))", i.path, i.replaceCount)}
}
