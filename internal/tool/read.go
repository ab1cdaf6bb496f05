package tool

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aq-cli/aq/internal/message"
)

const (
	maxReadLines  = 2000
	maxLineLength = 500
)

// ReadBuilder reads file contents, never requires confirmation (KindReadOnly).
type ReadBuilder struct{}

func (ReadBuilder) Name() string        { return "Read" }
func (ReadBuilder) DisplayName() string { return "Read" }
func (ReadBuilder) Description() string {
	return "Read a file's contents, optionally starting at a zero-based line offset."
}
func (ReadBuilder) Kind() Kind { return KindReadOnly }

func (ReadBuilder) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{"type": "string", "description": "Absolute or cwd-relative path"},
			"offset":    map[string]any{"type": "integer", "description": "Zero-based line to start from. Default 0."},
			"limit":     map[string]any{"type": "integer", "description": "Maximum lines to read. Default 2000."},
		},
		"required": []string{"file_path"},
	}
}

func (b ReadBuilder) Build(rawArgs string, ictx *InvocationContext) (Invocation, error) {
	schema, _ := CompileSchema(b.Name(), b.Schema())
	params, err := ValidateArgs(schema, rawArgs)
	if err != nil {
		return nil, err
	}
	filePath, _ := params["file_path"].(string)
	if filePath == "" {
		return nil, &ToolError{Message: "file_path is required"}
	}
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(ictx.CWD, filePath)
	}
	offset := 0
	if v, ok := asInt(params["offset"]); ok && v > 0 {
		offset = v
	}
	limit := maxReadLines
	if v, ok := asInt(params["limit"]); ok && v > 0 {
		limit = v
	}
	return &readInvocation{path: filePath, offset: offset, limit: limit}, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

type readInvocation struct {
	path          string
	offset, limit int
}

func (i *readInvocation) Describe() string { return i.path }

func (i *readInvocation) MaybeConfirmationDetails() *message.ConfirmationDetails { return nil }

// Execute reads lines [offset, offset+limit) using a zero-based offset
// (Open Question resolution, see SPEC_FULL.md).
func (i *readInvocation) Execute(ctx context.Context) message.ToolResult {
	info, err := os.Stat(i.path)
	if err != nil {
		if os.IsNotExist(err) {
			return message.ToolResult{Error: "file not found: " + i.path}
		}
		return message.ToolResult{Error: "failed to stat file: " + err.Error()}
	}
	if info.IsDir() {
		return message.ToolResult{Error: "path is a directory: " + i.path}
	}

	file, err := os.Open(i.path)
	if err != nil {
		return message.ToolResult{Error: "failed to open file: " + err.Error()}
	}
	defer file.Close()

	header := make([]byte, 512)
	n, _ := file.Read(header)
	for _, b := range header[:n] {
		if b == 0 {
			return message.ToolResult{LLMContent: fmt.Sprintf("Binary file detected: %s (%d bytes)", i.path, info.Size())}
		}
	}
	file.Seek(0, 0)

	var sb strings.Builder
	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	lineNo := -1
	read := 0
	truncated := false
	for scanner.Scan() {
		lineNo++
		if lineNo < i.offset {
			continue
		}
		if read >= i.limit {
			truncated = true
			break
		}
		text := scanner.Text()
		if len(text) > maxLineLength {
			text = text[:maxLineLength] + "..."
		}
		fmt.Fprintf(&sb, "%6d\t%s\n", lineNo, text)
		read++
	}
	if err := scanner.Err(); err != nil {
		return message.ToolResult{Error: "error reading file: " + err.Error()}
	}
	if read == 0 {
		return message.ToolResult{LLMContent: "(file is empty or offset past end of file)"}
	}
	out := sb.String()
	if truncated {
		out += fmt.Sprintf("... (truncated after %d lines)\n", read)
	}
	return message.ToolResult{LLMContent: out, Data: map[string]any{"line_count": read}}
}
