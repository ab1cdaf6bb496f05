// Package termctx buffers terminal output for the agent to read back (C12):
// a bounded, ANSI-stripped scrollback plus a formatter that renders it (or,
// when a block.Tracker is attached, the structured recent command blocks)
// as a <terminal_context> prompt fragment.
package termctx

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/aq-cli/aq/internal/block"
)

// maxLines bounds the retained scrollback (§4.12).
const maxLines = 100

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\][^\x07]*\x07`)

// stripANSI removes SGR/OSC escape sequences so the agent sees plain text.
func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// Collector accumulates the shell's visible output, line-bounded, for
// inclusion in the agent's prompt.
type Collector struct {
	mu      sync.Mutex
	cwd     string
	shell   string
	lines   []string
	partial string
	seq     int // advances once per pushed line; doubles as a checkpoint
	tracker *block.Tracker
}

// New creates an empty collector for the given cwd/shell.
func New(cwd, shell string) *Collector {
	return &Collector{cwd: cwd, shell: shell}
}

// AttachTracker lets ToPromptString prefer C11's structured blocks over the
// raw scrollback tail when one is available.
func (c *Collector) AttachTracker(t *block.Tracker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker = t
}

// SetCwd updates the directory reported in the prompt fragment.
func (c *Collector) SetCwd(cwd string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cwd = cwd
}

// PushOutput appends raw PTY bytes, stripping ANSI and splitting on
// newlines; only full lines count toward the 100-line cap, so a long
// unterminated line doesn't get silently dropped mid-write.
func (c *Collector) PushOutput(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	text := c.partial + stripANSI(string(data))
	parts := strings.Split(text, "\n")
	c.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		c.lines = append(c.lines, line)
		c.seq++
	}
	if len(c.lines) > maxLines {
		c.lines = c.lines[len(c.lines)-maxLines:]
	}
}

// Checkpoint is an opaque cursor into the collector's line sequence,
// returned by GetOutputSince and meant to be passed back on the next call.
type Checkpoint int

// GetOutputSince returns the text pushed since checkpoint and a new
// checkpoint to resume from. A zero-value checkpoint returns everything
// currently retained.
func (c *Collector) GetOutputSince(checkpoint Checkpoint) (text string, newCheckpoint Checkpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.seq
	retained := len(c.lines)
	oldest := total - retained

	start := int(checkpoint) - oldest
	if start < 0 {
		start = 0
	}
	if start > retained {
		start = retained
	}
	return strings.Join(c.lines[start:], "\n"), Checkpoint(total)
}

// ToPromptString renders a <terminal_context> fragment: structured recent
// blocks if a tracker is attached and has history, otherwise the raw tail.
func (c *Collector) ToPromptString(maxBlocks int) string {
	c.mu.Lock()
	tracker := c.tracker
	cwd := c.cwd
	shell := c.shell
	lines := append([]string(nil), c.lines...)
	c.mu.Unlock()

	var body strings.Builder
	fmt.Fprintf(&body, "<terminal_context>\ncwd: %s\nshell: %s\n", cwd, shell)

	if tracker != nil {
		hist := tracker.History()
		if len(hist) > 0 {
			if len(hist) > maxBlocks {
				hist = hist[len(hist)-maxBlocks:]
			}
			body.WriteString("recent_blocks:\n")
			for _, b := range hist {
				fmt.Fprintf(&body, "- $ %s (exit %d)\n", b.Command, b.ExitCode)
				if b.Output != "" {
					fmt.Fprintf(&body, "%s\n", indent(b.Output))
				}
			}
			body.WriteString("</terminal_context>")
			return body.String()
		}
	}

	body.WriteString("output:\n")
	body.WriteString(strings.Join(lines, "\n"))
	body.WriteString("\n</terminal_context>")
	return body.String()
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
