package termctx_test

import (
	"strings"
	"testing"

	"github.com/aq-cli/aq/internal/block"
	"github.com/aq-cli/aq/internal/termctx"
)

func TestPushOutputStripsANSI(t *testing.T) {
	c := termctx.New("/tmp", "bash")
	c.PushOutput([]byte("\x1b[32mok\x1b[0m\nplain\n"))

	text, _ := c.GetOutputSince(0)
	if text != "ok\nplain" {
		t.Fatalf("GetOutputSince = %q", text)
	}
}

func TestPushOutputCapsAt100Lines(t *testing.T) {
	c := termctx.New("/tmp", "bash")
	for i := 0; i < 150; i++ {
		c.PushOutput([]byte("line\n"))
	}
	text, _ := c.GetOutputSince(0)
	if got := len(strings.Split(text, "\n")); got != 100 {
		t.Fatalf("retained %d lines, want 100", got)
	}
}

func TestGetOutputSinceCheckpoint(t *testing.T) {
	c := termctx.New("/tmp", "bash")
	c.PushOutput([]byte("a\nb\n"))
	_, cp := c.GetOutputSince(0)

	c.PushOutput([]byte("c\n"))
	text, _ := c.GetOutputSince(cp)
	if text != "c" {
		t.Fatalf("GetOutputSince(cp) = %q, want %q", text, "c")
	}
}

func TestToPromptStringRawTail(t *testing.T) {
	c := termctx.New("/home/dev", "zsh")
	c.PushOutput([]byte("hello\n"))

	out := c.ToPromptString(5)
	if !strings.Contains(out, "cwd: /home/dev") || !strings.Contains(out, "hello") {
		t.Fatalf("ToPromptString missing expected content: %q", out)
	}
}

func TestToPromptStringStructuredBlocks(t *testing.T) {
	c := termctx.New("/home/dev", "bash")
	tr := block.New()
	c.AttachTracker(tr)

	tr.Feed([]byte("\x1b]133;A\x07\x1b]133;B\x07"))
	tr.FeedInput('l')
	tr.FeedInput('s')
	tr.Feed([]byte("\x1b]133;C\x07"))
	tr.Feed([]byte("a.txt\n"))
	tr.Feed([]byte("\x1b]133;D;0\x07"))
	<-tr.Completed()

	out := c.ToPromptString(5)
	if !strings.Contains(out, "recent_blocks:") || !strings.Contains(out, "$ ls") {
		t.Fatalf("expected structured blocks, got: %q", out)
	}
}
