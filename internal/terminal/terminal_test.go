package terminal_test

import (
	"strings"
	"testing"

	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/terminal"
)

func feed(m *terminal.Machine, s string) []terminal.Action {
	var all []terminal.Action
	for i := 0; i < len(s); i++ {
		all = append(all, m.HandleInput(s[i])...)
	}
	return all
}

func TestNormalForwardsBytes(t *testing.T) {
	m := terminal.New()
	acts := feed(m, "ls")
	if len(acts) != 2 || acts[0].Kind != terminal.ActionForward {
		t.Fatalf("acts = %+v", acts)
	}
}

func TestAtSignAtLineStartEntersPending(t *testing.T) {
	m := terminal.New()
	acts := m.HandleInput('@')
	if m.State() != terminal.Pending {
		t.Fatalf("state = %v, want Pending", m.State())
	}
	if len(acts) != 1 || acts[0].Kind != terminal.ActionEchoAtSign {
		t.Fatalf("acts = %+v", acts)
	}
}

func TestAtSignNotAtLineStartForwarded(t *testing.T) {
	m := terminal.New()
	feed(m, "x") // types a printable byte; shell hasn't echoed a newline back
	m.HandleShellOutput([]byte("x"))
	acts := m.HandleInput('@')
	if m.State() != terminal.Normal {
		t.Fatalf("state = %v, want Normal", m.State())
	}
	if len(acts) != 1 || acts[0].Kind != terminal.ActionForward || acts[0].Bytes[0] != '@' {
		t.Fatalf("acts = %+v", acts)
	}
}

func TestPendingSpaceEntersCapturing(t *testing.T) {
	m := terminal.New()
	m.HandleInput('@')
	m.HandleInput(' ')
	if m.State() != terminal.Capturing {
		t.Fatalf("state = %v, want Capturing", m.State())
	}
}

func TestPendingBackspaceReturnsToNormal(t *testing.T) {
	m := terminal.New()
	m.HandleInput('@')
	acts := m.HandleInput(0x7f)
	if m.State() != terminal.Normal {
		t.Fatalf("state = %v, want Normal", m.State())
	}
	if len(acts) != 1 || acts[0].Kind != terminal.ActionEraseLocalEcho {
		t.Fatalf("acts = %+v", acts)
	}
}

func TestPendingOtherByteForwardsBothAndReturnsNormal(t *testing.T) {
	m := terminal.New()
	m.HandleInput('@')
	acts := m.HandleInput('x')
	if m.State() != terminal.Normal {
		t.Fatalf("state = %v, want Normal", m.State())
	}
	if len(acts) != 2 || acts[1].Kind != terminal.ActionForward || string(acts[1].Bytes) != "@x" {
		t.Fatalf("acts = %+v", acts)
	}
}

func TestCapturingEnterStartsAgent(t *testing.T) {
	m := terminal.New()
	m.HandleInput('@')
	m.HandleInput(' ')
	feed(m, "fix the bug")
	acts := m.HandleInput('\r')
	if len(acts) != 1 || acts[0].Kind != terminal.ActionStartAgent || acts[0].Query != "fix the bug" {
		t.Fatalf("acts = %+v", acts)
	}
	if m.State() != terminal.Normal {
		t.Fatalf("state = %v, want Normal", m.State())
	}
}

func TestCapturingCtrlCAborts(t *testing.T) {
	m := terminal.New()
	m.HandleInput('@')
	m.HandleInput(' ')
	feed(m, "partial")
	acts := m.HandleInput(0x03)
	if len(acts) != 1 || acts[0].Kind != terminal.ActionAbortCapture {
		t.Fatalf("acts = %+v", acts)
	}
	if m.State() != terminal.Normal {
		t.Fatalf("state = %v, want Normal", m.State())
	}
}

func TestCapturingBackspaceShrinksBuffer(t *testing.T) {
	m := terminal.New()
	m.HandleInput('@')
	m.HandleInput(' ')
	feed(m, "abc")
	m.HandleInput(0x7f)
	acts := m.HandleInput('\r')
	if acts[0].Query != "ab" {
		t.Fatalf("Query = %q, want %q", acts[0].Query, "ab")
	}
}

func TestAgentStreamingSwallowsExceptCtrlC(t *testing.T) {
	m := terminal.New()
	m.EnterAgentStreaming()
	if acts := m.HandleInput('x'); acts != nil {
		t.Fatalf("acts = %+v, want nil", acts)
	}
	acts := m.HandleInput(0x03)
	if len(acts) != 1 || acts[0].Kind != terminal.ActionAbort {
		t.Fatalf("acts = %+v", acts)
	}
}

func TestAgentConfirmingEnterProceedsOnce(t *testing.T) {
	m := terminal.New()
	m.EnterAgentConfirming(false)
	acts := m.HandleInput('\r')
	if len(acts) != 1 || acts[0].Outcome != message.ProceedOnce {
		t.Fatalf("acts = %+v", acts)
	}
	if m.State() != terminal.AgentExecuting {
		t.Fatalf("state = %v, want AgentExecuting", m.State())
	}
}

func TestAgentConfirmingYOnlyProceedsAlwaysForPathAccess(t *testing.T) {
	m := terminal.New()
	m.EnterAgentConfirming(false)
	if acts := m.HandleInput('y'); acts != nil {
		t.Fatalf("acts = %+v, want nil (not PathAccess)", acts)
	}

	m2 := terminal.New()
	m2.EnterAgentConfirming(true)
	acts := m2.HandleInput('y')
	if len(acts) != 1 || acts[0].Outcome != message.ProceedAlways {
		t.Fatalf("acts = %+v", acts)
	}
}

func TestAgentConfirmingCtrlCCancels(t *testing.T) {
	m := terminal.New()
	m.EnterAgentConfirming(false)
	acts := m.HandleInput(0x03)
	if len(acts) != 1 || acts[0].Outcome != message.Cancel {
		t.Fatalf("acts = %+v", acts)
	}
	if m.State() != terminal.Normal {
		t.Fatalf("state = %v, want Normal", m.State())
	}
}

func TestAgentAskingSubmitsLine(t *testing.T) {
	m := terminal.New()
	m.EnterAgentAsking()
	feed(m, "yes")
	acts := m.HandleInput('\n')
	if len(acts) != 1 || acts[0].Kind != terminal.ActionResolveAsk || acts[0].Text != "yes" {
		t.Fatalf("acts = %+v", acts)
	}
}

func TestAgentAskingCtrlCSubmitsEmpty(t *testing.T) {
	m := terminal.New()
	m.EnterAgentAsking()
	feed(m, "partial")
	acts := m.HandleInput(0x03)
	if len(acts) != 1 || acts[0].Text != "" {
		t.Fatalf("acts = %+v", acts)
	}
}

func TestPasteCollapsingByLineCount(t *testing.T) {
	m := terminal.New()
	m.HandleInput('@')
	m.HandleInput(' ')
	m.SetClipboardReader(func() (string, error) {
		return strings.Repeat("line\n", 10), nil
	})
	m.HandleInput(0x16) // Ctrl+V
	acts := m.HandleInput('\r')
	if !strings.Contains(acts[0].Query, "line\n") {
		t.Fatalf("Query did not restore full paste: %q", acts[0].Query)
	}
}

func TestPasteNotCollapsedWhenSmall(t *testing.T) {
	m := terminal.New()
	m.HandleInput('@')
	m.HandleInput(' ')
	m.SetClipboardReader(func() (string, error) { return "short", nil })
	m.HandleInput(0x16)
	acts := m.HandleInput('\r')
	if acts[0].Query != "short" {
		t.Fatalf("Query = %q, want %q", acts[0].Query, "short")
	}
}

func TestBracketedPasteEmbeddedCRDoesNotSubmit(t *testing.T) {
	m := terminal.New()
	m.HandleInput('@')
	m.HandleInput(' ')
	feed(m, "\x1b[200~line one\rline two\x1b[201~")
	if m.State() != terminal.Capturing {
		t.Fatalf("state = %v, want Capturing (embedded CR must not submit)", m.State())
	}
	acts := m.HandleInput('\r')
	if acts[0].Query != "line one\rline two" {
		t.Fatalf("Query = %q", acts[0].Query)
	}
}

func TestResizeDuringAgentTurnSuppressesRepaint(t *testing.T) {
	m := terminal.New()
	m.EnterAgentStreaming()
	acts := m.HandleResize()
	if len(acts) != 1 || acts[0].Kind != terminal.ActionSuppressRepaint {
		t.Fatalf("acts = %+v", acts)
	}
}

func TestResizeInNormalFarFromAgentOutputDoesNotSuppress(t *testing.T) {
	m := terminal.New()
	acts := m.HandleResize()
	if acts != nil {
		t.Fatalf("acts = %+v, want nil", acts)
	}
}
