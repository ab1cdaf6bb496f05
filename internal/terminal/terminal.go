// Package terminal implements the input state machine (C10) that sits
// between the terminal device and the driven shell session: a byte-at-a-time
// pump that recognizes the "@" trigger, captures a prompt while the shell is
// otherwise idle, and swallows input appropriately while an agent turn is
// streaming, confirming, executing, or asking the user something.
package terminal

import (
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/aq-cli/aq/internal/message"
)

// State is a position in the input state machine (spec §4.10).
type State int

const (
	Normal State = iota
	Pending
	Capturing
	AgentStreaming
	AgentConfirming
	AgentExecuting
	AgentAsking
)

// ActionKind discriminates what the caller should do with an Action. Modeled
// as a tagged union (single struct, Kind field selects the populated
// fields) rather than an interface hierarchy, matching the rest of the
// engine's event types.
type ActionKind int

const (
	ActionForward           ActionKind = iota // write Bytes to the shell
	ActionEchoAtSign                           // locally echo "@" (not sent to shell)
	ActionEraseLocalEcho                       // erase the locally-echoed "@"
	ActionStartAgent                           // begin an agent turn with Query
	ActionAbortCapture                         // user cancelled Capturing; restore shell prompt
	ActionAbort                                // Ctrl+C during an agent state; abort the run
	ActionResolveConfirmation                  // deliver Outcome to the pending confirmation
	ActionResolveAsk                           // deliver Text to the pending ask-user
	ActionSuppressRepaint                      // suppress repaint bytes for Duration
)

// Action is one thing the byte pump asked the caller to do.
type Action struct {
	Kind ActionKind

	Bytes []byte // ActionForward

	Query string // ActionStartAgent

	Outcome message.ConfirmationOutcome // ActionResolveConfirmation
	Text    string                      // ActionResolveAsk

	Duration time.Duration // ActionSuppressRepaint
}

const (
	ctrlC     = 0x03
	ctrlV     = 0x16
	backspace = 0x7f
	bsAlt     = 0x08
	escByte   = 0x1b
)

// pasteCollapseLines and pasteCollapseChars are the thresholds past which a
// pasted block is replaced with a placeholder in the visible buffer (§4.10).
const (
	pasteCollapseLines = 5
	pasteCollapseChars = 500
)

// bracketedPasteStart/End are the escape sequences terminals wrap pastes in
// when bracketed-paste mode is enabled.
const (
	bracketedPasteStart = "\x1b[200~"
	bracketedPasteEnd   = "\x1b[201~"
)

// resizeSuppressWindow is how long a suppressed repaint stays suppressed.
const resizeSuppressWindow = 220 * time.Millisecond

// resizeRecentAgentOutput bounds how long after an agent turn ends a resize
// still counts as "recent enough" to warrant suppression.
const resizeRecentAgentOutput = 120 * time.Second

// Machine is the C10 state machine. Zero value is not usable; use New.
type Machine struct {
	state       State
	atLineStart bool

	buf          strings.Builder // visible Capturing buffer (placeholders, not full paste text)
	pasteParts   map[string]string
	pasteCounter int

	escAccum      []byte // partial escape sequence awaiting bracketed-paste recognition
	inPaste       bool
	pasteAccum    strings.Builder

	askBuf strings.Builder

	confirmIsPathAccess bool

	lastAgentTurnEnd time.Time
	agentTurnActive  bool

	clipboard func() (string, error)
}

// New creates a Machine in Normal state at the start of a line.
func New() *Machine {
	return &Machine{
		state:       Normal,
		atLineStart: true,
		pasteParts:  make(map[string]string),
		clipboard:   clipboard.ReadAll,
	}
}

// State reports the machine's current state.
func (m *Machine) State() State { return m.state }

// SetClipboardReader overrides the clipboard source (tests inject a fake).
func (m *Machine) SetClipboardReader(f func() (string, error)) { m.clipboard = f }

// HandleShellOutput lets the machine track at-line-start from what the shell
// actually echoed, per §4.10's Normal-state invariant.
func (m *Machine) HandleShellOutput(data []byte) {
	if len(data) == 0 {
		return
	}
	last := data[len(data)-1]
	m.atLineStart = last == '\n' || last == '\r'
}

// EnterAgentStreaming transitions into AgentStreaming, swallowing input
// except Ctrl+C until the caller moves the machine on.
func (m *Machine) EnterAgentStreaming() {
	m.state = AgentStreaming
	m.agentTurnActive = true
}

// EnterAgentExecuting transitions into AgentExecuting.
func (m *Machine) EnterAgentExecuting() {
	m.state = AgentExecuting
	m.agentTurnActive = true
}

// EnterAgentConfirming transitions into AgentConfirming. isPathAccess gates
// whether 'y'/'Y' resolves to ProceedAlways (only PathAccess confirmations
// support "always allow" from a bare keypress).
func (m *Machine) EnterAgentConfirming(isPathAccess bool) {
	m.state = AgentConfirming
	m.confirmIsPathAccess = isPathAccess
}

// EnterAgentAsking transitions into AgentAsking with an empty line buffer.
func (m *Machine) EnterAgentAsking() {
	m.state = AgentAsking
	m.askBuf.Reset()
}

// FinishAgentTurn returns the machine to Normal and records the time, which
// feeds the resize-suppression window.
func (m *Machine) FinishAgentTurn() {
	m.state = Normal
	m.atLineStart = true
	m.agentTurnActive = false
	m.lastAgentTurnEnd = time.Now()
}

// HandleResize reports whether a resize arriving right now should suppress
// repaint bytes, and for how long (§4.10 Resize handling).
func (m *Machine) HandleResize() []Action {
	recent := !m.lastAgentTurnEnd.IsZero() && time.Since(m.lastAgentTurnEnd) < resizeRecentAgentOutput
	if m.agentTurnActive || (m.state == Normal && recent) {
		return []Action{{Kind: ActionSuppressRepaint, Duration: resizeSuppressWindow}}
	}
	return nil
}

// HandleInput processes one byte of user keystroke and returns the actions
// the caller should take. Multi-byte sequences (bracketed paste) are
// recognized incrementally across calls.
func (m *Machine) HandleInput(b byte) []Action {
	switch m.state {
	case Normal:
		return m.handleNormal(b)
	case Pending:
		return m.handlePending(b)
	case Capturing:
		return m.handleCapturing(b)
	case AgentStreaming, AgentExecuting:
		if b == ctrlC {
			return []Action{{Kind: ActionAbort}}
		}
		return nil
	case AgentConfirming:
		return m.handleConfirming(b)
	case AgentAsking:
		return m.handleAsking(b)
	}
	return nil
}

func (m *Machine) handleNormal(b byte) []Action {
	if b == '@' && m.atLineStart {
		m.state = Pending
		return []Action{{Kind: ActionEchoAtSign}}
	}
	return []Action{{Kind: ActionForward, Bytes: []byte{b}}}
}

func (m *Machine) handlePending(b byte) []Action {
	switch b {
	case ' ':
		m.state = Capturing
		m.buf.Reset()
		return nil
	case backspace, bsAlt:
		m.state = Normal
		return []Action{{Kind: ActionEraseLocalEcho}}
	case ctrlV:
		m.state = Capturing
		m.buf.Reset()
		return m.pasteFromClipboard()
	default:
		m.state = Normal
		return []Action{
			{Kind: ActionEraseLocalEcho},
			{Kind: ActionForward, Bytes: []byte{'@', b}},
		}
	}
}

func (m *Machine) handleCapturing(b byte) []Action {
	if m.inPaste {
		return m.feedPasteByte(b)
	}

	if b == escByte {
		m.escAccum = []byte{escByte}
		return nil
	}
	if len(m.escAccum) > 0 {
		m.escAccum = append(m.escAccum, b)
		if strings.HasPrefix(bracketedPasteStart, string(m.escAccum)) {
			if string(m.escAccum) == bracketedPasteStart {
				m.inPaste = true
				m.pasteAccum.Reset()
				m.escAccum = nil
			}
			return nil
		}
		// not a bracketed-paste start sequence; drop the partial escape
		m.escAccum = nil
		return nil
	}

	switch b {
	case '\r', '\n':
		query := m.resolveQuery()
		m.state = Normal
		m.atLineStart = true
		return []Action{{Kind: ActionStartAgent, Query: query}}
	case backspace, bsAlt:
		s := m.buf.String()
		if len(s) > 0 {
			m.buf.Reset()
			m.buf.WriteString(s[:len(s)-1])
		}
		return nil
	case ctrlC:
		m.resetCapture()
		m.state = Normal
		return []Action{{Kind: ActionAbortCapture}}
	case ctrlV:
		return m.pasteFromClipboard()
	default:
		m.buf.WriteByte(b)
		return nil
	}
}

// feedPasteByte accumulates bytes inside a bracketed paste, recognizing the
// terminator atomically so an embedded CR never submits the capture.
func (m *Machine) feedPasteByte(b byte) []Action {
	m.pasteAccum.WriteByte(b)
	accum := m.pasteAccum.String()
	if strings.HasSuffix(accum, bracketedPasteEnd) {
		text := accum[:len(accum)-len(bracketedPasteEnd)]
		m.inPaste = false
		m.pasteAccum.Reset()
		m.appendPasted(text)
	}
	return nil
}

func (m *Machine) pasteFromClipboard() []Action {
	text, err := m.clipboard()
	if err != nil {
		return nil
	}
	m.appendPasted(text)
	return nil
}

// appendPasted adds pasted text to the capture buffer, collapsing it to a
// placeholder when it exceeds the line/char thresholds (§4.10 Paste
// collapsing). The full text is kept in pasteParts and substituted back in
// resolveQuery.
func (m *Machine) appendPasted(text string) {
	lines := strings.Count(text, "\n") + 1
	if lines <= pasteCollapseLines && len(text) <= pasteCollapseChars {
		m.buf.WriteString(text)
		return
	}
	m.pasteCounter++
	var placeholder string
	if lines > pasteCollapseLines {
		placeholder = "[Pasted Text: " + strconv.Itoa(lines) + " lines #" + strconv.Itoa(m.pasteCounter) + "]"
	} else {
		placeholder = "[Pasted Text: " + strconv.Itoa(len(text)) + " chars #" + strconv.Itoa(m.pasteCounter) + "]"
	}
	m.pasteParts[placeholder] = text
	m.buf.WriteString(placeholder)
}

// resolveQuery substitutes every placeholder in the visible buffer back to
// its full pasted text before the query is sent to the agent.
func (m *Machine) resolveQuery() string {
	q := m.buf.String()
	for placeholder, full := range m.pasteParts {
		q = strings.ReplaceAll(q, placeholder, full)
	}
	m.resetCapture()
	return q
}

func (m *Machine) resetCapture() {
	m.buf.Reset()
	m.pasteParts = make(map[string]string)
	m.pasteCounter = 0
	m.inPaste = false
	m.pasteAccum.Reset()
	m.escAccum = nil
}

func (m *Machine) handleConfirming(b byte) []Action {
	switch {
	case b == '\r' || b == '\n':
		m.state = AgentExecuting
		return []Action{{Kind: ActionResolveConfirmation, Outcome: message.ProceedOnce}}
	case (b == 'y' || b == 'Y') && m.confirmIsPathAccess:
		m.state = AgentExecuting
		return []Action{{Kind: ActionResolveConfirmation, Outcome: message.ProceedAlways}}
	case b == ctrlC:
		m.state = Normal
		m.atLineStart = true
		return []Action{{Kind: ActionResolveConfirmation, Outcome: message.Cancel}}
	}
	return nil
}

func (m *Machine) handleAsking(b byte) []Action {
	switch b {
	case '\r', '\n':
		text := m.askBuf.String()
		m.askBuf.Reset()
		m.state = AgentExecuting
		return []Action{{Kind: ActionResolveAsk, Text: text}}
	case ctrlC:
		m.askBuf.Reset()
		m.state = AgentExecuting
		return []Action{{Kind: ActionResolveAsk, Text: ""}}
	case backspace, bsAlt:
		s := m.askBuf.String()
		if len(s) > 0 {
			m.askBuf.Reset()
			m.askBuf.WriteString(s[:len(s)-1])
		}
		return nil
	case ctrlV:
		if text, err := m.clipboard(); err == nil {
			m.askBuf.WriteString(text)
		}
		return nil
	default:
		m.askBuf.WriteByte(b)
		return nil
	}
}
