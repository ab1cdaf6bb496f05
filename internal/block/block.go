// Package block tracks shell command blocks (C11): the state machine driven
// by OSC-133 sequences an injected shell-integration script emits, with a
// heuristic CR/LF fallback for shells it isn't installed in.
package block

import (
	"bytes"
	"strconv"
	"sync"
	"time"
)

// State is a position in the OSC-133 state machine.
type State int

const (
	Idle State = iota
	Prompt
	Input
	Executing
)

func (s State) String() string {
	switch s {
	case Prompt:
		return "prompt"
	case Input:
		return "input"
	case Executing:
		return "executing"
	default:
		return "idle"
	}
}

// Block is one completed shell command: its input, output, and exit status.
type Block struct {
	ID       int
	Command  string
	Output   string
	ExitCode int
	Cwd      string
	Start    time.Time
	End      time.Time
}

// maxRetained bounds how many completed blocks the tracker keeps (§4.11).
const maxRetained = 50

// osc133 markers: ESC ] 133 ; <letter> [; <arg>] BEL|ST
var (
	oscPrefix = []byte("\x1b]133;")
	bel       = byte(0x07)
)

// Tracker drives the Idle -> Prompt -> Input -> Executing -> Idle cycle from
// raw PTY output and, failing OSC-133 support, from heuristic CR/LF
// finalization of whatever the user typed.
type Tracker struct {
	mu    sync.Mutex
	state State
	cwd   string

	sawOSC    bool // true once any OSC-133 sequence has been observed
	inputBuf  bytes.Buffer
	outputBuf bytes.Buffer
	current   *Block
	nextID    int

	completed chan Block
	history   []Block
}

// New creates a tracker. Completed blocks are delivered on Completed() as
// well as retained (capped at 50) for History().
func New() *Tracker {
	return &Tracker{
		state:     Idle,
		completed: make(chan Block, maxRetained),
	}
}

// Completed returns the channel completed blocks are published on.
func (t *Tracker) Completed() <-chan Block { return t.completed }

// SetCwd records the shell's current directory for the next block.
func (t *Tracker) SetCwd(cwd string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cwd = cwd
}

// State reports the tracker's current position.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// History returns up to the last 50 completed blocks, oldest first.
func (t *Tracker) History() []Block {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Block, len(t.history))
	copy(out, t.history)
	return out
}

// Feed consumes a chunk of PTY output, advancing the state machine on any
// OSC-133 sequences it contains and accumulating output otherwise.
func (t *Tracker) Feed(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for len(data) > 0 {
		idx := bytes.Index(data, oscPrefix)
		if idx < 0 {
			t.absorbOutput(data)
			return
		}
		t.absorbOutput(data[:idx])
		rest := data[idx+len(oscPrefix):]
		end := bytes.IndexByte(rest, bel)
		if end < 0 {
			end = bytes.Index(rest, []byte("\x1b\\"))
			if end < 0 {
				// unterminated sequence at the end of this chunk; drop it
				return
			}
			data = rest[end+2:]
		} else {
			data = rest[end+1:]
		}
		t.handleOSC(string(rest[:end]))
	}
}

// FeedInput consumes a byte the user typed. Once OSC-133 has been observed,
// bytes typed in the Input state are recorded as the command text (CR/LF
// excluded); until then it drives the heuristic fallback path.
func (t *Tracker) FeedInput(b byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sawOSC {
		if t.state == Input && b != '\r' && b != '\n' {
			t.inputBuf.WriteByte(b)
		}
		return
	}
	if b == '\r' || b == '\n' {
		t.finalizeHeuristic()
		return
	}
	t.inputBuf.WriteByte(b)
}

func (t *Tracker) absorbOutput(b []byte) {
	if len(b) == 0 {
		return
	}
	if t.state == Executing {
		t.outputBuf.Write(b)
	}
}

// handleOSC dispatches one decoded OSC-133 body, e.g. "A", "B", "C", "D;0".
func (t *Tracker) handleOSC(body string) {
	t.sawOSC = true
	if body == "" {
		return
	}
	switch body[0] {
	case 'A':
		t.state = Prompt
		t.inputBuf.Reset()
	case 'B':
		t.state = Input
	case 'C':
		t.state = Executing
		t.current = &Block{
			ID:      t.nextID,
			Command: t.inputBuf.String(),
			Cwd:     t.cwd,
			Start:   time.Now(),
		}
		t.nextID++
		t.outputBuf.Reset()
	case 'D':
		exit := 0
		if len(body) > 2 && body[1] == ';' {
			if n, err := strconv.Atoi(body[2:]); err == nil {
				exit = n
			}
		}
		t.finish(exit)
	}
}

func (t *Tracker) finish(exitCode int) {
	if t.current == nil {
		t.state = Idle
		return
	}
	b := *t.current
	b.Output = t.outputBuf.String()
	b.ExitCode = exitCode
	b.End = time.Now()
	t.current = nil
	t.state = Idle
	t.retain(b)
}

// finalizeHeuristic is the CR/LF fallback path: a line ends whatever
// Executing block is open (if any) and starts a new one from the buffered
// input, since no shell hook told us where the command boundary is.
func (t *Tracker) finalizeHeuristic() {
	if t.state == Executing {
		t.finish(0)
	}
	cmd := t.inputBuf.String()
	t.inputBuf.Reset()
	if cmd == "" {
		t.state = Idle
		return
	}
	t.state = Executing
	t.current = &Block{ID: t.nextID, Command: cmd, Cwd: t.cwd, Start: time.Now()}
	t.nextID++
	t.outputBuf.Reset()
}

func (t *Tracker) retain(b Block) {
	t.history = append(t.history, b)
	if len(t.history) > maxRetained {
		t.history = t.history[len(t.history)-maxRetained:]
	}
	select {
	case t.completed <- b:
	default:
		<-t.completed
		t.completed <- b
	}
}
