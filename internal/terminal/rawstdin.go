package terminal

import (
	"os"

	"golang.org/x/term"
)

// RawStdin puts stdin into raw mode for the lifetime of a session so the
// Machine sees every keystroke (including control bytes) instead of a
// line-buffered, canonically-echoed stream.
type RawStdin struct {
	fd    int
	state *term.State
}

// EnableRawStdin switches stdin to raw mode. Restore undoes it. Returns an
// error (rather than degrading silently) when stdin isn't a real TTY, since
// the byte pump has nothing meaningful to read from a pipe.
func EnableRawStdin() (*RawStdin, error) {
	fd := int(os.Stdin.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return &RawStdin{fd: fd, state: state}, nil
}

// Restore returns stdin to its original mode. Safe to call once.
func (r *RawStdin) Restore() error {
	if r.state == nil {
		return nil
	}
	err := term.Restore(r.fd, r.state)
	r.state = nil
	return err
}

// Size reports the current terminal dimensions, used to detect the resizes
// C10's suppression window reacts to.
func Size() (width, height int, err error) {
	return term.GetSize(int(os.Stdout.Fd()))
}
