package block_test

import (
	"testing"
	"time"

	"github.com/aq-cli/aq/internal/block"
)

func TestTrackerOSC133Cycle(t *testing.T) {
	tr := block.New()
	tr.SetCwd("/home/dev")

	tr.Feed([]byte("\x1b]133;A\x07"))
	if tr.State() != block.Prompt {
		t.Fatalf("state = %v, want Prompt", tr.State())
	}

	tr.Feed([]byte("\x1b]133;B\x07"))
	if tr.State() != block.Input {
		t.Fatalf("state = %v, want Input", tr.State())
	}

	tr.FeedInput('l')
	tr.FeedInput('s')

	tr.Feed([]byte("\x1b]133;C\x07"))
	if tr.State() != block.Executing {
		t.Fatalf("state = %v, want Executing", tr.State())
	}

	tr.Feed([]byte("file1.txt\nfile2.txt\n"))
	tr.Feed([]byte("\x1b]133;D;0\x07"))

	if tr.State() != block.Idle {
		t.Fatalf("state = %v, want Idle", tr.State())
	}

	select {
	case b := <-tr.Completed():
		if b.ExitCode != 0 {
			t.Errorf("ExitCode = %d, want 0", b.ExitCode)
		}
		if b.Cwd != "/home/dev" {
			t.Errorf("Cwd = %q, want /home/dev", b.Cwd)
		}
	case <-time.After(time.Second):
		t.Fatal("no completed block published")
	}

	hist := tr.History()
	if len(hist) != 1 {
		t.Fatalf("len(History()) = %d, want 1", len(hist))
	}
}

func TestTrackerNonZeroExit(t *testing.T) {
	tr := block.New()
	tr.Feed([]byte("\x1b]133;A\x07\x1b]133;B\x07"))
	tr.Feed([]byte("\x1b]133;C\x07"))
	tr.Feed([]byte("\x1b]133;D;127\x07"))

	b := <-tr.Completed()
	if b.ExitCode != 127 {
		t.Errorf("ExitCode = %d, want 127", b.ExitCode)
	}
}

func TestTrackerHeuristicFallback(t *testing.T) {
	tr := block.New()
	for _, c := range "echo hi" {
		tr.FeedInput(byte(c))
	}
	tr.FeedInput('\r')

	if tr.State() != block.Executing {
		t.Fatalf("state = %v, want Executing", tr.State())
	}

	for _, c := range "echo bye" {
		tr.FeedInput(byte(c))
	}
	tr.FeedInput('\n')

	select {
	case b := <-tr.Completed():
		if b.Command != "echo hi" {
			t.Errorf("Command = %q, want %q", b.Command, "echo hi")
		}
	default:
		t.Fatal("expected the first heuristic block to finalize")
	}
}

func TestTrackerRetentionCap(t *testing.T) {
	tr := block.New()
	for i := 0; i < 60; i++ {
		tr.Feed([]byte("\x1b]133;A\x07\x1b]133;B\x07\x1b]133;C\x07\x1b]133;D;0\x07"))
		<-tr.Completed()
	}
	if len(tr.History()) != 50 {
		t.Fatalf("len(History()) = %d, want 50", len(tr.History()))
	}
}
