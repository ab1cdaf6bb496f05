package providerstats_test

import (
	"path/filepath"
	"testing"

	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/providerstats"
)

func newTestStore(t *testing.T) *providerstats.Store {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	s, err := providerstats.NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestRecordAccumulatesAdditively(t *testing.T) {
	s := newTestStore(t)

	if err := s.Record("anthropic", message.TokensSummary{Prompt: 10, Completion: 5, Total: 15}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record("anthropic", message.TokensSummary{Prompt: 20, Completion: 10, Total: 30}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got := s.Get("anthropic")
	want := providerstats.Totals{PromptTokens: 30, CompletionTokens: 15, TotalTokens: 45, RequestCount: 2}
	if got != want {
		t.Fatalf("Get = %+v, want %+v", got, want)
	}
}

func TestRecordPersistsAcrossInstances(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s1, err := providerstats.NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s1.Record("openai", message.TokensSummary{Prompt: 1, Completion: 1, Total: 2}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	s2, err := providerstats.NewStore()
	if err != nil {
		t.Fatalf("NewStore (reload): %v", err)
	}
	got := s2.Get("openai")
	if got.RequestCount != 1 || got.TotalTokens != 2 {
		t.Fatalf("Get after reload = %+v", got)
	}

	if _, err := filepath.Abs(filepath.Join(home, ".aq", "providerstats.json")); err != nil {
		t.Fatalf("path: %v", err)
	}
}

func TestGetUnknownProviderReturnsZeroValue(t *testing.T) {
	s := newTestStore(t)
	got := s.Get("nope")
	if got != (providerstats.Totals{}) {
		t.Fatalf("Get(unknown) = %+v, want zero value", got)
	}
}
