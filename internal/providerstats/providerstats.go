// Package providerstats persists cumulative per-provider token usage
// across runs at ~/.aq/providerstats.json (spec §6): a single JSON file
// mapping provider name to its running totals, which Record adds each run's
// usage into before writing the file back.
package providerstats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/aq-cli/aq/internal/message"
)

// Totals is one provider's running usage counters.
type Totals struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
	RequestCount     int `json:"requestCount"`
}

// add folds one run's usage into the running totals.
func (t *Totals) add(u message.TokensSummary) {
	t.PromptTokens += u.Prompt
	t.CompletionTokens += u.Completion
	t.TotalTokens += u.Total
	t.RequestCount++
}

// Store manages the persisted per-provider stats file.
type Store struct {
	mu   sync.Mutex
	path string
	data map[string]*Totals
}

// NewStore loads (or initializes) the stats file at ~/.aq/providerstats.json.
func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(homeDir, ".aq")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	s := &Store{
		path: filepath.Join(dir, "providerstats.json"),
		data: make(map[string]*Totals),
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]*Totals
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.data = raw
	return nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// Record merges one run's usage into the named provider's running totals
// and writes the file back out. Best-effort: a write failure is returned
// but never corrupts the in-memory totals already recorded.
func (s *Store) Record(provider string, usage message.TokensSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[provider]
	if !ok {
		t = &Totals{}
		s.data[provider] = t
	}
	t.add(usage)
	return s.save()
}

// Get returns a provider's running totals, or the zero value if none are
// recorded yet.
func (s *Store) Get(provider string) Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.data[provider]; ok {
		return *t
	}
	return Totals{}
}

// All returns a snapshot of every provider's running totals.
func (s *Store) All() map[string]Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Totals, len(s.data))
	for k, v := range s.data {
		out[k] = *v
	}
	return out
}
