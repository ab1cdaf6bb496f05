// Package approval tracks the session-scoped "allow outside-CWD" flag (C2).
package approval

import "sync"

// PathTracker is a single boolean, initially false, that never resets
// inside a run. Safe for concurrent use since the scheduler's auto-call
// fan-out may read it from multiple goroutines.
type PathTracker struct {
	mu          sync.RWMutex
	allApproved bool
}

// NewPathTracker returns a tracker with allow-outside-cwd unset.
func NewPathTracker() *PathTracker {
	return &PathTracker{}
}

// ApproveAll sets allow-outside-cwd true for the session's lifetime.
func (t *PathTracker) ApproveAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allApproved = true
}

// IsAllowed reports whether outside-CWD path access is pre-approved.
func (t *PathTracker) IsAllowed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allApproved
}
