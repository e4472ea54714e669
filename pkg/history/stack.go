// Package history implements the undo/redo action stack.
package history

import (
	"sync"

	"github.com/aretw0/pedigree/pkg/core"
)

// DefaultLimit is the number of entries kept when no limit is given.
const DefaultLimit = 100

// Stack is a bounded undo/redo stack of serialized states.
//
// The saved checkpoint is tracked by state text, so it survives trimming and
// an undo back to the saved state reports no unsaved changes.
type Stack struct {
	mu      sync.Mutex
	entries []core.HistoryEntry
	pos     int // index of the current entry, -1 when empty
	limit   int
	saved   *string
}

// NewStack creates a stack that keeps at most limit entries.
func NewStack(limit int) *Stack {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Stack{pos: -1, limit: limit}
}

// PushEntry implements core.History.
// A push whose state equals the current state is ignored. Pushing discards
// the redo tail.
func (s *Stack) PushEntry(before, after core.ChangeSet, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= 0 && s.entries[s.pos].State == state {
		return
	}

	s.entries = append(s.entries[:s.pos+1], core.HistoryEntry{Before: before, After: after, State: state})
	if over := len(s.entries) - s.limit; over > 0 {
		s.entries = append([]core.HistoryEntry(nil), s.entries[over:]...)
	}
	s.pos = len(s.entries) - 1
}

// MarkSavedCheckpoint implements core.History.
func (s *Stack) MarkSavedCheckpoint() {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := ""
	if s.pos >= 0 {
		state = s.entries[s.pos].State
	}
	s.saved = &state
}

// HasUnsavedChanges reports whether the current state differs from the last
// saved checkpoint.
func (s *Stack) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saved == nil {
		return s.pos >= 0
	}
	current := ""
	if s.pos >= 0 {
		current = s.entries[s.pos].State
	}
	return current != *s.saved
}

// Current returns the current entry.
func (s *Stack) Current() (core.HistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos < 0 {
		return core.HistoryEntry{}, false
	}
	return s.entries[s.pos], true
}

// Undo steps back and returns the entry that becomes current.
func (s *Stack) Undo() (core.HistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos <= 0 {
		return core.HistoryEntry{}, false
	}
	s.pos--
	return s.entries[s.pos], true
}

// Redo steps forward and returns the entry that becomes current.
func (s *Stack) Redo() (core.HistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos+1 >= len(s.entries) {
		return core.HistoryEntry{}, false
	}
	s.pos++
	return s.entries[s.pos], true
}

// Len returns the number of entries, including the redo tail.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ core.History = (*Stack)(nil)
