// Package chat – message window.
//
// A Window is the locally held slice of one conversation's messages:
// deduplicated by id (first occurrence wins), ordered by arrival, and capped
// at the most recent N entries. Poll results and sends both land through
// the same merge, which makes the two commutative — a send racing a poll
// tick converges to the same window regardless of arrival order, because
// merging is dedup-by-id over the latest in-memory value.
package chat

import (
	"sync"

	"github.com/tbourn/go-coach-sync/internal/domain"
)

// DefaultWindowCap bounds a conversation window when no cap is configured.
const DefaultWindowCap = 100

// DedupByID collapses a batch to one message per id, keeping the first
// occurrence and preserving input order. Messages without an id are dropped.
func DedupByID(batch []domain.Message) []domain.Message {
	seen := make(map[string]struct{}, len(batch))
	out := make([]domain.Message, 0, len(batch))
	for _, m := range batch {
		if m.ID == "" {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Window holds one conversation's message slice. Safe for concurrent use:
// the poller goroutine and gateway handlers serialize through its mutex,
// each applying a full read-modify-write merge.
type Window struct {
	mu   sync.Mutex
	cap  int
	msgs []domain.Message
}

// NewWindow builds an empty window capped at capN entries (DefaultWindowCap
// when capN <= 0).
func NewWindow(capN int) *Window {
	if capN <= 0 {
		capN = DefaultWindowCap
	}
	return &Window{cap: capN}
}

// Apply merges a batch into the window: existing entries keep their
// position, unseen batch entries append in input order, and the result is
// capped to the most recent entries. It reports whether the held window
// actually changed — equivalent payloads are a no-op, so callers can skip
// redundant persistence and re-renders.
func (w *Window) Apply(batch []domain.Message) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	merged := DedupByID(append(append([]domain.Message{}, w.msgs...), batch...))
	if over := len(merged) - w.cap; over > 0 {
		merged = merged[over:]
	}

	if len(merged) == len(w.msgs) && lastID(merged) == lastID(w.msgs) {
		return false
	}
	w.msgs = merged
	return true
}

// Snapshot returns a copy of the current window.
func (w *Window) Snapshot() []domain.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.Message, len(w.msgs))
	copy(out, w.msgs)
	return out
}

// Len returns the number of held messages.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

// LastID returns the id of the newest held message, or "".
func (w *Window) LastID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return lastID(w.msgs)
}

func lastID(msgs []domain.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].ID
}
