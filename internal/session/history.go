package session

import (
	"sync"

	"github.com/cartscope/cartscope/internal/domain"
)

// History is the append-only conversation log. It is the sole source of
// dialogue state for a session: messages are appended at phase boundaries
// and never edited or removed. Only the owning session appends.
type History struct {
	mu   sync.RWMutex
	msgs []domain.Message
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds messages to the log in one atomic step. Appending a tool-use
// assistant message together with its tool-result user message keeps the
// alternation invariant: no observer ever sees the pair half-written.
func (h *History) Append(msgs ...domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msgs...)
}

// Snapshot returns a copy of the log.
func (h *History) Snapshot() []domain.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Len returns the number of messages in the log.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.msgs)
}
