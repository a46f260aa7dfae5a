// Package buffer provides a bounded history buffer for session messages.
package buffer

import (
	"sync"

	"github.com/pixelle-ai/mcp-broker/internal/protocol"
)

// History is a thread-safe, capacity-bounded message history. It keeps the
// most recent envelopes in insertion order; when full, the oldest entry is
// discarded to make room, so long-lived connections hold bounded memory.
type History struct {
	entries  []protocol.Envelope
	start    int
	count    int
	capacity int
	mu       sync.RWMutex
}

// NewHistory creates a History with the given capacity.
// The capacity must be greater than 0; if not, it defaults to 1.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{
		entries:  make([]protocol.Envelope, capacity),
		capacity: capacity,
	}
}

// Append records an envelope, discarding the oldest entry when full.
func (h *History) Append(e protocol.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := (h.start + h.count) % h.capacity
	h.entries[idx] = e
	if h.count < h.capacity {
		h.count++
	} else {
		h.start = (h.start + 1) % h.capacity
	}
}

// Snapshot returns a copy of the buffered envelopes in insertion order.
func (h *History) Snapshot() []protocol.Envelope {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return nil
	}
	out := make([]protocol.Envelope, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.entries[(h.start+i)%h.capacity]
	}
	return out
}

// Len returns the current number of buffered envelopes.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Cap returns the capacity of the buffer.
func (h *History) Cap() int {
	return h.capacity
}
