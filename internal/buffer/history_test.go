package buffer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pixelle-ai/mcp-broker/internal/protocol"
)

func env(i int) protocol.Envelope {
	return protocol.Envelope{
		Type:      protocol.MessageTypeChatMessage,
		MessageID: fmt.Sprintf("m-%d", i),
	}
}

func TestNewHistory(t *testing.T) {
	h := NewHistory(100)
	if h.Cap() != 100 {
		t.Errorf("expected capacity 100, got %d", h.Cap())
	}
	if h.Len() != 0 {
		t.Errorf("expected length 0, got %d", h.Len())
	}

	// Zero and negative capacities default to 1
	if h := NewHistory(0); h.Cap() != 1 {
		t.Errorf("expected capacity 1 for zero input, got %d", h.Cap())
	}
	if h := NewHistory(-5); h.Cap() != 1 {
		t.Errorf("expected capacity 1 for negative input, got %d", h.Cap())
	}
}

func TestHistoryAppendAndSnapshot(t *testing.T) {
	h := NewHistory(10)

	for i := 0; i < 3; i++ {
		h.Append(env(i))
	}
	if h.Len() != 3 {
		t.Errorf("expected length 3, got %d", h.Len())
	}

	snap := h.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snap))
	}
	for i, e := range snap {
		if e.MessageID != fmt.Sprintf("m-%d", i) {
			t.Errorf("entry %d: expected m-%d, got %s", i, i, e.MessageID)
		}
	}
}

func TestHistoryOverflowDiscardsOldest(t *testing.T) {
	h := NewHistory(5)

	for i := 0; i < 8; i++ {
		h.Append(env(i))
	}
	if h.Len() != 5 {
		t.Errorf("expected length capped at 5, got %d", h.Len())
	}

	snap := h.Snapshot()
	// Entries 0-2 were discarded; 3-7 remain in order
	for i, e := range snap {
		want := fmt.Sprintf("m-%d", i+3)
		if e.MessageID != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, e.MessageID)
		}
	}
}

func TestHistoryEmptySnapshot(t *testing.T) {
	h := NewHistory(5)
	if snap := h.Snapshot(); snap != nil {
		t.Errorf("expected nil snapshot for empty history, got %v", snap)
	}
}

func TestHistorySnapshotIsCopy(t *testing.T) {
	h := NewHistory(5)
	h.Append(env(0))

	snap := h.Snapshot()
	snap[0].MessageID = "mutated"

	if got := h.Snapshot()[0].MessageID; got != "m-0" {
		t.Errorf("snapshot mutation leaked into buffer: %s", got)
	}
}

func TestHistoryConcurrentAppend(t *testing.T) {
	h := NewHistory(64)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h.Append(env(g*100 + i))
			}
		}(g)
	}
	wg.Wait()

	if h.Len() != 64 {
		t.Errorf("expected full buffer after concurrent appends, got %d", h.Len())
	}
}
