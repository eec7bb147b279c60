package history

import (
	"context"
	"sync"

	"github.com/mikey/scan-insights/internal/core"
)

// MemoryHistory is an in-memory scan history that doubles as its own
// change feed: every mutation synchronously notifies subscribers for
// the affected user. It backs tests and the one-shot CLI.
type MemoryHistory struct {
	mu          sync.RWMutex
	records     map[string][]core.ScanRecord
	subscribers map[string]map[int]func()
	nextSubID   int
}

// NewMemoryHistory creates an empty in-memory history
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		records:     make(map[string][]core.ScanRecord),
		subscribers: make(map[string]map[int]func()),
	}
}

// FetchScanHistory returns a copy of all records for a user
func (h *MemoryHistory) FetchScanHistory(ctx context.Context, userID string) ([]core.ScanRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]core.ScanRecord(nil), h.records[userID]...), nil
}

// Subscribe registers a change callback for one user
func (h *MemoryHistory) Subscribe(userID string, fn func()) (func(), error) {
	h.mu.Lock()
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[int]func())
	}
	id := h.nextSubID
	h.nextSubID++
	h.subscribers[userID][id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subscribers[userID]; ok {
			delete(subs, id)
		}
	}, nil
}

// Append adds records for a user and fires the change feed
func (h *MemoryHistory) Append(userID string, records ...core.ScanRecord) {
	h.mu.Lock()
	h.records[userID] = append(h.records[userID], records...)
	h.mu.Unlock()
	h.notify(userID)
}

// Replace swaps the full history for a user and fires the change feed
func (h *MemoryHistory) Replace(userID string, records []core.ScanRecord) {
	h.mu.Lock()
	h.records[userID] = append([]core.ScanRecord(nil), records...)
	h.mu.Unlock()
	h.notify(userID)
}

func (h *MemoryHistory) notify(userID string) {
	h.mu.RLock()
	fns := make([]func(), 0, len(h.subscribers[userID]))
	for _, fn := range h.subscribers[userID] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}
