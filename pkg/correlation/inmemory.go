package correlation

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryTracker is a thread-safe, in-memory Tracker. It satisfies the
// Tracker interface and is intended for tests and single-process deployments;
// it never expires records.
type InMemoryTracker struct {
	mu   sync.RWMutex
	data map[string]Dispatch
}

// NewInMemoryTracker creates a new in-memory tracker.
func NewInMemoryTracker() *InMemoryTracker {
	return &InMemoryTracker{
		data: make(map[string]Dispatch),
	}
}

// Record stores the dispatch record for a correlation id.
func (t *InMemoryTracker) Record(_ context.Context, correlationID string, d Dispatch) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[correlationID] = d
	return nil
}

// Lookup retrieves the dispatch record for a correlation id.
func (t *InMemoryTracker) Lookup(_ context.Context, correlationID string) (Dispatch, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d, ok := t.data[correlationID]
	if !ok {
		return Dispatch{}, fmt.Errorf("correlation id '%s' not found", correlationID)
	}
	return d, nil
}
