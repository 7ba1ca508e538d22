package application

import (
	"context"
	"sync"
	"time"

	"github.com/emiliorios/mpgateway/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventLedger = (*MemoryLedger)(nil)

// MemoryLedger is the in-process EventLedger: a map of event id to the time
// it was first claimed. Entries older than the retention window are treated
// as unclaimed and evicted lazily on the next lookup for that id. Suitable
// for single-instance deployments; multi-instance setups use the Redis
// adapter behind the same port.
type MemoryLedger struct {
	retention time.Duration

	mu      sync.Mutex
	claimed map[string]time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryLedger creates a ledger with the given retention window.
func NewMemoryLedger(retention time.Duration) *MemoryLedger {
	return &MemoryLedger{
		retention: retention,
		claimed:   make(map[string]time.Time),
		now:       time.Now,
	}
}

// TryClaim records the event id if unseen within the retention window.
func (l *MemoryLedger) TryClaim(_ context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if seen, ok := l.claimed[eventID]; ok {
		if now.Sub(seen) <= l.retention {
			return false, nil
		}
		delete(l.claimed, eventID)
	}

	l.claimed[eventID] = now
	return true, nil
}

// Release removes a claim so a redelivery of the same event can proceed.
func (l *MemoryLedger) Release(_ context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.claimed, eventID)
	return nil
}
