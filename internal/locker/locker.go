package locker

import (
	"context"
	"sync"
	"time"

	"payment-reconciliation/internal/models"
)

// RunLocker guards the (gateway, period) idempotency key. Acquiring a key
// that is already held fails with InvalidStateError; the caller does not
// wait, matching the reject-don't-serialize policy for duplicate runs.
type RunLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// KeyedLocker is the in-process implementation, sufficient for a single
// worker instance.
type KeyedLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{held: make(map[string]bool)}
}

func (l *KeyedLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, &models.InvalidStateError{Entity: "run key", ID: key, State: models.RunStatusInProgress, Op: "start"}
	}
	l.held[key] = true

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}
	return release, nil
}
