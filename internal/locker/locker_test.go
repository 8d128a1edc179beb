package locker

import (
	"context"
	"sync"
	"testing"
	"time"

	"payment-reconciliation/internal/models"
)

func TestKeyedLockerAcquireRelease(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()
	key := "cards:2026-03-01T00:00:00Z:2026-03-02T00:00:00Z"

	release, err := l.Acquire(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := l.Acquire(ctx, key, time.Minute); !models.IsInvalidState(err) {
		t.Fatalf("expected InvalidStateError for held key, got %v", err)
	}

	release()

	release2, err := l.Acquire(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	release2()
}

func TestKeyedLockerIndependentKeys(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	r1, err := l.Acquire(ctx, "cards:a", time.Minute)
	if err != nil {
		t.Fatalf("Acquire cards:a: %v", err)
	}
	defer r1()

	r2, err := l.Acquire(ctx, "mobile_banking:a", time.Minute)
	if err != nil {
		t.Fatalf("Acquire mobile_banking:a: %v", err)
	}
	defer r2()
}

func TestKeyedLockerConcurrentSingleHolder(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Acquire(ctx, "cards:concurrent", time.Minute)
		}(i)
	}
	wg.Wait()

	holders := 0
	for _, err := range errs {
		switch {
		case err == nil:
			holders++
		case models.IsInvalidState(err):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if holders != 1 {
		t.Fatalf("expected exactly one holder, got %d", holders)
	}
}
