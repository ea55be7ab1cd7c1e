package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_TryConsume(t *testing.T) {
	r := NewRateLimiter(3)
	for i := 0; i < 3; i++ {
		if !r.TryConsume() {
			t.Fatalf("TryConsume() #%d = false, want true", i+1)
		}
	}
	if r.TryConsume() {
		t.Error("TryConsume() succeeded on an empty bucket")
	}

	st := r.Status()
	if st.TotalConsumed != 3 || st.TokensLimit != 3 {
		t.Errorf("Status() = %+v", st)
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	r := NewRateLimiter(60)
	now := time.Now()
	r.now = func() time.Time { return now }
	r.lastRefill = now

	for r.TryConsume() {
	}

	now = now.Add(2 * time.Second)
	if !r.TryConsume() {
		t.Error("TryConsume() after refill = false, want true")
	}
}

func TestRateLimiter_Record429Pauses(t *testing.T) {
	r := NewRateLimiter(600)
	r.Record429(time.Hour)

	if r.TryConsume() {
		t.Error("TryConsume() during pause = true, want false")
	}
	if st := r.Status(); st.PausedFor <= 0 || st.Last429Time.IsZero() {
		t.Errorf("Status() = %+v", st)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestRateLimiter_WaitBlocksUntilToken(t *testing.T) {
	r := NewRateLimiter(1200) // one token per 50ms
	for r.TryConsume() {
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if st := r.Status(); st.TotalConsumed < 2 {
		t.Errorf("TotalConsumed = %d", st.TotalConsumed)
	}
}
