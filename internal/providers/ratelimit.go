package providers

import (
	"context"
	"sync"
	"time"
)

// DefaultRequestsPerMinute is the limiter rate when none is configured.
const DefaultRequestsPerMinute = 150

// RateLimiter is a token bucket shared by every chapter worker, so the
// combined request rate stays under the provider's limit no matter how many
// chapters run at once.
type RateLimiter struct {
	mu sync.Mutex

	capacity   float64
	perSecond  float64
	tokens     float64
	lastRefill time.Time

	// pausedUntil is set by Record429; Wait blocks until then.
	pausedUntil time.Time

	consumed int64
	waited   time.Duration
	last429  time.Time

	now func() time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	PausedFor       time.Duration `json:"paused_for,omitempty"`
	Last429Time     time.Time     `json:"last_429_time,omitempty"`
}

// NewRateLimiter creates a limiter allowing requestsPerMinute requests,
// starting with a full bucket.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	now := time.Now()
	return &RateLimiter{
		capacity:   float64(requestsPerMinute),
		perSecond:  float64(requestsPerMinute) / 60.0,
		tokens:     float64(requestsPerMinute),
		lastRefill: now,
		now:        time.Now,
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := r.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.waited += wait
			r.mu.Unlock()
		}
	}
}

// TryConsume takes a token without blocking.
func (r *RateLimiter) TryConsume() bool {
	_, ok := r.reserve()
	return ok
}

// reserve takes a token if one is available, otherwise reports how long
// until one will be.
func (r *RateLimiter) reserve() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Before(r.pausedUntil) {
		return r.pausedUntil.Sub(now), false
	}

	r.refill(now)
	if r.tokens >= 1 {
		r.tokens--
		r.consumed++
		return 0, true
	}
	return time.Duration((1 - r.tokens) / r.perSecond * float64(time.Second)), false
}

// Record429 drains the bucket after the provider rejected a request for
// rate limiting. A positive retryAfter also pauses all callers that long.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.last429 = now
	r.tokens = 0
	r.lastRefill = now
	if retryAfter > 0 {
		if until := now.Add(retryAfter); until.After(r.pausedUntil) {
			r.pausedUntil = until
		}
	}
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.refill(now)

	var paused time.Duration
	if now.Before(r.pausedUntil) {
		paused = r.pausedUntil.Sub(now)
	}

	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     int(r.capacity),
		TotalConsumed:   r.consumed,
		TotalWaited:     r.waited,
		PausedFor:       paused,
		Last429Time:     r.last429,
	}
}

// refill adds tokens for the time elapsed since the last refill. Must be
// called with the lock held.
func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	r.lastRefill = now
	r.tokens += elapsed * r.perSecond
	if r.tokens > r.capacity {
		r.tokens = r.capacity
	}
}
