package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 2 * time.Minute
)

// Limiter paces requests to one upstream API. After the upstream answers
// 429, the next Wait additionally sleeps for the current backoff.
type Limiter struct {
	limiter *rate.Limiter
	name    string

	mu        sync.Mutex
	backoff   time.Duration
	penalized bool
}

// NewLimiter creates a limiter allowing perMinute requests per minute.
// A non-positive perMinute disables limiting.
func NewLimiter(name string, perMinute int) *Limiter {
	if perMinute <= 0 {
		return &Limiter{
			limiter: rate.NewLimiter(rate.Inf, 1),
			name:    name,
			backoff: initialBackoff,
		}
	}

	// burst is a tenth of the per-minute budget, between 1 and 5
	burst := min(max(perMinute/10, 1), 5)
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		name:    name,
		backoff: initialBackoff,
	}
}

// Wait blocks until a request may be sent or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	if d := l.pendingBackoff(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.limiter.Wait(ctx)
}

func (l *Limiter) pendingBackoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.penalized {
		return 0
	}
	l.penalized = false
	return l.backoff
}

// Allow reports whether a request may be sent now
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SignalRateLimited records a 429 response: the backoff doubles and the
// next Wait sleeps for it.
func (l *Limiter) SignalRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.backoff = min(l.backoff*2, maxBackoff)
	l.penalized = true
}

// ResetBackoff is called after a successful request
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = initialBackoff
	l.penalized = false
}

// Backoff returns the current backoff duration
func (l *Limiter) Backoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backoff
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}
