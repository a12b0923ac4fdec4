// Package ratelimit paces interactions against the remote grid so row and
// page operations are not fired back to back.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter is waited on between row and page operations. Record calls let an
// implementation adapt its pacing to how the run is going.
type Limiter interface {
	Wait(ctx context.Context) error
	RecordSuccess()
	RecordError()
}

// SimpleLimiter enforces a jittered delay between operations.
type SimpleLimiter struct {
	mu         sync.Mutex
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
}

func NewSimpleLimiter(minDelay, maxDelay time.Duration) *SimpleLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &SimpleLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (l *SimpleLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.lastAction)
	delay := l.delay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	l.lastAction = time.Now()
	return nil
}

func (l *SimpleLimiter) RecordSuccess() {}
func (l *SimpleLimiter) RecordError()   {}

func (l *SimpleLimiter) delay() time.Duration {
	if l.maxDelay == l.minDelay {
		return l.minDelay
	}
	jitter := time.Duration(rand.Int63n(int64(l.maxDelay - l.minDelay)))
	return l.minDelay + jitter
}

// AdaptiveLimiter backs off when rows keep failing and slowly relaxes again
// after a streak of successes.
type AdaptiveLimiter struct {
	*SimpleLimiter
	errorStreak   int
	successStreak int
	maxErrorCount int
	backoffFactor float64
	floorDelay    time.Duration
	ceilDelay     time.Duration
}

func NewAdaptiveLimiter(minDelay, maxDelay time.Duration) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		SimpleLimiter: NewSimpleLimiter(minDelay, maxDelay),
		maxErrorCount: 3,
		backoffFactor: 1.5,
		floorDelay:    time.Second,
		ceilDelay:     2 * time.Minute,
	}
}

func (a *AdaptiveLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successStreak++
	a.errorStreak = 0

	if a.successStreak > 5 {
		relaxed := time.Duration(float64(a.minDelay) * 0.9)
		if relaxed < a.floorDelay {
			relaxed = a.floorDelay
		}
		a.minDelay = relaxed
		a.successStreak = 0
	}
}

func (a *AdaptiveLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorStreak++
	a.successStreak = 0

	if a.errorStreak >= a.maxErrorCount {
		a.minDelay = clampDelay(time.Duration(float64(a.minDelay)*a.backoffFactor), a.ceilDelay)
		a.maxDelay = clampDelay(time.Duration(float64(a.maxDelay)*a.backoffFactor), a.ceilDelay)
		a.errorStreak = 0
	}
}

func clampDelay(d, ceil time.Duration) time.Duration {
	if d > ceil {
		return ceil
	}
	return d
}
