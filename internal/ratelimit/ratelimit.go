package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SimpleRateLimiter keeps at least a random delay in [min, max) between
// consecutive actions.
type SimpleRateLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastAction)
	delay := jitter(r.minDelay, r.maxDelay)

	if elapsed < delay {
		if err := sleep(ctx, delay-elapsed); err != nil {
			return err
		}
	}

	r.lastAction = time.Now()
	return nil
}

// Pause sleeps for a random duration in [Min, Max) on every call. It paces
// page interaction the way a person would.
type Pause struct {
	Min time.Duration
	Max time.Duration
}

func NewPause(min, max time.Duration) *Pause {
	return &Pause{Min: min, Max: max}
}

func (p *Pause) Wait(ctx context.Context) error {
	return sleep(ctx, jitter(p.Min, p.Max))
}

func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
