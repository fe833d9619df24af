// Package ratelimit provides sliding-window admission control for outbound
// Riot API calls.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits at most maxCalls calls within a trailing window. Admit
// blocks the caller until issuing one more call stays under the limit.
// A mutex-guarded timestamp slice is enough here: the monitor issues tens
// of calls per two minutes from a single goroutine, and foreground
// request handlers never touch the limiter.
type Limiter struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	calls    []time.Time

	// Injection points for tests. Production values are set by New.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(maxCalls int, window time.Duration) *Limiter {
	return &Limiter{
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Admit blocks until one more call would not exceed the window limit, then
// records the call. The only error outcome is context cancellation; the
// induced delay is otherwise the sole observable effect.
func (l *Limiter) Admit(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.trim(now)
		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}
		// Wait exactly until the oldest retained call falls out of the
		// window, then re-check. Another caller may have slipped in while
		// we slept, so the loop re-evaluates under the lock.
		wait := l.calls[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Pending returns the number of calls currently inside the window.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trim(l.now())
	return len(l.calls)
}

// trim discards timestamps older than the window. Caller must hold l.mu.
func (l *Limiter) trim(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}
