package services

import (
	"context"
	"route-results-service/internal/platform/metrics"
	"sync"
	"time"
)

const (
	DefaultThrottleLimit  = 200
	DefaultThrottleWindow = 15 * time.Second
	DefaultThrottlePause  = 15 * time.Second
)

// WindowThrottle caps order status changes to Limit within the trailing
// Window. Once the recorded volume exceeds the limit, Throttle pauses for
// Pause so downstream change-event consumers can keep up.
type WindowThrottle struct {
	Limit  int
	Window time.Duration
	Pause  time.Duration

	// Now and Sleep are replaceable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	entries []windowEntry
}

type windowEntry struct {
	at time.Time
	n  int
}

func NewWindowThrottle(limit int, window, pause time.Duration) *WindowThrottle {
	return &WindowThrottle{Limit: limit, Window: window, Pause: pause}
}

func (w *WindowThrottle) Throttle(ctx context.Context, n int) error {
	w.mu.Lock()
	now := w.now()
	if n > 0 {
		w.entries = append(w.entries, windowEntry{at: now, n: n})
	}

	cutoff := now.Add(-w.Window)
	kept := w.entries[:0]
	total := 0
	for _, e := range w.entries {
		if e.at.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
		total += e.n
	}
	w.entries = kept
	w.mu.Unlock()

	if total <= w.Limit {
		return nil
	}
	metrics.ThrottlePauses.Inc()
	return w.sleep(ctx, w.Pause)
}

func (w *WindowThrottle) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *WindowThrottle) sleep(ctx context.Context, d time.Duration) error {
	if w.Sleep != nil {
		return w.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
