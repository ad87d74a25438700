package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now    time.Time
	pauses []time.Duration
}

func (c *fakeClock) throttle(limit int) *WindowThrottle {
	w := NewWindowThrottle(limit, 15*time.Second, 15*time.Second)
	w.Now = func() time.Time { return c.now }
	w.Sleep = func(ctx context.Context, d time.Duration) error {
		c.pauses = append(c.pauses, d)
		c.now = c.now.Add(d)
		return nil
	}
	return w
}

func TestWindowThrottlePausesOverLimit(t *testing.T) {
	clock := &fakeClock{now: testDay}
	w := clock.throttle(200)
	ctx := context.Background()

	if err := w.Throttle(ctx, 200); err != nil {
		t.Fatalf("Throttle(200) error = %v", err)
	}
	if len(clock.pauses) != 0 {
		t.Fatalf("pauses = %v at the limit, want none", clock.pauses)
	}

	if err := w.Throttle(ctx, 50); err != nil {
		t.Fatalf("Throttle(50) error = %v", err)
	}
	if len(clock.pauses) != 1 || clock.pauses[0] != 15*time.Second {
		t.Fatalf("pauses = %v, want one 15s pause", clock.pauses)
	}

	clock.now = clock.now.Add(time.Second)
	if err := w.Throttle(ctx, 10); err != nil {
		t.Fatalf("Throttle(10) error = %v", err)
	}
	if len(clock.pauses) != 1 {
		t.Fatalf("pauses = %v after window expired, want 1", clock.pauses)
	}
}

func TestWindowThrottleForgetsOldChanges(t *testing.T) {
	clock := &fakeClock{now: testDay}
	w := clock.throttle(100)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := w.Throttle(ctx, 60); err != nil {
			t.Fatalf("Throttle() error = %v", err)
		}
		clock.now = clock.now.Add(16 * time.Second)
	}
	if len(clock.pauses) != 0 {
		t.Fatalf("pauses = %v, want none when batches are a window apart", clock.pauses)
	}
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("SleepContext() error = %v, want context.Canceled", err)
	}
}
