package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newThrottle(t *testing.T) (*RedisThrottle, *fakeClock, *[]time.Duration) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{t: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	var sleeps []time.Duration

	th := NewRedisThrottle(client, "throttle:status", 200, 15*time.Second, 15*time.Second)
	th.Now = clock.Now
	th.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return th, clock, &sleeps
}

func TestRedisThrottleUnderLimitDoesNotPause(t *testing.T) {
	th, clock, sleeps := newThrottle(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := th.Throttle(ctx, 50); err != nil {
			t.Fatalf("Throttle() error = %v", err)
		}
		clock.t = clock.t.Add(time.Second)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("sleeps = %v, want none at exactly the limit", *sleeps)
	}
}

func TestRedisThrottleOverLimitPauses(t *testing.T) {
	th, _, sleeps := newThrottle(t)
	ctx := context.Background()

	if err := th.Throttle(ctx, 150); err != nil {
		t.Fatalf("Throttle() error = %v", err)
	}
	if err := th.Throttle(ctx, 51); err != nil {
		t.Fatalf("Throttle() error = %v", err)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != 15*time.Second {
		t.Fatalf("sleeps = %v, want one 15s pause", *sleeps)
	}
}

func TestRedisThrottleWindowExpires(t *testing.T) {
	th, clock, sleeps := newThrottle(t)
	ctx := context.Background()

	if err := th.Throttle(ctx, 200); err != nil {
		t.Fatalf("Throttle() error = %v", err)
	}
	clock.t = clock.t.Add(16 * time.Second)
	if err := th.Throttle(ctx, 100); err != nil {
		t.Fatalf("Throttle() error = %v", err)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("sleeps = %v, want none after the window passed", *sleeps)
	}
}

func TestRedisThrottleZeroChangesOnlyChecks(t *testing.T) {
	th, _, sleeps := newThrottle(t)
	ctx := context.Background()

	if err := th.Throttle(ctx, 0); err != nil {
		t.Fatalf("Throttle(0) error = %v", err)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("sleeps = %v, want none", *sleeps)
	}
}

func TestCountParsesMember(t *testing.T) {
	n, err := count(member(42))
	if err != nil || n != 42 {
		t.Fatalf("count(member(42)) = %d, %v, want 42", n, err)
	}
	if _, err := count("garbage"); err == nil {
		t.Fatalf("count(garbage) error = nil, want error")
	}
}

func TestRedisThrottlePauseStopsWithContext(t *testing.T) {
	th, _, _ := newThrottle(t)
	th.Sleep = nil
	th.Pause = time.Hour

	if err := th.Throttle(context.Background(), 200); err != nil {
		t.Fatalf("Throttle() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := th.Throttle(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Throttle() error = %v, want context.DeadlineExceeded", err)
	}
}
