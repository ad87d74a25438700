package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"route-results-service/internal/platform/logging"
	"route-results-service/internal/platform/metrics"
	"route-results-service/internal/services"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisThrottle is a status-change throttle whose trailing window lives in
// a Redis sorted set, so every daemon instance shares one budget.
type RedisThrottle struct {
	Client *redis.Client
	Key    string
	Limit  int
	Window time.Duration
	Pause  time.Duration

	// Now and Sleep are replaceable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRedisThrottle(client *redis.Client, key string, limit int, window, pause time.Duration) *RedisThrottle {
	return &RedisThrottle{Client: client, Key: key, Limit: limit, Window: window, Pause: pause}
}

// Throttle records n status changes and pauses once the window holds more
// than Limit changes.
func (t *RedisThrottle) Throttle(ctx context.Context, n int) error {
	if t.Client == nil {
		return errors.New("redis throttle: client is nil")
	}

	now := t.now()
	cutoff := now.Add(-t.Window).UnixNano()

	var members *redis.StringSliceCmd
	_, err := t.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, t.Key, "-inf", strconv.FormatInt(cutoff, 10))
		if n > 0 {
			p.ZAdd(ctx, t.Key, redis.Z{Score: float64(now.UnixNano()), Member: member(n)})
		}
		members = p.ZRange(ctx, t.Key, 0, -1)
		p.PExpire(ctx, t.Key, t.Window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis throttle: %w", err)
	}

	total := 0
	for _, m := range members.Val() {
		c, err := count(m)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("member", m).Msg("redis throttle: skipping malformed entry")
			continue
		}
		total += c
	}

	if total <= t.Limit {
		return nil
	}
	metrics.ThrottlePauses.Inc()
	logging.Ctx(ctx).Info().Int("changes", total).Dur("pause", t.Pause).Msg("status change rate over limit, pausing")
	return t.sleep(ctx, t.Pause)
}

// Entries are "<count>:<uuid>" so equal counts stay distinct members.
func member(n int) string {
	return strconv.Itoa(n) + ":" + uuid.NewString()
}

func count(m string) (int, error) {
	head, _, ok := strings.Cut(m, ":")
	if !ok {
		return 0, fmt.Errorf("malformed entry %q", m)
	}
	return strconv.Atoi(head)
}

func (t *RedisThrottle) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *RedisThrottle) sleep(ctx context.Context, d time.Duration) error {
	if t.Sleep != nil {
		return t.Sleep(ctx, d)
	}
	return services.SleepContext(ctx, d)
}
