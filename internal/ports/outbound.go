package ports

import (
	"context"
	"route-results-service/internal/domain"
)

// Port: push notification dispatch.
type Notifier interface {
	Notify(ctx context.Context, msg domain.PushMessage) error
}

// Port: optimisation activity feed. Emitting never fails the caller.
type EventSink interface {
	Emit(ctx context.Context, ev domain.Event)
}

// Port: caps the burst rate of order status changes. Throttle records n
// changes and blocks while the recent volume is over the limit.
type StatusThrottle interface {
	Throttle(ctx context.Context, n int) error
}
