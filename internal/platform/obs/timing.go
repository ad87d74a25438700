package obs

import (
	"context"
	"route-results-service/internal/platform/logging"
	"route-results-service/internal/platform/metrics"
	"time"
)

// Time starts a timer for the named operation. Call the returned function
// with a pointer to the operation's error, typically via defer.
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			metrics.OperationDuration.WithLabelValues(name, "error").Observe(dur.Seconds())
			logging.Ctx(ctx).Warn().Str("op", name).Dur("dur", dur).Err(*errp).Msg("operation failed")
			return
		}
		metrics.OperationDuration.WithLabelValues(name, "ok").Observe(dur.Seconds())
		logging.Ctx(ctx).Debug().Str("op", name).Dur("dur", dur).Msg("operation done")
	}
}
