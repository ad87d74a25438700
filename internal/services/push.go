package services

import (
	"context"
	"route-results-service/internal/domain"
	"route-results-service/internal/platform/logging"
	"route-results-service/internal/platform/metrics"
)

// push notifies drivers about a committed save. Failures are logged and
// counted; the routes are already persisted.
func (k *ResultKeeper) push(ctx context.Context, opt *domain.Optimisation, prepared *PreparedResult, good bool) {
	if k.Notifier == nil {
		return
	}
	for _, msg := range k.pushMessages(ctx, opt, prepared, good) {
		outcome := "sent"
		if err := k.Notifier.Notify(ctx, msg); err != nil {
			outcome = "failed"
			logging.Ctx(ctx).Error().Err(err).
				Str("type", string(msg.Type)).
				Int64("driver_id", msg.DriverID).
				Msg("push notification failed")
		}
		metrics.PushMessages.WithLabelValues(string(msg.Type), outcome).Inc()
	}
}

func (k *ResultKeeper) pushMessages(
	ctx context.Context,
	opt *domain.Optimisation,
	prepared *PreparedResult,
	good bool,
) []domain.PushMessage {
	var routes []*RouteResult
	if prepared != nil {
		routes = prepared.Routes
	}

	if !good || len(routes) == 0 {
		if opt.CreatedByDriver() {
			return []domain.PushMessage{domain.OptimisationStatusPush(opt, opt.CreatedBy.MemberID, 0, false)}
		}
		return nil
	}

	var msgs []domain.PushMessage
	switch k.Mode {
	case ModeSolo:
		if opt.CreatedByDriver() {
			creator := opt.CreatedBy.MemberID
			var routeID int64
			for _, rr := range routes {
				if rr.Route.DriverID == creator {
					routeID = rr.Route.ID
				}
			}
			return []domain.PushMessage{domain.OptimisationStatusPush(opt, creator, routeID, routeID != 0)}
		}
		for _, rr := range routes {
			msgs = append(msgs, domain.NewRoutePush(opt, rr.Route, k.driver(ctx, rr.Route.DriverID)))
		}
	case ModeAdvanced, ModeMoveNew, ModeMoveNewAdvanced:
		for _, rr := range routes {
			msgs = append(msgs, domain.NewRoutePush(opt, rr.Route, k.driver(ctx, rr.Route.DriverID)))
		}
	case ModeRefresh, ModeMoveExisting:
		for _, rr := range routes {
			msgs = append(msgs, domain.RouteChangedPush(opt, rr.Route, k.driver(ctx, rr.Route.DriverID)))
		}
	}

	if k.Mode.moves() {
		for _, id := range prepared.sourceRouteIDs {
			route, err := k.Repo.GetRoute(ctx, id)
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Int64("route_id", id).Msg("source route not loaded for push")
				continue
			}
			msgs = append(msgs, domain.RouteChangedPush(opt, route, k.driver(ctx, route.DriverID)))
		}
	}
	return msgs
}

// driver is used to personalise push text; nil when it can not be loaded.
func (k *ResultKeeper) driver(ctx context.Context, id int64) *domain.Driver {
	d, err := k.Repo.GetDriver(ctx, id)
	if err != nil {
		return nil
	}
	return d
}
