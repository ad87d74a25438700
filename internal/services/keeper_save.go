package services

import (
	"context"
	"errors"
	"fmt"
	"route-results-service/internal/domain"
	"route-results-service/internal/platform/logging"
	"route-results-service/internal/platform/metrics"
	"route-results-service/internal/ports"
	"time"
)

// Save persists a prepared result, applies order side effects and, once
// committed, notifies drivers. A not-good result only sends failure
// notifications.
func (k *ResultKeeper) Save(
	ctx context.Context,
	opt *domain.Optimisation,
	result *domain.AssignmentResult,
	prepared *PreparedResult,
) error {
	comp := &Compensation{}

	if err := k.save(ctx, opt, result, prepared, comp); err != nil {
		if comp.Len() == 0 {
			return err
		}
		if uerr := comp.Undo(ctx); uerr != nil {
			metrics.Compensations.WithLabelValues("failed").Inc()
			return errors.Join(err, fmt.Errorf("save: compensation: %w", uerr))
		}
		metrics.Compensations.WithLabelValues("ok").Inc()
		logging.Ctx(ctx).Warn().Int64("optimisation_id", opt.ID).Err(err).Msg("save failed, order statuses reverted")
		return err
	}

	k.push(ctx, opt, prepared, result.Good)
	return nil
}

func (k *ResultKeeper) save(
	ctx context.Context,
	opt *domain.Optimisation,
	result *domain.AssignmentResult,
	prepared *PreparedResult,
	comp *Compensation,
) error {
	if !result.Good {
		return nil
	}
	if prepared == nil {
		return errors.New("save: prepared result must be non-nil")
	}

	if k.Mode.atomic() {
		err := k.Repo.WithinTx(ctx, func(ctx context.Context, repo ports.Repository) error {
			if err := k.persist(ctx, repo, opt, prepared); err != nil {
				return err
			}
			return k.applySideEffects(ctx, repo, opt, result, prepared, comp)
		})
		// Effects applied inside the transaction were committed or rolled
		// back together with it.
		comp.Discard()
		return err
	}

	err := k.Repo.WithinTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		return k.persist(ctx, repo, opt, prepared)
	})
	if err != nil {
		return err
	}

	// Routes stay persisted if this fails; compensation only reverts order
	// statuses and assignment can simply be re-run.
	return k.applySideEffects(ctx, k.Repo, opt, result, prepared, comp)
}

func (k *ResultKeeper) persist(
	ctx context.Context,
	repo ports.Repository,
	opt *domain.Optimisation,
	prepared *PreparedResult,
) error {
	for _, rr := range prepared.Routes {
		route := rr.Route
		if route.ID == 0 {
			route.OptimisationID = k.ownerOptimisationID(opt)
			if err := repo.CreateRoute(ctx, route); err != nil {
				return fmt.Errorf("persist: create route for driver %d: %w", route.DriverID, err)
			}
		} else if err := repo.UpdateRoute(ctx, route); err != nil {
			return fmt.Errorf("persist: update route %d: %w", route.ID, err)
		}

		if err := createLocations(ctx, repo, rr.Points); err != nil {
			return fmt.Errorf("persist: route for driver %d: %w", route.DriverID, err)
		}

		var inserts, updates []*domain.Point
		for _, p := range rr.Points {
			p.RouteID = route.ID
			p.NextPointID = 0
			if p.Persisted() {
				updates = append(updates, p)
			} else {
				inserts = append(inserts, p)
			}
		}

		if err := repo.UpdatePoints(ctx, updates); err != nil {
			return fmt.Errorf("persist: update points of route %d: %w", route.ID, err)
		}
		if err := repo.InsertPoints(ctx, inserts); err != nil {
			return fmt.Errorf("persist: insert points of route %d: %w", route.ID, err)
		}

		if k.Mode != ModeSolo && k.Mode != ModeAdvanced {
			keep := make([]int64, 0, len(rr.Points))
			for _, p := range rr.Points {
				keep = append(keep, p.ID)
			}
			// Breaks are recomputed by every run. Other unreused points stay
			// and are numbered after the solver's stops.
			deleted, err := repo.DeleteBreaksExcept(ctx, route.ID, keep)
			if err != nil {
				return fmt.Errorf("persist: delete stale breaks of route %d: %w", route.ID, err)
			}
			if deleted > 0 {
				logging.Ctx(ctx).Debug().Int64("route_id", route.ID).Int("deleted", deleted).Msg("stale breaks deleted")
			}
		}

		if err := normalizeRoute(ctx, repo, route.ID, rr.Points); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
	}

	for _, id := range prepared.sourceRouteIDs {
		if err := normalizeRoute(ctx, repo, id, nil); err != nil {
			return fmt.Errorf("persist: source route: %w", err)
		}
	}

	return nil
}

// createLocations inserts the waypoint rows of new location points and
// points them at the created rows.
func createLocations(ctx context.Context, repo ports.Repository, points []*domain.Point) error {
	for _, p := range points {
		if p.NewLocation == nil || p.Persisted() {
			continue
		}
		loc := p.NewLocation
		if err := repo.CreateLocation(ctx, loc); err != nil {
			return fmt.Errorf("create location: %w", err)
		}
		p.Ref.ID = loc.ID
		p.NewLocation = nil
	}
	return nil
}

// normalizeRoute renumbers a route's points 1..n and rebuilds the
// next_point chain. Points listed in ordered come first in that order;
// any other points of the route follow in their stored order.
func normalizeRoute(ctx context.Context, repo ports.Repository, routeID int64, ordered []*domain.Point) error {
	stored, err := repo.ListPoints(ctx, routeID)
	if err != nil {
		return fmt.Errorf("normalize route %d: list points: %w", routeID, err)
	}

	placed := make(map[int64]struct{}, len(ordered))
	all := make([]*domain.Point, 0, len(stored))
	for _, p := range ordered {
		placed[p.ID] = struct{}{}
		all = append(all, p)
	}
	for _, p := range stored {
		if _, ok := placed[p.ID]; !ok {
			all = append(all, p)
		}
	}

	LinkChain(renumber(all))
	if err := repo.SetOrdering(ctx, all); err != nil {
		return fmt.Errorf("normalize route %d: set ordering: %w", routeID, err)
	}
	return nil
}

func (k *ResultKeeper) applySideEffects(
	ctx context.Context,
	repo ports.Repository,
	opt *domain.Optimisation,
	result *domain.AssignmentResult,
	prepared *PreparedResult,
	comp *Compensation,
) error {
	k.processSkipped(ctx, opt, result)

	if !k.Mode.atomic() {
		k.emit(ctx, opt, domain.EventProgress, map[string]any{"stage": "assign", "assign_percent": 30})
	}

	for _, rr := range prepared.Routes {
		if k.Mode.moves() {
			if err := k.reassignDriver(ctx, repo, opt, rr, prepared, comp); err != nil {
				return err
			}
		}
		if err := k.assignRouteOrders(ctx, repo, opt, rr, prepared.existing, comp); err != nil {
			return err
		}
	}

	if k.Mode.atomic() {
		return k.markCustomersNotified(ctx, repo, opt, prepared)
	}
	return nil
}

func (k *ResultKeeper) processSkipped(ctx context.Context, opt *domain.Optimisation, result *domain.AssignmentResult) {
	if len(result.SkippedOrders) > 0 {
		k.emit(ctx, opt, domain.EventSkippedObjects, map[string]any{"objects": result.SkippedOrders, "code": "order"})
	}
	if len(result.SkippedDrivers) > 0 {
		k.emit(ctx, opt, domain.EventSkippedObjects, map[string]any{"objects": result.SkippedDrivers, "code": "driver"})
	}
}

// assignRouteOrders moves the route's not yet assigned delivery orders to
// assigned, logs the route summary and throttles the change rate.
func (k *ResultKeeper) assignRouteOrders(
	ctx context.Context,
	repo ports.Repository,
	opt *domain.Optimisation,
	rr *RouteResult,
	exclude map[int64]struct{},
	comp *Compensation,
) error {
	route := rr.Route

	orderIDs := make([]int64, 0, len(rr.Points))
	for _, p := range rr.Points {
		if p.Kind != domain.KindDelivery || p.Ref.Type != domain.EntityOrder {
			continue
		}
		if _, skip := exclude[p.ID]; skip {
			continue
		}
		orderIDs = append(orderIDs, p.Ref.ID)
	}

	var orders []*domain.Order
	if len(orderIDs) > 0 {
		var err error
		orders, err = repo.ListOrders(ctx, opt.MerchantID, orderIDs)
		if err != nil {
			return fmt.Errorf("assign orders: route %d: list orders: %w", route.ID, err)
		}
	}

	var notAssigned, previouslyAssigned []int64
	for _, o := range orders {
		if o.Status == domain.StatusNotAssigned {
			notAssigned = append(notAssigned, o.ID)
		} else {
			previouslyAssigned = append(previouslyAssigned, o.ID)
		}
	}

	if len(notAssigned) > 0 {
		if err := repo.BulkStatusChange(ctx, notAssigned, domain.StatusAssigned, route.DriverID); err != nil {
			return fmt.Errorf("assign orders: route %d: %w", route.ID, err)
		}
		ids := notAssigned
		comp.Record(Effect{
			Name: fmt.Sprintf("assign %d orders to driver %d", len(ids), route.DriverID),
			Undo: func(ctx context.Context) error {
				return k.Repo.BulkStatusChange(ctx, ids, domain.StatusNotAssigned, 0)
			},
		})
		metrics.OrderStatusChanges.Add(float64(len(notAssigned)))
	}

	if len(orderIDs) > 0 {
		k.emit(ctx, opt, domain.EventAssignedAfterRO, map[string]any{
			"driver":              route.DriverID,
			"route":               route.ID,
			"count":               len(orderIDs),
			"assigned":            nonNil(notAssigned),
			"previously_assigned": nonNil(previouslyAssigned),
		})
	}

	if k.Throttle == nil {
		return nil
	}
	if err := k.Throttle.Throttle(ctx, len(notAssigned)); err != nil {
		return fmt.Errorf("assign orders: throttle: %w", err)
	}
	return nil
}

// reassignDriver hands orders already assigned to another driver over to
// the route's driver.
func (k *ResultKeeper) reassignDriver(
	ctx context.Context,
	repo ports.Repository,
	opt *domain.Optimisation,
	rr *RouteResult,
	prepared *PreparedResult,
	comp *Compensation,
) error {
	route := rr.Route

	var ids []int64
	for _, p := range rr.Points {
		if p.Kind == domain.KindDelivery && p.Ref.Type == domain.EntityOrder {
			ids = append(ids, p.Ref.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	orders, err := repo.ListOrders(ctx, opt.MerchantID, ids)
	if err != nil {
		return fmt.Errorf("reassign driver: list orders: %w", err)
	}

	type previous struct {
		status domain.OrderStatus
		driver int64
	}
	groups := make(map[previous][]int64)
	var reassigned []int64
	for _, o := range orders {
		if o.Status == domain.StatusNotAssigned || o.DriverID == route.DriverID {
			continue
		}
		key := previous{status: o.Status, driver: o.DriverID}
		groups[key] = append(groups[key], o.ID)
		reassigned = append(reassigned, o.ID)
	}

	if len(reassigned) > 0 {
		if err := repo.BulkStatusChange(ctx, reassigned, domain.StatusAssigned, route.DriverID); err != nil {
			return fmt.Errorf("reassign driver: %w", err)
		}
		for key, ids := range groups {
			comp.Record(Effect{
				Name: fmt.Sprintf("reassign %d orders from driver %d", len(ids), key.driver),
				Undo: func(ctx context.Context) error {
					return k.Repo.BulkStatusChange(ctx, ids, key.status, key.driver)
				},
			})
		}
	}

	k.emit(ctx, opt, domain.EventMoveJobs, map[string]any{
		"source_routes": nonNil(prepared.sourceRouteIDs),
		"target_route":  route.ID,
		"jobs":          nonNil(reassigned),
	})
	return nil
}

// markCustomersNotified clears the customers-notified flag of every touched
// optimisation whose customers were told a start time that has now changed.
// Unchanged optimisations get an activity event instead.
func (k *ResultKeeper) markCustomersNotified(
	ctx context.Context,
	repo ports.Repository,
	opt *domain.Optimisation,
	prepared *PreparedResult,
) error {
	changed := false
	owners := make([]int64, 0, 1+len(prepared.sourceRouteIDs))
	seen := make(map[int64]struct{})
	addOwner := func(id int64) {
		if _, ok := seen[id]; ok || id == 0 {
			return
		}
		seen[id] = struct{}{}
		owners = append(owners, id)
	}

	for _, rr := range prepared.Routes {
		addOwner(rr.Route.OptimisationID)
		for _, p := range rr.Points {
			if p.CustomerTimeChanged() {
				changed = true
			}
		}
	}
	for _, id := range prepared.sourceRouteIDs {
		r, err := repo.GetRoute(ctx, id)
		if err != nil {
			return fmt.Errorf("customers notified: load route %d: %w", id, err)
		}
		addOwner(r.OptimisationID)
	}

	for _, id := range owners {
		o, err := repo.GetOptimisation(ctx, id)
		if err != nil {
			return fmt.Errorf("customers notified: load optimisation %d: %w", id, err)
		}
		if changed && o.CustomersNotified {
			if err := repo.SetCustomersNotified(ctx, id, false); err != nil {
				return fmt.Errorf("customers notified: optimisation %d: %w", id, err)
			}
			continue
		}
		k.emit(ctx, o, domain.EventOptimisationChanged, map[string]any{"initiator": actorID(opt.CreatedBy)})
	}
	return nil
}

func (k *ResultKeeper) emit(ctx context.Context, opt *domain.Optimisation, t domain.EventType, params map[string]any) {
	if k.Events == nil {
		return
	}
	k.Events.Emit(ctx, domain.Event{OptimisationID: opt.ID, Type: t, Params: params, At: time.Now().UTC()})
}

func actorID(a *domain.Actor) int64 {
	if a == nil {
		return 0
	}
	return a.MemberID
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
