package services

import (
	"context"
	"errors"
	"fmt"
	"route-results-service/internal/domain"
	"route-results-service/internal/platform/logging"
	"route-results-service/internal/platform/metrics"
	"route-results-service/internal/platform/obs"
	"route-results-service/internal/ports"
)

// Mode selects how a solver result is applied to persisted routes.
type Mode string

const (
	ModeSolo            Mode = "solo"
	ModeAdvanced        Mode = "advanced"
	ModeRefresh         Mode = "refresh"
	ModeMoveNew         Mode = "move_new"
	ModeMoveNewAdvanced Mode = "move_new_advanced"
	ModeMoveExisting    Mode = "move_existing"
)

func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if _, err := ReconcilerFor(m); err != nil {
		return "", fmt.Errorf("parse mode %q: %w", s, err)
	}
	return m, nil
}

func (m Mode) moves() bool {
	return m == ModeMoveNew || m == ModeMoveNewAdvanced || m == ModeMoveExisting
}

// Refresh and move modes persist and apply side effects in one transaction.
func (m Mode) atomic() bool {
	return m == ModeRefresh || m.moves()
}

// Points being moved and, for ModeMoveExisting, the route receiving them.
type MoveParams struct {
	MovedPointIDs []int64
	TargetRouteID int64
}

// PreparedResult is a reconciled result ready to be saved.
type PreparedResult struct {
	Routes []*RouteResult

	// Point ids that were already on the route before a refresh; their
	// orders are not counted again when assigning.
	existing map[int64]struct{}
	// Routes that lost moved points.
	sourceRouteIDs []int64
}

// ResultKeeper applies solver results to persisted routes.
//
// PrepareAndSave builds routes from the assignment, reconciles them with
// what is persisted, saves them, moves the routed orders to assigned and
// notifies drivers once everything is committed. Status changes made
// outside a transaction are reverted if a later step fails.
type ResultKeeper struct {
	Repo     ports.UnitOfWork
	Notifier ports.Notifier
	Events   ports.EventSink
	Throttle ports.StatusThrottle
	Mode     Mode
}

func (k *ResultKeeper) PrepareAndSave(
	ctx context.Context,
	opt *domain.Optimisation,
	result *domain.AssignmentResult,
	params MoveParams,
) (err error) {
	defer obs.Time(ctx, "keeper.prepare_and_save")(&err)

	if opt == nil || result == nil {
		return errors.New("prepare and save: optimisation and result must be non-nil")
	}

	prepared, err := k.Prepare(ctx, opt, result, params)
	if err != nil {
		metrics.ResultsApplied.WithLabelValues(string(k.Mode), "rolled_back").Inc()
		return fmt.Errorf("prepare and save: optimisation %d: %w", opt.ID, err)
	}

	if err := k.Save(ctx, opt, result, prepared); err != nil {
		metrics.ResultsApplied.WithLabelValues(string(k.Mode), "rolled_back").Inc()
		return fmt.Errorf("prepare and save: optimisation %d: %w", opt.ID, err)
	}

	outcome := "committed"
	if !result.Good {
		outcome = "not_good"
	}
	metrics.ResultsApplied.WithLabelValues(string(k.Mode), outcome).Inc()
	return nil
}

// Prepare builds and reconciles the result without persisting route rows.
// Location rows for new waypoints are created here. A not-good result
// prepares nothing.
func (k *ResultKeeper) Prepare(
	ctx context.Context,
	opt *domain.Optimisation,
	result *domain.AssignmentResult,
	params MoveParams,
) (*PreparedResult, error) {
	reconciler, err := ReconcilerFor(k.Mode)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}

	if !result.Good {
		return &PreparedResult{}, nil
	}

	var exclude []string
	if k.Mode == ModeMoveNewAdvanced {
		exclude, err = k.ownerColors(ctx, opt)
		if err != nil {
			return nil, fmt.Errorf("prepare: %w", err)
		}
	}

	builder := &ResultBuilder{Repo: k.Repo}
	built, err := builder.Build(ctx, opt, result, exclude)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	if len(built.Routes) == 0 {
		return &PreparedResult{}, nil
	}

	prepared := &PreparedResult{}
	if k.Mode == ModeSolo || k.Mode == ModeAdvanced {
		for _, rr := range built.Routes {
			route, points, err := reconciler.Reconcile(ReconcileInput{NewRoute: rr.Route, NewPoints: rr.Points})
			if err != nil {
				return nil, fmt.Errorf("prepare: %w", err)
			}
			prepared.Routes = append(prepared.Routes, &RouteResult{Route: route, Points: points})
		}
		k.countPoints(prepared)
		return prepared, nil
	}

	// Refresh and move operations concern a single driver's route.
	first := built.Routes[0]
	if len(built.Routes) > 1 {
		logging.Ctx(ctx).Warn().
			Int64("optimisation_id", opt.ID).
			Int("routes", len(built.Routes)).
			Str("mode", string(k.Mode)).
			Msg("result has more than one route, only the first is applied")
	}

	in := ReconcileInput{NewRoute: first.Route, NewPoints: first.Points}
	switch k.Mode {
	case ModeRefresh:
		if err := k.loadRefreshInput(ctx, opt, &in, prepared); err != nil {
			return nil, fmt.Errorf("prepare: %w", err)
		}
	case ModeMoveNew, ModeMoveNewAdvanced, ModeMoveExisting:
		if err := k.loadMoveInput(ctx, params, &in, prepared); err != nil {
			return nil, fmt.Errorf("prepare: %w", err)
		}
	}

	route, points, err := reconciler.Reconcile(in)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	prepared.Routes = []*RouteResult{{Route: route, Points: points}}
	k.countPoints(prepared)
	return prepared, nil
}

func (k *ResultKeeper) loadRefreshInput(
	ctx context.Context,
	opt *domain.Optimisation,
	in *ReconcileInput,
	prepared *PreparedResult,
) error {
	if opt.SourceID == 0 {
		return errors.New("refresh: optimisation has no source optimisation")
	}

	routes, err := k.Repo.ListRoutes(ctx, opt.SourceID)
	if err != nil {
		return fmt.Errorf("refresh: list source routes: %w", err)
	}

	var existing *domain.Route
	for _, r := range routes {
		if r.DriverID == in.NewRoute.DriverID {
			existing = r
			break
		}
	}
	if existing == nil {
		return fmt.Errorf("refresh: driver %d has no route in optimisation %d: %w",
			in.NewRoute.DriverID, opt.SourceID, domain.ErrNotFound)
	}

	points, err := k.Repo.ListPoints(ctx, existing.ID)
	if err != nil {
		return fmt.Errorf("refresh: list points of route %d: %w", existing.ID, err)
	}

	prepared.existing = make(map[int64]struct{}, len(points))
	for _, p := range points {
		prepared.existing[p.ID] = struct{}{}
	}

	in.OldRoute = existing
	in.OldPoints = points
	return nil
}

func (k *ResultKeeper) loadMoveInput(
	ctx context.Context,
	params MoveParams,
	in *ReconcileInput,
	prepared *PreparedResult,
) error {
	if len(params.MovedPointIDs) == 0 {
		return errors.New("move orders: no points to move")
	}

	moved, err := k.Repo.GetPoints(ctx, params.MovedPointIDs)
	if err != nil {
		return fmt.Errorf("move orders: load moved points: %w", err)
	}
	if len(moved) != len(params.MovedPointIDs) {
		return fmt.Errorf("move orders: found %d of %d moved points: %w",
			len(moved), len(params.MovedPointIDs), domain.ErrNotFound)
	}
	in.OldPoints = moved

	if k.Mode == ModeMoveExisting {
		if params.TargetRouteID == 0 {
			return errors.New("move orders: target route is required")
		}
		target, err := k.Repo.GetRoute(ctx, params.TargetRouteID)
		if err != nil {
			return fmt.Errorf("move orders: load target route %d: %w", params.TargetRouteID, err)
		}
		targetPoints, err := k.Repo.ListPoints(ctx, target.ID)
		if err != nil {
			return fmt.Errorf("move orders: list points of route %d: %w", target.ID, err)
		}
		in.OldRoute = target
		in.TargetPoints = targetPoints
	}

	seen := make(map[int64]struct{})
	for _, p := range moved {
		if p.RouteID == 0 || p.RouteID == params.TargetRouteID {
			continue
		}
		if _, ok := seen[p.RouteID]; ok {
			continue
		}
		seen[p.RouteID] = struct{}{}
		prepared.sourceRouteIDs = append(prepared.sourceRouteIDs, p.RouteID)
	}
	return nil
}

// ownerOptimisationID is the optimisation new routes are attached to. An
// advanced move adds the new route to the advanced optimisation itself.
func (k *ResultKeeper) ownerOptimisationID(opt *domain.Optimisation) int64 {
	if k.Mode == ModeMoveNewAdvanced && opt.SourceID != 0 {
		return opt.SourceID
	}
	return opt.ID
}

func (k *ResultKeeper) ownerColors(ctx context.Context, opt *domain.Optimisation) ([]string, error) {
	routes, err := k.Repo.ListRoutes(ctx, k.ownerOptimisationID(opt))
	if err != nil {
		return nil, fmt.Errorf("list owner routes: %w", err)
	}
	colors := make([]string, 0, len(routes))
	for _, r := range routes {
		colors = append(colors, r.Color)
	}
	return colors, nil
}

func (k *ResultKeeper) countPoints(prepared *PreparedResult) {
	for _, rr := range prepared.Routes {
		for _, p := range rr.Points {
			identity := "created"
			if p.Persisted() {
				identity = "reused"
			}
			metrics.PointsReconciled.WithLabelValues(string(k.Mode), identity).Inc()
		}
	}
}
