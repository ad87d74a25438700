package services

import (
	"errors"
	"route-results-service/internal/domain"
)

// What is currently persisted and what the latest solver run produced.
// OldPoints means the route's persisted points for a refresh and the
// points being moved for move strategies. TargetPoints holds the current
// points of the target route when moving into an existing route.
type ReconcileInput struct {
	OldRoute     *domain.Route
	OldPoints    []*domain.Point
	TargetPoints []*domain.Point
	NewRoute     *domain.Route
	NewPoints    []*domain.Point
}

// Reconciler merges freshly built points with persisted ones. Matching is
// first-match in solver order: a consumed persisted point never matches
// again. The returned points are numbered 1..n in output order.
type Reconciler interface {
	Reconcile(in ReconcileInput) (*domain.Route, []*domain.Point, error)
}

// FreshCreate keeps the new route and points as they are.
type FreshCreate struct{}

func (FreshCreate) Reconcile(in ReconcileInput) (*domain.Route, []*domain.Point, error) {
	if in.NewRoute == nil {
		return nil, nil, errors.New("fresh create: new route must be non-nil")
	}
	return in.NewRoute, renumber(in.NewPoints), nil
}

// RefreshInPlace updates the persisted points of the same route in place,
// matching by stop identity or by waypoint coordinates. Unmatched new
// points are created. Unmatched persisted breaks are deleted when saving.
type RefreshInPlace struct{}

func (RefreshInPlace) Reconcile(in ReconcileInput) (*domain.Route, []*domain.Point, error) {
	if in.OldRoute == nil || in.NewRoute == nil {
		return nil, nil, errors.New("refresh: old and new route must be non-nil")
	}

	used := make([]bool, len(in.OldPoints))
	out := make([]*domain.Point, 0, len(in.NewPoints))

	for _, np := range in.NewPoints {
		match := -1
		for i, existing := range in.OldPoints {
			if used[i] {
				continue
			}
			if IsSameStop(np, existing) || IsSameWaypoint(np, existing) {
				match = i
				break
			}
		}

		if match < 0 {
			np.RouteID = in.OldRoute.ID
			out = append(out, np)
			continue
		}

		existing := in.OldPoints[match]
		existing.CopyPosition(np)
		used[match] = true
		out = append(out, existing)
	}

	in.OldRoute.CopyMetrics(in.NewRoute)
	return in.OldRoute, renumber(out), nil
}

// MoveToNewRoute reattaches moved points to a brand-new route. Orders are
// matched by identity only; hubs, waypoints and breaks are recomputed and
// pass through. Every moved point must be matched.
type MoveToNewRoute struct{}

func (MoveToNewRoute) Reconcile(in ReconcileInput) (*domain.Route, []*domain.Point, error) {
	if in.NewRoute == nil {
		return nil, nil, errors.New("move to new route: new route must be non-nil")
	}

	moved := indexMoved(in.OldPoints)
	out := make([]*domain.Point, 0, len(in.NewPoints))

	for _, np := range in.NewPoints {
		switch np.Kind {
		case domain.KindHub, domain.KindLocation, domain.KindBreak:
			out = append(out, np)
			continue
		}

		existing, ok := moved[uniqueKey(np)]
		if !ok {
			continue
		}
		existing.CopyPosition(np)
		existing.RouteID = in.NewRoute.ID
		out = append(out, existing)
		delete(moved, uniqueKey(np))
	}

	if err := leftover(moved, "new"); err != nil {
		return nil, nil, err
	}
	return in.NewRoute, renumber(out), nil
}

// MoveToExistingRoute merges moved points into an existing target route.
// Each new point is matched against the target's current points first and
// against the moved points second. Breaks are always created anew. The
// target keeps its identity and takes the new aggregate metrics.
type MoveToExistingRoute struct{}

func (MoveToExistingRoute) Reconcile(in ReconcileInput) (*domain.Route, []*domain.Point, error) {
	if in.OldRoute == nil || in.NewRoute == nil {
		return nil, nil, errors.New("move to existing route: target and new route must be non-nil")
	}

	target := in.OldRoute
	moved := indexMoved(in.OldPoints)
	used := make([]bool, len(in.TargetPoints))
	out := make([]*domain.Point, 0, len(in.NewPoints))

	for _, np := range in.NewPoints {
		if np.Kind == domain.KindBreak {
			np.RouteID = target.ID
			out = append(out, np)
			continue
		}

		matched := false
		for i, existing := range in.TargetPoints {
			if used[i] || !IsSameStop(np, existing) {
				continue
			}
			existing.CopyPosition(np)
			used[i] = true
			out = append(out, existing)
			matched = true
			break
		}
		if matched {
			continue
		}

		existing, ok := moved[uniqueKey(np)]
		if !ok {
			continue
		}
		existing.CopyPosition(np)
		existing.RouteID = target.ID
		out = append(out, existing)
		delete(moved, uniqueKey(np))
	}

	if err := leftover(moved, "existing"); err != nil {
		return nil, nil, err
	}

	target.CopyMetrics(in.NewRoute)
	return target, renumber(out), nil
}

func indexMoved(points []*domain.Point) map[stopKey]*domain.Point {
	m := make(map[stopKey]*domain.Point, len(points))
	for _, p := range points {
		m[uniqueKey(p)] = p
	}
	return m
}

func leftover(moved map[stopKey]*domain.Point, target string) error {
	for k := range moved {
		return &domain.MoveOrdersError{Target: target, Ref: k.ref}
	}
	return nil
}

// ReconcilerFor returns the strategy a result mode uses.
func ReconcilerFor(mode Mode) (Reconciler, error) {
	switch mode {
	case ModeSolo, ModeAdvanced:
		return FreshCreate{}, nil
	case ModeRefresh:
		return RefreshInPlace{}, nil
	case ModeMoveNew, ModeMoveNewAdvanced:
		return MoveToNewRoute{}, nil
	case ModeMoveExisting:
		return MoveToExistingRoute{}, nil
	}
	return nil, domain.ErrUnknownMode
}
