package services

import (
	"context"
	"errors"
	"fmt"
	"route-results-service/internal/domain"
	"route-results-service/internal/ports"
)

// One driver's route and its points, built from a solver tour and not yet
// persisted.
type RouteResult struct {
	Route  *domain.Route
	Points []*domain.Point
}

type OptimisationResult struct {
	Routes []*RouteResult
}

// ResultBuilder turns a solver assignment into unsaved routes and points.
type ResultBuilder struct {
	Repo ports.RouteRepository
}

// Build creates one route per tour. Drivers are processed in ascending id
// order. Location prototypes without an id become points carrying the
// location to create when they are saved. Any failure discards the whole
// result. A not-good assignment builds nothing.
func (b *ResultBuilder) Build(
	ctx context.Context,
	opt *domain.Optimisation,
	result *domain.AssignmentResult,
	excludeColors []string,
) (*OptimisationResult, error) {
	if opt == nil {
		return nil, errors.New("build result: optimisation must be non-nil")
	}
	if result == nil || !result.Good {
		return nil, nil
	}

	picker := domain.NewColorPicker()
	out := &OptimisationResult{Routes: make([]*RouteResult, 0, len(result.Tours))}

	for _, driverID := range result.DriverIDs() {
		tour := result.Tours[driverID]
		if tour == nil || len(tour.Stops) == 0 {
			return nil, fmt.Errorf("build result: driver %d has an empty tour", driverID)
		}

		if _, err := b.Repo.GetDriver(ctx, driverID); err != nil {
			return nil, fmt.Errorf("build result: driver %d: %w", driverID, err)
		}

		used, err := b.Repo.UsedColors(ctx, driverID, opt.Day)
		if err != nil {
			return nil, fmt.Errorf("build result: used colors of driver %d: %w", driverID, err)
		}
		used = append(used, excludeColors...)

		rr, err := b.buildRoute(driverID, tour, picker.Pick(used))
		if err != nil {
			return nil, fmt.Errorf("build result: driver %d: %w", driverID, err)
		}
		out.Routes = append(out.Routes, rr)
	}

	return out, nil
}

func (b *ResultBuilder) buildRoute(
	driverID int64,
	tour *domain.DriverTour,
	color string,
) (*RouteResult, error) {
	route := &domain.Route{
		DriverID:        driverID,
		Color:           color,
		Options:         map[string]any{},
		State:           domain.RouteCreated,
		StartTime:       tour.Stops[0].StartTime,
		EndTime:         tour.Stops[len(tour.Stops)-1].EndTime,
		TotalTime:       tour.FullTime,
		DrivingTime:     tour.DrivingTime,
		DrivingDistance: tour.DrivingDistance,
	}

	points := make([]*domain.Point, 0, len(tour.Stops))
	for i := range tour.Stops {
		p, err := b.buildPoint(i+1, &tour.Stops[i])
		if err != nil {
			return nil, fmt.Errorf("stop #%d: %w", i+1, err)
		}
		points = append(points, p)
	}

	return &RouteResult{Route: route, Points: points}, nil
}

func (b *ResultBuilder) buildPoint(number int, stop *domain.StopPlan) (*domain.Point, error) {
	if !stop.Kind.Valid() {
		return nil, fmt.Errorf("unknown point kind %q", stop.Kind)
	}

	p := &domain.Point{
		Number:           number,
		Kind:             stop.Kind,
		ServiceTime:      stop.ServiceTime,
		DrivingTime:      stop.DrivingTime,
		Distance:         stop.Distance,
		StartTime:        stop.StartTime,
		EndTime:          stop.EndTime,
		UtilizedCapacity: stop.UtilizedCapacity,
		PathPolyline:     stop.Polyline,
	}

	// Points without a backing entity, e.g. breaks.
	if stop.Prototype == nil {
		return p, nil
	}

	entity := stop.Entity
	if entity == "" {
		entity, _ = domain.EntityTypeFor(stop.Kind)
	}
	if !entity.Valid() {
		return nil, fmt.Errorf("%s stop has no entity type", stop.Kind)
	}

	p.Ref = domain.EntityRef{Type: entity, ID: stop.Prototype.ID}
	if p.Ref.ID == 0 {
		if entity != domain.EntityLocation {
			return nil, fmt.Errorf("%s prototype without id can not be created", entity)
		}
		c := stop.Prototype.Coordinates
		p.NewLocation = &domain.Location{Address: stop.Prototype.Address, Coordinates: c}
		p.Waypoint = &c
		return p, nil
	}

	if entity == domain.EntityLocation {
		switch {
		case stop.Location != nil:
			c := *stop.Location
			p.Waypoint = &c
		case stop.Prototype.Coordinates != (domain.Coordinates{}):
			c := stop.Prototype.Coordinates
			p.Waypoint = &c
		}
	}

	return p, nil
}
