package services

import (
	"context"
	"errors"
	"route-results-service/internal/domain"
	"testing"
)

func TestBuildPicksFreeColors(t *testing.T) {
	s := newStore(t)
	seedRoute(t, s, 1, 7, 110)
	b := &ResultBuilder{Repo: s}

	result := goodResult(map[int64][]domain.StopPlan{
		7: {deliveryStop(101, 10)},
		8: {deliveryStop(102, 10)},
	})
	out, err := b.Build(context.Background(), s.Optimisation(1), result, []string{domain.RoutePalette[2]})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(out.Routes) != 2 {
		t.Fatalf("routes = %d, want 2", len(out.Routes))
	}
	// Driver 7 already drives a route in the first colour.
	if got := out.Routes[0].Route.Color; got != domain.RoutePalette[1] {
		t.Fatalf("driver 7 colour = %q, want %q", got, domain.RoutePalette[1])
	}
	if got := out.Routes[1].Route.Color; got != domain.RoutePalette[0] {
		t.Fatalf("driver 8 colour = %q, want %q", got, domain.RoutePalette[0])
	}
}

func TestBuildDefersLocationCreation(t *testing.T) {
	s := newStore(t)
	b := &ResultBuilder{Repo: s}

	known := locationStop(1, 2, 10)
	known.Prototype.ID = 55
	known.Location = &domain.Coordinates{Lon: 3, Lat: 4}

	bare := locationStop(0, 0, 15)
	bare.Prototype.ID = 56

	result := goodResult(map[int64][]domain.StopPlan{
		7: {locationStop(13.4, 52.5, 0), known, bare, breakStop(20)},
	})
	out, err := b.Build(context.Background(), s.Optimisation(1), result, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if n := s.Calls("CreateLocation"); n != 0 {
		t.Fatalf("CreateLocation calls = %d, want 0 before saving", n)
	}
	points := out.Routes[0].Points
	created := points[0]
	if created.Ref.Type != domain.EntityLocation || created.Ref.ID != 0 || created.NewLocation == nil {
		t.Fatalf("new location point = %+v, want pending location", created)
	}
	if created.Waypoint == nil || created.Waypoint.Lat != 52.5 || created.NewLocation.Coordinates.Lon != 13.4 {
		t.Fatalf("new location coordinates = %+v, %+v", created.Waypoint, created.NewLocation)
	}
	if points[1].Ref.ID != 55 || points[1].NewLocation != nil || points[1].Waypoint == nil || points[1].Waypoint.Lon != 3 {
		t.Fatalf("known location point = %+v", points[1])
	}
	if points[2].Ref.ID != 56 || points[2].Waypoint != nil {
		t.Fatalf("location without coordinates = %+v, want no waypoint", points[2])
	}
	if !points[3].Ref.IsZero() || points[3].Number != 4 {
		t.Fatalf("break point = %+v", points[3])
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		tours map[int64][]domain.StopPlan
		want  error
	}{
		{"unknown driver", map[int64][]domain.StopPlan{9: {deliveryStop(101, 10)}}, domain.ErrNotFound},
		{"empty tour", map[int64][]domain.StopPlan{7: {}}, nil},
		{"unknown kind", map[int64][]domain.StopPlan{7: {{Kind: "teleport"}}}, nil},
		{"order without id", map[int64][]domain.StopPlan{7: {{Kind: domain.KindDelivery, Prototype: &domain.Prototype{}}}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			b := &ResultBuilder{Repo: s}

			_, err := b.Build(context.Background(), s.Optimisation(1), goodResult(tt.tours), nil)
			if err == nil {
				t.Fatal("Build() error = nil, want error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildNotGood(t *testing.T) {
	s := newStore(t)
	b := &ResultBuilder{Repo: s}

	out, err := b.Build(context.Background(), s.Optimisation(1), domain.FailedAssignment("ro_error", nil), nil)
	if err != nil || out != nil {
		t.Fatalf("Build() = %v, %v, want nil, nil", out, err)
	}
}
