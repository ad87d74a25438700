package services

import (
	"context"
	"route-results-service/internal/adapters/memstore"
	"route-results-service/internal/domain"
	"sync"
	"testing"
	"time"
)

var testDay = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func at(minute int) time.Time {
	return testDay.Add(8*time.Hour + time.Duration(minute)*time.Minute)
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []domain.PushMessage
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg domain.PushMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

type recordingEvents struct {
	mu     sync.Mutex
	events []domain.Event
}

func (e *recordingEvents) Emit(ctx context.Context, ev domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *recordingEvents) ofType(t domain.EventType) []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.Event
	for _, ev := range e.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type countingThrottle struct {
	calls  int
	total  int
	failAt int
	err    error
}

func (c *countingThrottle) Throttle(ctx context.Context, n int) error {
	c.calls++
	c.total += n
	if c.failAt == c.calls {
		return c.err
	}
	return nil
}

func deliveryStop(orderID int64, minute int) domain.StopPlan {
	return domain.StopPlan{
		Kind:        domain.KindDelivery,
		Prototype:   &domain.Prototype{ID: orderID},
		ServiceTime: 300,
		DrivingTime: 600,
		Distance:    1000 + int(orderID),
		StartTime:   at(minute),
		EndTime:     at(minute + 5),
	}
}

func hubStop(hubID int64, minute int) domain.StopPlan {
	return domain.StopPlan{
		Kind:      domain.KindHub,
		Prototype: &domain.Prototype{ID: hubID},
		StartTime: at(minute),
		EndTime:   at(minute),
	}
}

func breakStop(minute int) domain.StopPlan {
	return domain.StopPlan{
		Kind:        domain.KindBreak,
		ServiceTime: 900,
		StartTime:   at(minute),
		EndTime:     at(minute + 15),
	}
}

func locationStop(lon, lat float64, minute int) domain.StopPlan {
	return domain.StopPlan{
		Kind:      domain.KindLocation,
		Prototype: &domain.Prototype{Address: "waypoint", Coordinates: domain.Coordinates{Lon: lon, Lat: lat}},
		StartTime: at(minute),
		EndTime:   at(minute),
	}
}

func goodResult(tours map[int64][]domain.StopPlan) *domain.AssignmentResult {
	dt := make(map[int64]*domain.DriverTour, len(tours))
	for driverID, stops := range tours {
		dt[driverID] = &domain.DriverTour{
			Stops:           stops,
			DrivingTime:     600 * len(stops),
			FullTime:        900 * len(stops),
			DrivingDistance: 1000 * len(stops),
		}
	}
	return domain.NewAssignmentResult(dt, nil, nil, 0, 0)
}

// newStore seeds drivers 7 and 8, a dispatcher-created optimisation 1 and
// not assigned orders 101..110 of merchant 1.
func newStore(t *testing.T) *memstore.Store {
	t.Helper()

	s := memstore.New()
	s.AddDriver(&domain.Driver{MemberID: 7, FirstName: "Ann"})
	s.AddDriver(&domain.Driver{MemberID: 8, FirstName: "Bo"})
	s.AddOptimisation(&domain.Optimisation{
		ID:         1,
		Day:        testDay,
		MerchantID: 1,
		Type:       domain.OptimisationAdvanced,
		CreatedBy:  &domain.Actor{MemberID: 99},
	})
	for id := int64(101); id <= 110; id++ {
		s.AddOrder(&domain.Order{ID: id, MerchantID: 1, Status: domain.StatusNotAssigned})
	}
	return s
}

func newKeeper(s *memstore.Store, mode Mode) (*ResultKeeper, *recordingNotifier, *recordingEvents, *countingThrottle) {
	n := &recordingNotifier{}
	ev := &recordingEvents{}
	th := &countingThrottle{}
	return &ResultKeeper{Repo: s, Notifier: n, Events: ev, Throttle: th, Mode: mode}, n, ev, th
}

// seedRoute persists a route of opt for driverID with one delivery point
// per order and returns the route and its points.
func seedRoute(t *testing.T, s *memstore.Store, optID, driverID int64, orderIDs ...int64) (*domain.Route, []*domain.Point) {
	t.Helper()
	ctx := context.Background()

	route := &domain.Route{OptimisationID: optID, DriverID: driverID, Color: "#BF4040", State: domain.RouteCreated}
	if err := s.CreateRoute(ctx, route); err != nil {
		t.Fatalf("CreateRoute() error = %v", err)
	}

	points := make([]*domain.Point, 0, len(orderIDs))
	for i, id := range orderIDs {
		points = append(points, &domain.Point{
			RouteID:   route.ID,
			Number:    i + 1,
			Kind:      domain.KindDelivery,
			Ref:       domain.EntityRef{Type: domain.EntityOrder, ID: id},
			StartTime: at(10 * (i + 1)),
			EndTime:   at(10*(i+1) + 5),
		})
	}
	if err := s.InsertPoints(ctx, points); err != nil {
		t.Fatalf("InsertPoints() error = %v", err)
	}
	if err := s.SetOrdering(ctx, LinkChain(points)); err != nil {
		t.Fatalf("SetOrdering() error = %v", err)
	}
	if err := s.BulkStatusChange(ctx, orderIDs, domain.StatusAssigned, driverID); err != nil {
		t.Fatalf("BulkStatusChange() error = %v", err)
	}
	return route, points
}

func listPoints(t *testing.T, s *memstore.Store, routeID int64) []*domain.Point {
	t.Helper()
	points, err := s.ListPoints(context.Background(), routeID)
	if err != nil {
		t.Fatalf("ListPoints(%d) error = %v", routeID, err)
	}
	return points
}

func listRoutes(t *testing.T, s *memstore.Store, optID int64) []*domain.Route {
	t.Helper()
	routes, err := s.ListRoutes(context.Background(), optID)
	if err != nil {
		t.Fatalf("ListRoutes(%d) error = %v", optID, err)
	}
	return routes
}

func orderRefs(points []*domain.Point) []int64 {
	var ids []int64
	for _, p := range points {
		if p.Ref.Type == domain.EntityOrder {
			ids = append(ids, p.Ref.ID)
		}
	}
	return ids
}

// checkLayout asserts contiguous numbering and a null-terminated chain
// over every location-bearing point.
func checkLayout(t *testing.T, points []*domain.Point) {
	t.Helper()

	byID := make(map[int64]*domain.Point, len(points))
	var located []*domain.Point
	for i, p := range points {
		if p.Number != i+1 {
			t.Fatalf("point %d Number = %d, want %d", p.ID, p.Number, i+1)
		}
		byID[p.ID] = p
		if p.HasLocation() {
			located = append(located, p)
		} else if p.NextPointID != 0 {
			t.Fatalf("point %d without location links to %d", p.ID, p.NextPointID)
		}
	}
	if len(located) == 0 {
		return
	}

	visited := 0
	for cur := located[0]; cur != nil; {
		if visited >= len(located) {
			t.Fatalf("chain does not terminate")
		}
		if cur.ID != located[visited].ID {
			t.Fatalf("chain step %d = point %d, want %d", visited, cur.ID, located[visited].ID)
		}
		visited++
		if cur.NextPointID == 0 {
			break
		}
		cur = byID[cur.NextPointID]
		if cur == nil {
			t.Fatalf("chain links outside the route")
		}
	}
	if visited != len(located) {
		t.Fatalf("chain visited %d points, want %d", visited, len(located))
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
