package memstore

import (
	"context"
	"fmt"
	"maps"
	"route-results-service/internal/domain"
	"route-results-service/internal/ports"
	"slices"
	"sync"
	"time"
)

// Store is an in-memory UnitOfWork. WithinTx snapshots the whole state and
// restores it when fn fails.
type Store struct {
	mu sync.Mutex

	optimisations map[int64]*domain.Optimisation
	drivers       map[int64]*domain.Driver
	routes        map[int64]*domain.Route
	routeDays     map[int64]string
	points        map[int64]*domain.Point
	locations     map[int64]*domain.Location
	orders        map[int64]*domain.Order
	nextID        int64

	failures map[string]failure
	calls    map[string]int
}

type failure struct {
	call int
	err  error
}

func New() *Store {
	return &Store{
		optimisations: map[int64]*domain.Optimisation{},
		drivers:       map[int64]*domain.Driver{},
		routes:        map[int64]*domain.Route{},
		routeDays:     map[int64]string{},
		points:        map[int64]*domain.Point{},
		locations:     map[int64]*domain.Location{},
		orders:        map[int64]*domain.Order{},
		nextID:        1000,
		failures:      map[string]failure{},
		calls:         map[string]int{},
	}
}

// FailOn makes the n-th call (1-based) of the named method return err.
func (s *Store) FailOn(method string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = failure{call: n, err: err}
}

// Calls returns how often the named method ran.
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Store) hit(method string) error {
	s.calls[method]++
	if f, ok := s.failures[method]; ok && f.call == s.calls[method] {
		return f.err
	}
	return nil
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) AddOptimisation(o *domain.Optimisation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *o
	s.optimisations[o.ID] = &c
}

func (s *Store) AddDriver(d *domain.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *d
	s.drivers[d.MemberID] = &c
}

func (s *Store) AddOrder(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *o
	s.orders[o.ID] = &c
}

// Order returns a copy of the stored order, or nil.
func (s *Store) Order(id int64) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	c := *o
	return &c
}

// Optimisation returns a copy of the stored optimisation, or nil.
func (s *Store) Optimisation(id int64) *domain.Optimisation {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.optimisations[id]
	if !ok {
		return nil
	}
	c := *o
	return &c
}

// LocationCount returns the number of stored waypoint locations.
func (s *Store) LocationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locations)
}

// RouteCount returns the number of stored routes.
func (s *Store) RouteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.routes)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repo ports.Repository) error) error {
	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type state struct {
	optimisations map[int64]*domain.Optimisation
	routes        map[int64]*domain.Route
	routeDays     map[int64]string
	points        map[int64]*domain.Point
	locations     map[int64]*domain.Location
	orders        map[int64]*domain.Order
}

func (s *Store) snapshot() state {
	return state{
		optimisations: cloneAll(s.optimisations),
		routes:        cloneAll(s.routes),
		routeDays:     maps.Clone(s.routeDays),
		points:        cloneAll(s.points),
		locations:     cloneAll(s.locations),
		orders:        cloneAll(s.orders),
	}
}

func (s *Store) restore(st state) {
	s.optimisations = st.optimisations
	s.routes = st.routes
	s.routeDays = st.routeDays
	s.points = st.points
	s.locations = st.locations
	s.orders = st.orders
}

func cloneAll[T any](m map[int64]*T) map[int64]*T {
	out := make(map[int64]*T, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func (s *Store) GetOptimisation(ctx context.Context, id int64) (*domain.Optimisation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("GetOptimisation"); err != nil {
		return nil, err
	}
	o, ok := s.optimisations[id]
	if !ok {
		return nil, fmt.Errorf("optimisation %d: %w", id, domain.ErrNotFound)
	}
	c := *o
	return &c, nil
}

func (s *Store) SetCustomersNotified(ctx context.Context, optimisationID int64, notified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("SetCustomersNotified"); err != nil {
		return err
	}
	o, ok := s.optimisations[optimisationID]
	if !ok {
		return fmt.Errorf("optimisation %d: %w", optimisationID, domain.ErrNotFound)
	}
	o.CustomersNotified = notified
	return nil
}

func (s *Store) GetDriver(ctx context.Context, memberID int64) (*domain.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("GetDriver"); err != nil {
		return nil, err
	}
	d, ok := s.drivers[memberID]
	if !ok {
		return nil, fmt.Errorf("driver %d: %w", memberID, domain.ErrNotFound)
	}
	c := *d
	return &c, nil
}

func (s *Store) ListRoutes(ctx context.Context, optimisationID int64) ([]*domain.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Route
	for _, id := range slices.Sorted(maps.Keys(s.routes)) {
		if r := s.routes[id]; r.OptimisationID == optimisationID {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *Store) GetRoute(ctx context.Context, id int64) (*domain.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.routes[id]
	if !ok {
		return nil, fmt.Errorf("route %d: %w", id, domain.ErrNotFound)
	}
	c := *r
	return &c, nil
}

func (s *Store) UsedColors(ctx context.Context, driverID int64, day time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := day.Format(time.DateOnly)
	var out []string
	for _, id := range slices.Sorted(maps.Keys(s.routes)) {
		r := s.routes[id]
		if r.DriverID != driverID || s.routeDays[id] != d {
			continue
		}
		if r.State == domain.RouteCreated || r.State == domain.RouteRunning {
			out = append(out, r.Color)
		}
	}
	return out, nil
}

func (s *Store) CreateRoute(ctx context.Context, route *domain.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("CreateRoute"); err != nil {
		return err
	}
	route.ID = s.id()
	c := *route
	s.routes[route.ID] = &c
	if o, ok := s.optimisations[route.OptimisationID]; ok {
		s.routeDays[route.ID] = o.Day.Format(time.DateOnly)
	}
	return nil
}

func (s *Store) UpdateRoute(ctx context.Context, route *domain.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("UpdateRoute"); err != nil {
		return err
	}
	if _, ok := s.routes[route.ID]; !ok {
		return fmt.Errorf("route %d: %w", route.ID, domain.ErrNotFound)
	}
	c := *route
	s.routes[route.ID] = &c
	return nil
}

func (s *Store) ListPoints(ctx context.Context, routeID int64) ([]*domain.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Point
	for _, p := range s.points {
		if p.RouteID == routeID {
			out = append(out, s.loadPoint(p))
		}
	}
	slices.SortFunc(out, func(a, b *domain.Point) int {
		if a.Number != b.Number {
			return a.Number - b.Number
		}
		return int(a.ID - b.ID)
	})
	return out, nil
}

func (s *Store) GetPoints(ctx context.Context, ids []int64) ([]*domain.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Point
	for _, id := range ids {
		if p, ok := s.points[id]; ok {
			out = append(out, s.loadPoint(p))
		}
	}
	return out, nil
}

// loadPoint copies a stored point and joins the location coordinates.
func (s *Store) loadPoint(p *domain.Point) *domain.Point {
	c := *p
	c.Waypoint = nil
	if c.Ref.Type == domain.EntityLocation {
		if loc, ok := s.locations[c.Ref.ID]; ok {
			coords := loc.Coordinates
			c.Waypoint = &coords
		}
	}
	return &c
}

func (s *Store) InsertPoints(ctx context.Context, points []*domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("InsertPoints"); err != nil {
		return err
	}
	for _, p := range points {
		p.ID = s.id()
		c := *p
		s.points[p.ID] = &c
	}
	return nil
}

func (s *Store) UpdatePoints(ctx context.Context, points []*domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("UpdatePoints"); err != nil {
		return err
	}
	for _, p := range points {
		if _, ok := s.points[p.ID]; !ok {
			return fmt.Errorf("point %d: %w", p.ID, domain.ErrNotFound)
		}
		c := *p
		s.points[p.ID] = &c
	}
	return nil
}

func (s *Store) SetOrdering(ctx context.Context, points []*domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("SetOrdering"); err != nil {
		return err
	}
	for _, p := range points {
		stored, ok := s.points[p.ID]
		if !ok {
			return fmt.Errorf("point %d: %w", p.ID, domain.ErrNotFound)
		}
		stored.Number = p.Number
		stored.NextPointID = p.NextPointID
	}
	return nil
}

func (s *Store) DeleteBreaksExcept(ctx context.Context, routeID int64, keep []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("DeleteBreaksExcept"); err != nil {
		return 0, err
	}
	n := 0
	for id, p := range s.points {
		if p.RouteID != routeID || p.Kind != domain.KindBreak || slices.Contains(keep, id) {
			continue
		}
		delete(s.points, id)
		n++
	}
	return n, nil
}

func (s *Store) CreateLocation(ctx context.Context, loc *domain.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("CreateLocation"); err != nil {
		return err
	}
	loc.ID = s.id()
	c := *loc
	s.locations[loc.ID] = &c
	return nil
}

func (s *Store) ListOrders(ctx context.Context, merchantID int64, ids []int64) ([]*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Order
	for _, id := range slices.Sorted(slices.Values(ids)) {
		if o, ok := s.orders[id]; ok && o.MerchantID == merchantID {
			c := *o
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *Store) BulkStatusChange(ctx context.Context, ids []int64, to domain.OrderStatus, driverID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("BulkStatusChange"); err != nil {
		return err
	}
	for _, id := range ids {
		o, ok := s.orders[id]
		if !ok {
			continue
		}
		o.Status = to
		switch {
		case to == domain.StatusNotAssigned:
			o.DriverID = 0
		case driverID != 0:
			o.DriverID = driverID
		}
	}
	return nil
}

var _ ports.UnitOfWork = (*Store)(nil)
