package repositories

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"route-results-service/internal/domain"
	"route-results-service/internal/platform/db"
	"route-results-service/internal/ports"
	"testing"
	"time"
)

const seedJSON = `{
	"drivers": [{"member_id": 7, "first_name": "Ann"}, {"member_id": 8, "first_name": "Bo"}],
	"orders": [
		{"id": 101, "merchant_id": 1, "status": "not_assigned"},
		{"id": 102, "merchant_id": 1, "driver_id": 8, "status": "assigned"},
		{"id": 103, "merchant_id": 2, "status": "not_assigned"}
	],
	"optimisations": [
		{"id": 1, "day": "2026-10-19", "merchant_id": 1, "type": "advanced", "created_by": 99, "customers_notified": true},
		{"id": 2, "day": "2026-10-19", "merchant_id": 1, "type": "solo", "created_by": 7, "created_by_driver": true, "source_id": 1}
	]
}`

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()

	conn, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := InitSchema(conn, DialectSQLite); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(seedJSON), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if err := SeedFromJSON(conn, DialectSQLite, path); err != nil {
		t.Fatalf("SeedFromJSON() error = %v", err)
	}

	return NewSQLStore(conn, DialectSQLite)
}

func mustCreateRoute(t *testing.T, s *SQLStore, optID, driverID int64, color string) *domain.Route {
	t.Helper()
	r := &domain.Route{OptimisationID: optID, DriverID: driverID, Color: color, State: domain.RouteCreated}
	if err := s.CreateRoute(context.Background(), r); err != nil {
		t.Fatalf("CreateRoute() error = %v", err)
	}
	return r
}

func TestRebind(t *testing.T) {
	got := DialectPostgres.Rebind("SELECT * FROM t WHERE a = ? AND b IN (?, ?)")
	want := "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)"
	if got != want {
		t.Fatalf("Rebind() = %q, want %q", got, want)
	}
	if q := "a = ?"; DialectSQLite.Rebind(q) != q {
		t.Fatalf("sqlite Rebind() changed the query")
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"postgres": DialectPostgres, "pgx": DialectPostgres, "SQLite": DialectSQLite} {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Fatalf("ParseDialect(mysql) error = nil, want error")
	}
}

func TestGetOptimisation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	opt, err := s.GetOptimisation(ctx, 2)
	if err != nil {
		t.Fatalf("GetOptimisation() error = %v", err)
	}
	if !opt.CreatedByDriver() || opt.CreatedBy.MemberID != 7 {
		t.Fatalf("CreatedBy = %+v, want driver 7", opt.CreatedBy)
	}
	if opt.SourceID != 1 || opt.Type != domain.OptimisationSolo {
		t.Fatalf("optimisation = %+v, want solo with source 1", opt)
	}
	if opt.Day.Format("2006-01-02") != "2026-10-19" {
		t.Fatalf("Day = %v, want 2026-10-19", opt.Day)
	}

	if _, err := s.GetOptimisation(ctx, 404); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetOptimisation(404) error = %v, want ErrNotFound", err)
	}
}

func TestSetCustomersNotified(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetCustomersNotified(ctx, 1, false); err != nil {
		t.Fatalf("SetCustomersNotified() error = %v", err)
	}
	opt, err := s.GetOptimisation(ctx, 1)
	if err != nil {
		t.Fatalf("GetOptimisation() error = %v", err)
	}
	if opt.CustomersNotified {
		t.Fatalf("CustomersNotified = true, want false")
	}
}

func TestUsedColorsOnlyActiveRoutesOfTheDay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateRoute(t, s, 1, 7, "#aaa")
	finished := mustCreateRoute(t, s, 1, 7, "#bbb")
	finished.State = domain.RouteFinished
	if err := s.UpdateRoute(ctx, finished); err != nil {
		t.Fatalf("UpdateRoute() error = %v", err)
	}
	mustCreateRoute(t, s, 1, 8, "#ccc")

	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	colors, err := s.UsedColors(ctx, 7, day)
	if err != nil {
		t.Fatalf("UsedColors() error = %v", err)
	}
	if len(colors) != 1 || colors[0] != "#aaa" {
		t.Fatalf("UsedColors() = %v, want [#aaa]", colors)
	}

	other, err := s.UsedColors(ctx, 7, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("UsedColors() error = %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("UsedColors(next day) = %v, want none", other)
	}
}

func TestRouteRoundTripKeepsMetrics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	r := &domain.Route{
		OptimisationID:  1,
		DriverID:        7,
		Color:           "#123456",
		Options:         map[string]any{"start_place": "hub"},
		State:           domain.RouteCreated,
		TotalTime:       3600,
		DrivingTime:     1800,
		DrivingDistance: 25000,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
	}
	if err := s.CreateRoute(ctx, r); err != nil {
		t.Fatalf("CreateRoute() error = %v", err)
	}

	got, err := s.GetRoute(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRoute() error = %v", err)
	}
	if got.DrivingDistance != 25000 || !got.EndTime.Equal(r.EndTime) {
		t.Fatalf("GetRoute() = %+v, want metrics of %+v", got, r)
	}
	if got.Options["start_place"] != "hub" {
		t.Fatalf("Options = %v, want start_place hub", got.Options)
	}

	routes, err := s.ListRoutes(ctx, 1)
	if err != nil {
		t.Fatalf("ListRoutes() error = %v", err)
	}
	if len(routes) != 1 || routes[0].ID != r.ID {
		t.Fatalf("ListRoutes() = %v, want route %d", routes, r.ID)
	}
}

func TestPointsWithWaypointAndOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	route := mustCreateRoute(t, s, 1, 7, "#aaa")

	loc := &domain.Location{Address: "Depot", Coordinates: domain.Coordinates{Lon: 151.2, Lat: -33.8}}
	if err := s.CreateLocation(ctx, loc); err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	known := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	points := []*domain.Point{
		{RouteID: route.ID, Number: 1, Kind: domain.KindLocation, Ref: domain.EntityRef{Type: domain.EntityLocation, ID: loc.ID}},
		{RouteID: route.ID, Number: 2, Kind: domain.KindBreak},
		{RouteID: route.ID, Number: 3, Kind: domain.KindDelivery, Ref: domain.EntityRef{Type: domain.EntityOrder, ID: 101},
			StartTime: known, StartTimeKnownToCustomer: &known},
	}
	if err := s.InsertPoints(ctx, points); err != nil {
		t.Fatalf("InsertPoints() error = %v", err)
	}
	for _, p := range points {
		if p.ID == 0 {
			t.Fatalf("InsertPoints() left point #%d without id", p.Number)
		}
	}

	points[0].NextPointID = points[2].ID
	if err := s.SetOrdering(ctx, points); err != nil {
		t.Fatalf("SetOrdering() error = %v", err)
	}

	got, err := s.ListPoints(ctx, route.ID)
	if err != nil {
		t.Fatalf("ListPoints() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(ListPoints()) = %d, want 3", len(got))
	}
	if got[0].Waypoint == nil || got[0].Waypoint.Lat != -33.8 {
		t.Fatalf("location point Waypoint = %+v, want lat -33.8", got[0].Waypoint)
	}
	if got[0].NextPointID != points[2].ID {
		t.Fatalf("NextPointID = %d, want %d", got[0].NextPointID, points[2].ID)
	}
	if got[2].StartTimeKnownToCustomer == nil || !got[2].StartTimeKnownToCustomer.Equal(known) {
		t.Fatalf("StartTimeKnownToCustomer = %v, want %v", got[2].StartTimeKnownToCustomer, known)
	}
	if got[2].Waypoint != nil {
		t.Fatalf("delivery point Waypoint = %+v, want nil", got[2].Waypoint)
	}

	byID, err := s.GetPoints(ctx, []int64{points[2].ID})
	if err != nil || len(byID) != 1 || byID[0].Ref.ID != 101 {
		t.Fatalf("GetPoints() = %v, %v, want order 101", byID, err)
	}
}

func TestDeleteBreaksExcept(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	route := mustCreateRoute(t, s, 1, 7, "#aaa")

	points := []*domain.Point{
		{RouteID: route.ID, Number: 1, Kind: domain.KindDelivery, Ref: domain.EntityRef{Type: domain.EntityOrder, ID: 101}},
		{RouteID: route.ID, Number: 2, Kind: domain.KindBreak},
		{RouteID: route.ID, Number: 3, Kind: domain.KindBreak},
		{RouteID: route.ID, Number: 4, Kind: domain.KindDelivery, Ref: domain.EntityRef{Type: domain.EntityOrder, ID: 102}},
	}
	if err := s.InsertPoints(ctx, points); err != nil {
		t.Fatalf("InsertPoints() error = %v", err)
	}

	n, err := s.DeleteBreaksExcept(ctx, route.ID, []int64{points[0].ID, points[2].ID})
	if err != nil {
		t.Fatalf("DeleteBreaksExcept() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted = %d, want 1", n)
	}

	left, err := s.ListPoints(ctx, route.ID)
	if err != nil {
		t.Fatalf("ListPoints() error = %v", err)
	}
	want := []int64{points[0].ID, points[2].ID, points[3].ID}
	if len(left) != len(want) {
		t.Fatalf("remaining points = %d, want %d", len(left), len(want))
	}
	for i, p := range left {
		if p.ID != want[i] {
			t.Fatalf("remaining point #%d = %d, want %d", i, p.ID, want[i])
		}
	}
}

func TestBulkStatusChange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.BulkStatusChange(ctx, []int64{101}, domain.StatusAssigned, 7); err != nil {
		t.Fatalf("BulkStatusChange(assigned) error = %v", err)
	}
	if err := s.BulkStatusChange(ctx, []int64{102}, domain.StatusNotAssigned, 0); err != nil {
		t.Fatalf("BulkStatusChange(not_assigned) error = %v", err)
	}

	orders, err := s.ListOrders(ctx, 1, []int64{101, 102, 103})
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("len(ListOrders()) = %d, want 2 (merchant filter)", len(orders))
	}
	if orders[0].Status != domain.StatusAssigned || orders[0].DriverID != 7 {
		t.Fatalf("order 101 = %+v, want assigned to 7", orders[0])
	}
	if orders[1].Status != domain.StatusNotAssigned || orders[1].DriverID != 0 {
		t.Fatalf("order 102 = %+v, want not_assigned without driver", orders[1])
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		r := &domain.Route{OptimisationID: 1, DriverID: 7, Color: "#aaa", State: domain.RouteCreated}
		if err := repo.CreateRoute(ctx, r); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx() error = %v, want boom", err)
	}

	routes, err := s.ListRoutes(ctx, 1)
	if err != nil {
		t.Fatalf("ListRoutes() error = %v", err)
	}
	if len(routes) != 0 {
		t.Fatalf("routes after rollback = %d, want 0", len(routes))
	}
}

func TestEngineRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &domain.EngineRun{
		OptimisationID: 1,
		Mode:           "move_existing",
		Result:         domain.FailedAssignment("timeout", errors.New("solver timed out")),
		MovedPointIDs:  []int64{5, 6},
		TargetRouteID:  9,
	}
	if err := s.EnqueueRun(ctx, run); err != nil {
		t.Fatalf("EnqueueRun() error = %v", err)
	}

	claimed, err := s.ClaimCompleted(ctx, 10)
	if err != nil {
		t.Fatalf("ClaimCompleted() error = %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != run.ID {
		t.Fatalf("ClaimCompleted() = %v, want run %d", claimed, run.ID)
	}
	got := claimed[0]
	if got.State != domain.RunApplying || got.TargetRouteID != 9 || len(got.MovedPointIDs) != 2 {
		t.Fatalf("claimed run = %+v", got)
	}
	if got.Result == nil || got.Result.Failure == nil || got.Result.Failure.Kind != "timeout" {
		t.Fatalf("claimed result = %+v, want timeout failure", got.Result)
	}

	again, err := s.ClaimCompleted(ctx, 10)
	if err != nil {
		t.Fatalf("ClaimCompleted() error = %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second ClaimCompleted() = %d runs, want 0", len(again))
	}

	if err := s.FinishRun(ctx, run.ID, errors.New("apply failed")); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}
	stored, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if stored.State != domain.RunFailed || stored.Error != "apply failed" {
		t.Fatalf("stored run = %+v, want failed with error", stored)
	}
}

func TestClaimCompletedReclaimsStaleRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }
	s.ClaimLease = 10 * time.Minute

	run := &domain.EngineRun{OptimisationID: 1, Mode: "solo", Result: domain.FailedAssignment("timeout", nil)}
	if err := s.EnqueueRun(ctx, run); err != nil {
		t.Fatalf("EnqueueRun() error = %v", err)
	}
	if claimed, err := s.ClaimCompleted(ctx, 10); err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimCompleted() = %v, %v, want the run", claimed, err)
	}

	now = now.Add(9 * time.Minute)
	if claimed, err := s.ClaimCompleted(ctx, 10); err != nil || len(claimed) != 0 {
		t.Fatalf("ClaimCompleted() within lease = %v, %v, want none", claimed, err)
	}

	now = now.Add(2 * time.Minute)
	claimed, err := s.ClaimCompleted(ctx, 10)
	if err != nil {
		t.Fatalf("ClaimCompleted() error = %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != run.ID || claimed[0].State != domain.RunApplying {
		t.Fatalf("ClaimCompleted() after lease = %v, want run %d again", claimed, run.ID)
	}
}

func TestInitSchemaNilDB(t *testing.T) {
	var nilDB *sql.DB
	if err := InitSchema(nilDB, DialectSQLite); err == nil {
		t.Fatalf("InitSchema(nil) error = nil, want error")
	}
}
