package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"route-results-service/internal/domain"
	"route-results-service/internal/platform/obs"
	"time"

	"github.com/goccy/go-json"
)

const dayLayout = "2006-01-02"

func (r *sqlRepo) GetOptimisation(ctx context.Context, id int64) (*domain.Optimisation, error) {
	q := `
	SELECT id, day, merchant_id, type, created_by_member, created_by_driver, source_id, customers_notified
	FROM optimisations
	WHERE id = ?;
	`
	var (
		o       domain.Optimisation
		day     string
		typ     string
		creator sql.NullInt64
		byDrv   bool
		source  sql.NullInt64
	)
	err := r.queryRow(ctx, q, id).Scan(&o.ID, &day, &o.MerchantID, &typ, &creator, &byDrv, &source, &o.CustomersNotified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get optimisation %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get optimisation %d: %w", id, err)
	}

	o.Day, err = time.Parse(dayLayout, day)
	if err != nil {
		return nil, fmt.Errorf("get optimisation %d: parse day: %w", id, err)
	}
	o.Type = domain.OptimisationType(typ)
	o.SourceID = source.Int64
	if creator.Valid {
		o.CreatedBy = &domain.Actor{MemberID: creator.Int64, IsDriver: byDrv}
	}
	return &o, nil
}

func (r *sqlRepo) SetCustomersNotified(ctx context.Context, optimisationID int64, notified bool) error {
	res, err := r.exec(ctx, `UPDATE optimisations SET customers_notified = ? WHERE id = ?;`, notified, optimisationID)
	if err != nil {
		return fmt.Errorf("set customers notified: %w", err)
	}
	return requireRows(res, "set customers notified", optimisationID)
}

func (r *sqlRepo) GetDriver(ctx context.Context, memberID int64) (*domain.Driver, error) {
	var d domain.Driver
	err := r.queryRow(ctx, `SELECT member_id, first_name FROM drivers WHERE member_id = ?;`, memberID).
		Scan(&d.MemberID, &d.FirstName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get driver %d: %w", memberID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get driver %d: %w", memberID, err)
	}
	return &d, nil
}

const routeColumns = `id, optimisation_id, driver_id, color, options, state,
	total_time, driving_time, driving_distance, start_time, end_time`

func (r *sqlRepo) ListRoutes(ctx context.Context, optimisationID int64) (_ []*domain.Route, err error) {
	defer obs.Time(ctx, "repo.ListRoutes")(&err)

	rows, err := r.query(ctx, `SELECT `+routeColumns+` FROM routes WHERE optimisation_id = ? ORDER BY id;`, optimisationID)
	if err != nil {
		return nil, fmt.Errorf("list routes: query routes table: %w", err)
	}
	defer rows.Close()

	routes := make([]*domain.Route, 0, 8)
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("list routes: %w", err)
		}
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list routes: row iteration: %w", err)
	}
	return routes, nil
}

func (r *sqlRepo) GetRoute(ctx context.Context, id int64) (*domain.Route, error) {
	route, err := scanRoute(r.queryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get route %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get route %d: %w", id, err)
	}
	return route, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoute(s scanner) (*domain.Route, error) {
	var (
		route      domain.Route
		options    string
		state      string
		start, end string
	)
	err := s.Scan(&route.ID, &route.OptimisationID, &route.DriverID, &route.Color, &options, &state,
		&route.TotalTime, &route.DrivingTime, &route.DrivingDistance, &start, &end)
	if err != nil {
		return nil, err
	}

	route.State = domain.RouteState(state)
	if err := json.Unmarshal([]byte(options), &route.Options); err != nil {
		return nil, fmt.Errorf("route %d: decode options: %w", route.ID, err)
	}
	if route.StartTime, err = parseTime(start); err != nil {
		return nil, fmt.Errorf("route %d: %w", route.ID, err)
	}
	if route.EndTime, err = parseTime(end); err != nil {
		return nil, fmt.Errorf("route %d: %w", route.ID, err)
	}
	return &route, nil
}

func (r *sqlRepo) UsedColors(ctx context.Context, driverID int64, day time.Time) ([]string, error) {
	q := `
	SELECT color
	FROM routes
	WHERE driver_id = ? AND day = ? AND state IN (?, ?)
	ORDER BY id;
	`
	rows, err := r.query(ctx, q, driverID, day.Format(dayLayout), string(domain.RouteCreated), string(domain.RouteRunning))
	if err != nil {
		return nil, fmt.Errorf("used colors: query routes table: %w", err)
	}
	defer rows.Close()

	var colors []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("used colors: scan row: %w", err)
		}
		colors = append(colors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("used colors: row iteration: %w", err)
	}
	return colors, nil
}

// CreateRoute inserts the route; its day is taken from the owning
// optimisation.
func (r *sqlRepo) CreateRoute(ctx context.Context, route *domain.Route) error {
	options, err := encodeOptions(route.Options)
	if err != nil {
		return fmt.Errorf("create route: %w", err)
	}

	q := `
	INSERT INTO routes (
		optimisation_id, driver_id, day, color, options, state,
		total_time, driving_time, driving_distance, start_time, end_time
	)
	VALUES (?, ?, (SELECT day FROM optimisations WHERE id = ?), ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id;
	`
	err = r.queryRow(ctx, q,
		route.OptimisationID, route.DriverID, route.OptimisationID, route.Color, options, string(route.State),
		route.TotalTime, route.DrivingTime, route.DrivingDistance, formatTime(route.StartTime), formatTime(route.EndTime),
	).Scan(&route.ID)
	if err != nil {
		return fmt.Errorf("create route: insert: %w", err)
	}
	return nil
}

func (r *sqlRepo) UpdateRoute(ctx context.Context, route *domain.Route) error {
	options, err := encodeOptions(route.Options)
	if err != nil {
		return fmt.Errorf("update route %d: %w", route.ID, err)
	}

	q := `
	UPDATE routes
	SET optimisation_id = ?, driver_id = ?, color = ?, options = ?, state = ?,
		total_time = ?, driving_time = ?, driving_distance = ?, start_time = ?, end_time = ?
	WHERE id = ?;
	`
	res, err := r.exec(ctx, q,
		route.OptimisationID, route.DriverID, route.Color, options, string(route.State),
		route.TotalTime, route.DrivingTime, route.DrivingDistance, formatTime(route.StartTime), formatTime(route.EndTime),
		route.ID,
	)
	if err != nil {
		return fmt.Errorf("update route %d: %w", route.ID, err)
	}
	return requireRows(res, "update route", route.ID)
}

func encodeOptions(options map[string]any) (string, error) {
	if options == nil {
		return "{}", nil
	}
	b, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	return string(b), nil
}

func (r *sqlRepo) CreateLocation(ctx context.Context, loc *domain.Location) error {
	q := `INSERT INTO locations (address, lon, lat) VALUES (?, ?, ?) RETURNING id;`
	if err := r.queryRow(ctx, q, loc.Address, loc.Coordinates.Lon, loc.Coordinates.Lat).Scan(&loc.ID); err != nil {
		return fmt.Errorf("create location: %w", err)
	}
	return nil
}

func requireRows(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: rows affected: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", op, id, domain.ErrNotFound)
	}
	return nil
}
