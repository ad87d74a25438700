package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"route-results-service/internal/domain"
	"route-results-service/internal/platform/obs"
)

const pointSelect = `
	SELECT p.id, p.route_id, p.number, p.kind, p.entity_type, p.entity_id, p.next_point_id,
		p.service_time, p.driving_time, p.distance, p.start_time, p.end_time,
		p.start_time_known_to_customer, p.utilized_capacity, p.path_polyline, l.lon, l.lat
	FROM points p
	LEFT JOIN locations l ON p.entity_type = 'location' AND l.id = p.entity_id
	`

func (r *sqlRepo) ListPoints(ctx context.Context, routeID int64) (_ []*domain.Point, err error) {
	defer obs.Time(ctx, "repo.ListPoints")(&err)

	rows, err := r.query(ctx, pointSelect+`WHERE p.route_id = ? ORDER BY p.number, p.id;`, routeID)
	if err != nil {
		return nil, fmt.Errorf("list points: query points table: %w", err)
	}
	return collectPoints(rows, "list points")
}

func (r *sqlRepo) GetPoints(ctx context.Context, ids []int64) ([]*domain.Point, error) {
	if len(ids) == 0 {
		return []*domain.Point{}, nil
	}

	marks, args := inList(ids)
	rows, err := r.query(ctx, pointSelect+`WHERE p.id IN (`+marks+`) ORDER BY p.route_id, p.number;`, args...)
	if err != nil {
		return nil, fmt.Errorf("get points: query points table: %w", err)
	}
	return collectPoints(rows, "get points")
}

func collectPoints(rows *sql.Rows, op string) ([]*domain.Point, error) {
	defer rows.Close()

	points := make([]*domain.Point, 0, 16)
	for rows.Next() {
		var (
			p          domain.Point
			kind, ent  string
			next       sql.NullInt64
			start, end string
			known      sql.NullString
			lon, lat   sql.NullFloat64
		)
		err := rows.Scan(&p.ID, &p.RouteID, &p.Number, &kind, &ent, &p.Ref.ID, &next,
			&p.ServiceTime, &p.DrivingTime, &p.Distance, &start, &end,
			&known, &p.UtilizedCapacity, &p.PathPolyline, &lon, &lat)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}

		p.Kind = domain.PointKind(kind)
		p.Ref.Type = domain.EntityType(ent)
		p.NextPointID = next.Int64
		if p.StartTime, err = parseTime(start); err != nil {
			return nil, fmt.Errorf("%s: point %d: %w", op, p.ID, err)
		}
		if p.EndTime, err = parseTime(end); err != nil {
			return nil, fmt.Errorf("%s: point %d: %w", op, p.ID, err)
		}
		if known.Valid {
			t, err := parseTime(known.String)
			if err != nil {
				return nil, fmt.Errorf("%s: point %d: %w", op, p.ID, err)
			}
			p.StartTimeKnownToCustomer = &t
		}
		if lon.Valid && lat.Valid {
			p.Waypoint = &domain.Coordinates{Lon: lon.Float64, Lat: lat.Float64}
		}
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: row iteration: %w", op, err)
	}
	return points, nil
}

func (r *sqlRepo) InsertPoints(ctx context.Context, points []*domain.Point) error {
	q := `
	INSERT INTO points (
		route_id, number, kind, entity_type, entity_id, next_point_id,
		service_time, driving_time, distance, start_time, end_time,
		start_time_known_to_customer, utilized_capacity, path_polyline
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id;
	`
	for _, p := range points {
		err := r.queryRow(ctx, q,
			p.RouteID, p.Number, string(p.Kind), string(p.Ref.Type), p.Ref.ID, nullInt(p.NextPointID),
			p.ServiceTime, p.DrivingTime, p.Distance, formatTime(p.StartTime), formatTime(p.EndTime),
			nullTime(p.StartTimeKnownToCustomer), p.UtilizedCapacity, p.PathPolyline,
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("insert points: %s point #%d of route %d: %w", p.Kind, p.Number, p.RouteID, err)
		}
	}
	return nil
}

func (r *sqlRepo) UpdatePoints(ctx context.Context, points []*domain.Point) error {
	q := `
	UPDATE points
	SET route_id = ?, number = ?, kind = ?, entity_type = ?, entity_id = ?, next_point_id = ?,
		service_time = ?, driving_time = ?, distance = ?, start_time = ?, end_time = ?,
		start_time_known_to_customer = ?, utilized_capacity = ?, path_polyline = ?
	WHERE id = ?;
	`
	for _, p := range points {
		res, err := r.exec(ctx, q,
			p.RouteID, p.Number, string(p.Kind), string(p.Ref.Type), p.Ref.ID, nullInt(p.NextPointID),
			p.ServiceTime, p.DrivingTime, p.Distance, formatTime(p.StartTime), formatTime(p.EndTime),
			nullTime(p.StartTimeKnownToCustomer), p.UtilizedCapacity, p.PathPolyline,
			p.ID,
		)
		if err != nil {
			return fmt.Errorf("update points: point %d: %w", p.ID, err)
		}
		if err := requireRows(res, "update points: point", p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *sqlRepo) SetOrdering(ctx context.Context, points []*domain.Point) error {
	q := `UPDATE points SET number = ?, next_point_id = ? WHERE id = ?;`
	for _, p := range points {
		if _, err := r.exec(ctx, q, p.Number, nullInt(p.NextPointID), p.ID); err != nil {
			return fmt.Errorf("set ordering: point %d: %w", p.ID, err)
		}
	}
	return nil
}

func (r *sqlRepo) DeleteBreaksExcept(ctx context.Context, routeID int64, keep []int64) (int, error) {
	q := `DELETE FROM points WHERE route_id = ? AND kind = ?`
	args := []any{routeID, string(domain.KindBreak)}
	if len(keep) > 0 {
		marks, ids := inList(keep)
		q += ` AND id NOT IN (` + marks + `)`
		args = append(args, ids...)
	}

	res, err := r.exec(ctx, q+`;`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete breaks: route %d: %w", routeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete breaks: rows affected: %w", err)
	}
	return int(n), nil
}
