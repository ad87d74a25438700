package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// InitSchema creates the tables route reconciliation works on.
func InitSchema(db *sql.DB, d Dialect) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d == DialectPostgres {
		pk = "BIGSERIAL PRIMARY KEY"
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS drivers (
			member_id BIGINT PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS optimisations (
			id ` + pk + `,
			day TEXT NOT NULL,
			merchant_id BIGINT NOT NULL,
			type TEXT NOT NULL,
			created_by_member BIGINT,
			created_by_driver BOOLEAN NOT NULL DEFAULT FALSE,
			source_id BIGINT,
			customers_notified BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE TABLE IF NOT EXISTS routes (
			id ` + pk + `,
			optimisation_id BIGINT NOT NULL REFERENCES optimisations(id),
			driver_id BIGINT NOT NULL,
			day TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL,
			options TEXT NOT NULL DEFAULT '{}',
			state TEXT NOT NULL,
			total_time INTEGER NOT NULL DEFAULT 0,
			driving_time INTEGER NOT NULL DEFAULT 0,
			driving_distance INTEGER NOT NULL DEFAULT 0,
			start_time TEXT NOT NULL DEFAULT '',
			end_time TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS locations (
			id ` + pk + `,
			address TEXT NOT NULL DEFAULT '',
			lon DOUBLE PRECISION NOT NULL,
			lat DOUBLE PRECISION NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS points (
			id ` + pk + `,
			route_id BIGINT NOT NULL REFERENCES routes(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			kind TEXT NOT NULL,
			entity_type TEXT NOT NULL DEFAULT '',
			entity_id BIGINT NOT NULL DEFAULT 0,
			next_point_id BIGINT,
			service_time INTEGER NOT NULL DEFAULT 0,
			driving_time INTEGER NOT NULL DEFAULT 0,
			distance INTEGER NOT NULL DEFAULT 0,
			start_time TEXT NOT NULL DEFAULT '',
			end_time TEXT NOT NULL DEFAULT '',
			start_time_known_to_customer TEXT,
			utilized_capacity DOUBLE PRECISION NOT NULL DEFAULT 0,
			path_polyline TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			driver_id BIGINT,
			status TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS engine_runs (
			id ` + pk + `,
			optimisation_id BIGINT NOT NULL,
			mode TEXT NOT NULL,
			state TEXT NOT NULL,
			result TEXT NOT NULL,
			moved_point_ids TEXT NOT NULL DEFAULT '[]',
			target_route_id BIGINT,
			error TEXT NOT NULL DEFAULT '',
			claimed_at TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_routes_optimisation ON routes(optimisation_id);`,
		`CREATE INDEX IF NOT EXISTS idx_routes_driver_day ON routes(driver_id, day);`,
		`CREATE INDEX IF NOT EXISTS idx_points_route_number ON points(route_id, number);`,
		`CREATE INDEX IF NOT EXISTS idx_engine_runs_state ON engine_runs(state, id);`,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
