package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"route-results-service/internal/adapters/engineresult"
	"route-results-service/internal/adapters/repositories"
	"route-results-service/internal/config"
	"route-results-service/internal/domain"
	"route-results-service/internal/platform/db"
	"route-results-service/internal/platform/logging"
	"route-results-service/internal/services"
	"strconv"
	"strings"
)

const usage = `usage: dbtool <command> [flags]

commands:
  init                         create the schema
  seed [-file path]            init and load drivers, orders and optimisations
  enqueue -opt id -mode m [-moved 1,2] [-target id] result.json...
                               store solver results as one completed engine run;
                               several files are combined into one result`

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "console"})

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	conn, dialect, err := open(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()

	switch os.Args[1] {
	case "init":
		err = repositories.InitSchema(conn, dialect)
	case "seed":
		err = seed(conn, dialect, cfg.Database.SeedPath, os.Args[2:])
	case "enqueue":
		err = enqueue(conn, dialect, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logging.Fatal().Err(err).Str("command", os.Args[1]).Msg("dbtool failed")
	}
	logging.Info().Str("command", os.Args[1]).Msg("done")
}

func open(cfg config.DatabaseConfig) (*sql.DB, repositories.Dialect, error) {
	dialect, err := repositories.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, "", err
	}
	if dialect == repositories.DialectPostgres {
		conn, err := db.Open(cfg.URL)
		return conn, dialect, err
	}
	conn, err := db.OpenSQLite(cfg.Path)
	return conn, dialect, err
}

func seed(conn *sql.DB, dialect repositories.Dialect, defaultPath string, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	path := fs.String("file", config.Get("SEED_PATH", defaultPath), "fixture JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logging.Info().Msg("initializing database schema")
	if err := repositories.InitSchema(conn, dialect); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	logging.Info().Str("file", *path).Msg("seeding database")
	return repositories.SeedFromJSON(conn, dialect, *path)
}

func enqueue(conn *sql.DB, dialect repositories.Dialect, args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	optID := fs.Int64("opt", 0, "optimisation id")
	mode := fs.String("mode", string(services.ModeAdvanced), "result mode")
	moved := fs.String("moved", "", "comma separated ids of moved points")
	target := fs.Int64("target", 0, "target route id for move_existing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *optID <= 0 || fs.NArg() == 0 {
		return fmt.Errorf("enqueue: -opt and at least one result file are required")
	}
	m, err := services.ParseMode(*mode)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	movedIDs, err := parseIDs(*moved)
	if err != nil {
		return fmt.Errorf("enqueue: -moved: %w", err)
	}

	results := make([]*domain.AssignmentResult, 0, fs.NArg())
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("enqueue: read %q: %w", path, err)
		}
		r, err := engineresult.Decode(data)
		if err != nil {
			return fmt.Errorf("enqueue: %s: %w", path, err)
		}
		results = append(results, r)
	}

	result := results[0]
	if len(results) > 1 {
		result = services.CombineResults(results)
	}

	run := &domain.EngineRun{
		OptimisationID: *optID,
		Mode:           string(m),
		Result:         result,
		MovedPointIDs:  movedIDs,
		TargetRouteID:  *target,
	}
	store := repositories.NewSQLStore(conn, dialect)
	if err := store.EnqueueRun(context.Background(), run); err != nil {
		return err
	}
	logging.Info().Int64("run_id", run.ID).Bool("good", result.Good).Msg("engine run enqueued")
	return nil
}

func parseIDs(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
