package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"route-results-service/internal/adapters/engineresult"
	"route-results-service/internal/domain"

	"github.com/goccy/go-json"
)

// EnqueueRun stores a completed solver run.
func (s *SQLStore) EnqueueRun(ctx context.Context, run *domain.EngineRun) error {
	if run == nil || run.Result == nil {
		return errors.New("enqueue run: run and result must be non-nil")
	}

	result, err := engineresult.Encode(run.Result)
	if err != nil {
		return fmt.Errorf("enqueue run: %w", err)
	}
	moved, err := encodeIDs(run.MovedPointIDs)
	if err != nil {
		return fmt.Errorf("enqueue run: %w", err)
	}

	q := `
	INSERT INTO engine_runs (optimisation_id, mode, state, result, moved_point_ids, target_route_id)
	VALUES (?, ?, ?, ?, ?, ?)
	RETURNING id;
	`
	err = s.queryRow(ctx, q, run.OptimisationID, run.Mode, string(domain.RunCompleted), string(result), moved, nullInt(run.TargetRouteID)).
		Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("enqueue run: insert: %w", err)
	}
	run.State = domain.RunCompleted
	return nil
}

// claimLayout is fixed width so claimed_at compares as text.
const claimLayout = "2006-01-02T15:04:05.000000000Z"

// ClaimCompleted moves up to limit completed runs to applying, oldest
// first, and returns them. Runs left applying for longer than ClaimLease,
// e.g. by a crashed worker, are claimed again.
func (s *SQLStore) ClaimCompleted(ctx context.Context, limit int) ([]*domain.EngineRun, error) {
	if limit <= 0 {
		return nil, nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim runs: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	repo := &sqlRepo{q: tx, d: s.d}

	q := `
	SELECT id, optimisation_id, mode, state, result, moved_point_ids, target_route_id, error
	FROM engine_runs
	WHERE state = ? OR (state = ? AND claimed_at < ?)
	ORDER BY id
	LIMIT ?`
	if s.d == DialectPostgres {
		q += ` FOR UPDATE SKIP LOCKED`
	}

	now := s.now().UTC()
	stale := now.Add(-s.ClaimLease).Format(claimLayout)
	rows, err := repo.query(ctx, q+`;`, string(domain.RunCompleted), string(domain.RunApplying), stale, limit)
	if err != nil {
		return nil, fmt.Errorf("claim runs: query engine_runs table: %w", err)
	}
	runs, err := collectRuns(rows)
	if err != nil {
		return nil, fmt.Errorf("claim runs: %w", err)
	}
	if len(runs) == 0 {
		return runs, nil
	}

	ids := make([]int64, len(runs))
	for i, run := range runs {
		ids[i] = run.ID
		run.State = domain.RunApplying
	}
	marks, args := inList(ids)
	if _, err := repo.exec(ctx, `UPDATE engine_runs SET state = ?, claimed_at = ? WHERE id IN (`+marks+`);`,
		append([]any{string(domain.RunApplying), now.Format(claimLayout)}, args...)...); err != nil {
		return nil, fmt.Errorf("claim runs: mark applying: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim runs: commit tx: %w", err)
	}
	return runs, nil
}

// FinishRun marks a run applied, or failed with the error text.
func (s *SQLStore) FinishRun(ctx context.Context, id int64, applyErr error) error {
	state, msg := domain.RunApplied, ""
	if applyErr != nil {
		state, msg = domain.RunFailed, applyErr.Error()
	}

	res, err := s.exec(ctx, `UPDATE engine_runs SET state = ?, error = ? WHERE id = ?;`, string(state), msg, id)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", id, err)
	}
	return requireRows(res, "finish run", id)
}

// GetRun loads one engine run.
func (s *SQLStore) GetRun(ctx context.Context, id int64) (*domain.EngineRun, error) {
	rows, err := s.query(ctx, `
	SELECT id, optimisation_id, mode, state, result, moved_point_ids, target_route_id, error
	FROM engine_runs
	WHERE id = ?;`, id)
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	runs, err := collectRuns(rows)
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("get run %d: %w", id, domain.ErrNotFound)
	}
	return runs[0], nil
}

func collectRuns(rows *sql.Rows) ([]*domain.EngineRun, error) {
	defer rows.Close()

	var runs []*domain.EngineRun
	for rows.Next() {
		var (
			run    domain.EngineRun
			state  string
			result string
			moved  string
			target sql.NullInt64
		)
		if err := rows.Scan(&run.ID, &run.OptimisationID, &run.Mode, &state, &result, &moved, &target, &run.Error); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		run.State = domain.RunState(state)
		run.TargetRouteID = target.Int64

		// An undecodable result is left for the worker to mark failed.
		decoded, err := engineresult.Decode([]byte(result))
		if err != nil {
			run.Error = err.Error()
		}
		run.Result = decoded
		if err := json.Unmarshal([]byte(moved), &run.MovedPointIDs); err != nil {
			return nil, fmt.Errorf("run %d: decode moved points: %w", run.ID, err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return runs, nil
}

func encodeIDs(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode ids: %w", err)
	}
	return string(b), nil
}
