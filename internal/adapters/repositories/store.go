package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"route-results-service/internal/ports"
	"time"
)

// DefaultClaimLease is how long a claimed engine run may stay applying
// before another worker claims it again.
const DefaultClaimLease = 10 * time.Minute

// SQLStore is the database/sql implementation of the persistence ports.
// Outside WithinTx every call runs on the pool; inside, on the transaction.
type SQLStore struct {
	*sqlRepo
	DB *sql.DB

	ClaimLease time.Duration
	// Now is replaceable for tests.
	Now func() time.Time
}

func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{sqlRepo: &sqlRepo{q: db, d: d}, DB: db, ClaimLease: DefaultClaimLease}
}

func (s *SQLStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// WithinTx runs fn in a transaction. It commits when fn returns nil.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo ports.Repository) error) error {
	if s.DB == nil {
		return errors.New("sql store: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("within tx: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &sqlRepo{q: tx, d: s.d}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("within tx: commit: %w", err)
	}
	return nil
}

// Ping checks the connection for health probes.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// sqlRepo implements ports.Repository on a pool or a transaction.
type sqlRepo struct {
	q querier
	d Dialect
}

func (r *sqlRepo) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.d.Rebind(query), args...)
}

func (r *sqlRepo) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.d.Rebind(query), args...)
}

func (r *sqlRepo) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.d.Rebind(query), args...)
}

var _ ports.UnitOfWork = (*SQLStore)(nil)
var _ ports.EngineRunStore = (*SQLStore)(nil)
