package ports

import (
	"context"
	"route-results-service/internal/domain"
)

// Port: solver runs waiting to be applied.
type EngineRunStore interface {
	// Atomically move up to limit completed runs to applying and return them.
	ClaimCompleted(ctx context.Context, limit int) ([]*domain.EngineRun, error)
	// Record the outcome of applying a run. A nil applyErr marks it applied.
	FinishRun(ctx context.Context, id int64, applyErr error) error
	// Store a completed run and set its ID.
	EnqueueRun(ctx context.Context, run *domain.EngineRun) error
}
