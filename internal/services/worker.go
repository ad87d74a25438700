package services

import (
	"context"
	"errors"
	"fmt"
	"route-results-service/internal/domain"
	"route-results-service/internal/platform/logging"
	"route-results-service/internal/platform/metrics"
	"route-results-service/internal/ports"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkerConcurrency = 4
	DefaultWorkerBatch       = 16
	DefaultPollInterval      = 2 * time.Second
)

// Worker applies completed solver runs to the persisted routes.
//
// Runs are claimed in batches and applied concurrently, each one as its
// own prepare and save. A failing run is marked failed and does not stop
// the others.
type Worker struct {
	Runs     ports.EngineRunStore
	Repo     ports.UnitOfWork
	Notifier ports.Notifier
	Events   ports.EventSink
	Throttle ports.StatusThrottle

	Concurrency int
	Batch       int
	Interval    time.Duration
}

// Run polls for completed runs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := w.ProcessOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Error().Err(err).Msg("apply engine runs")
		} else if n > 0 {
			logging.Info().Int("runs", n).Msg("engine runs applied")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessOnce claims one batch and applies it. It returns the number of
// claimed runs. Per-run failures are recorded on the runs, not returned.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	batch := w.Batch
	if batch <= 0 {
		batch = DefaultWorkerBatch
	}
	limit := w.Concurrency
	if limit <= 0 {
		limit = DefaultWorkerConcurrency
	}

	runs, err := w.Runs.ClaimCompleted(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("process runs: claim: %w", err)
	}
	if len(runs) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, run := range runs {
		g.Go(func() error {
			metrics.EngineRunsInFlight.Inc()
			defer metrics.EngineRunsInFlight.Dec()

			rctx := logging.ContextWithNewCorrelationID(gctx)
			applyErr := w.Apply(rctx, run)
			if applyErr != nil {
				logging.Ctx(rctx).Error().Err(applyErr).
					Int64("run_id", run.ID).
					Int64("optimisation_id", run.OptimisationID).
					Str("mode", run.Mode).
					Msg("engine run not applied")
			}
			// Only a failure to record the outcome aborts the batch. Sibling
			// runs still record theirs after gctx is cancelled.
			if err := w.Runs.FinishRun(context.WithoutCancel(rctx), run.ID, applyErr); err != nil {
				return fmt.Errorf("process runs: finish run %d: %w", run.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return len(runs), err
	}
	return len(runs), nil
}

// Apply saves one run's result through a ResultKeeper for the run's mode.
func (w *Worker) Apply(ctx context.Context, run *domain.EngineRun) error {
	if run == nil {
		return errors.New("apply run: run must be non-nil")
	}
	if run.Result == nil {
		return fmt.Errorf("apply run %d: no usable result: %s", run.ID, run.Error)
	}

	mode, err := ParseMode(run.Mode)
	if err != nil {
		return fmt.Errorf("apply run %d: %w", run.ID, err)
	}

	opt, err := w.Repo.GetOptimisation(ctx, run.OptimisationID)
	if err != nil {
		return fmt.Errorf("apply run %d: load optimisation %d: %w", run.ID, run.OptimisationID, err)
	}

	keeper := &ResultKeeper{
		Repo:     w.Repo,
		Notifier: w.Notifier,
		Events:   w.Events,
		Throttle: w.Throttle,
		Mode:     mode,
	}
	params := MoveParams{MovedPointIDs: run.MovedPointIDs, TargetRouteID: run.TargetRouteID}
	return keeper.PrepareAndSave(ctx, opt, run.Result, params)
}
