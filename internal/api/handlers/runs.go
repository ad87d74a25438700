package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"route-results-service/internal/adapters/engineresult"
	"route-results-service/internal/api/dto"
	"route-results-service/internal/domain"
	"route-results-service/internal/platform/logging"
	"route-results-service/internal/services"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

type RunStore interface {
	EnqueueRun(ctx context.Context, run *domain.EngineRun) error
	GetRun(ctx context.Context, id int64) (*domain.EngineRun, error)
}

// RunHandler accepts finished solver results and reports how applying
// them went.
type RunHandler struct {
	Runs     RunStore
	Validate *validator.Validate
}

func NewRunHandler(runs RunStore) *RunHandler {
	return &RunHandler{Runs: runs, Validate: validator.New()}
}

// Enqueue stores a solver result for the worker to apply.
func (h *RunHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req dto.RunRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	if err := h.Validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	mode, err := services.ParseMode(req.Mode)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if mode == services.ModeMoveExisting && req.TargetRouteID == 0 {
		writeError(w, r, http.StatusBadRequest, "target_route_id is required for move_existing")
		return
	}

	result, err := engineresult.Decode(req.Result)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	run := &domain.EngineRun{
		OptimisationID: req.OptimisationID,
		Mode:           string(mode),
		Result:         result,
		MovedPointIDs:  req.MovedPointIDs,
		TargetRouteID:  req.TargetRouteID,
	}
	if err := h.Runs.EnqueueRun(r.Context(), run); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("enqueue run failed")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusAccepted, toRunResponse(run))
}

// Get reports the state of one run.
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := h.Runs.GetRun(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Int64("run_id", id).Msg("get run failed")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, toRunResponse(run))
}

func toRunResponse(run *domain.EngineRun) dto.RunResponse {
	return dto.RunResponse{
		ID:             run.ID,
		OptimisationID: run.OptimisationID,
		Mode:           run.Mode,
		State:          string(run.State),
		Error:          run.Error,
	}
}
