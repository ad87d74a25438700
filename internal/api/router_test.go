package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"route-results-service/internal/domain"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

type fakeRuns struct {
	runs map[int64]*domain.EngineRun
}

func (f *fakeRuns) EnqueueRun(ctx context.Context, run *domain.EngineRun) error {
	run.ID = int64(len(f.runs) + 1)
	run.State = domain.RunCompleted
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRuns) GetRun(ctx context.Context, id int64) (*domain.EngineRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return run, nil
}

func newTestRouter(pingErr error) (http.Handler, *fakeRuns) {
	runs := &fakeRuns{runs: map[int64]*domain.EngineRun{}}
	return NewRouter(fakePinger{err: pingErr}, runs), runs
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("missing %s header", requestIDHeader)
	}
}

func TestHealthDatabaseDown(t *testing.T) {
	h, _ := newTestRouter(errors.New("connection refused"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	h, _ := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("%s = %q, want abc-123", requestIDHeader, got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

const runBody = `{
	"optimisation_id": 4,
	"mode": "refresh",
	"result": {"good": false, "exception": {"kind": "timeout", "message": "slow"}}
}`

func TestEnqueueAndGetRun(t *testing.T) {
	h, runs := newTestRouter(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(runBody)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /runs status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}

	var created struct {
		ID    int64  `json:"id"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID != 1 || created.State != "completed" {
		t.Fatalf("response = %+v, want run 1 completed", created)
	}
	if runs.runs[1].Result.Failure.Kind != "timeout" {
		t.Fatalf("stored result = %+v, want timeout failure", runs.runs[1].Result)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /runs/1 status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/9", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /runs/9 status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestEnqueueRejectsBadRequests(t *testing.T) {
	cases := map[string]string{
		"unknown mode":         strings.Replace(runBody, "refresh", "teleport", 1),
		"missing optimisation": strings.Replace(runBody, `"optimisation_id": 4,`, "", 1),
		"unknown field":        strings.Replace(runBody, `"mode"`, `"colour": 1, "mode"`, 1),
		"move without target":  strings.Replace(runBody, "refresh", "move_existing", 1),
		"two objects":          runBody + runBody,
	}

	for name, body := range cases {
		h, _ := newTestRouter(nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want %d", name, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestHealthRejectsPost(t *testing.T) {
	h, _ := newTestRouter(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
