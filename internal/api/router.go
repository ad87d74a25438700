package api

import (
	"net/http"
	"route-results-service/internal/api/handlers"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the ops endpoints: health, metrics and engine run intake.
func NewRouter(db handlers.Pinger, runs handlers.RunStore) http.Handler {
	mux := http.NewServeMux()

	health := &handlers.HealthHandler{DB: db}
	runHandler := handlers.NewRunHandler(runs)

	mux.HandleFunc("GET /health", health.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /runs", runHandler.Enqueue)
	mux.HandleFunc("GET /runs/{id}", runHandler.Get)

	return loggingMiddleware(mux)
}
