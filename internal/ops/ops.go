// Package ops exposes the operational endpoints served next to the bot:
// liveness and Prometheus metrics.
package ops

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"royale-monitor/internal/middleware"
)

func NewRouter(logger zerolog.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestID(logger))
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
