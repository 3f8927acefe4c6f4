package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ekisa-team/samplegen/internal/generation"
	"github.com/ekisa-team/samplegen/internal/model"
)

// StatusSource exposes the worker's last published state.
type StatusSource interface {
	Snapshot() generation.Snapshot
}

// ModelLister lists the models fetched so far.
type ModelLister interface {
	List() []model.ModelInstance
}

// Deps are the read-only views served by the ops endpoints.
type Deps struct {
	Status   StatusSource
	Models   ModelLister
	Ready    func() bool
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

type healthResponse struct {
	Status string `json:"status"`
}

// NewRouter builds the ops router.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(deps.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Ready != nil && !deps.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "draining"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, deps.Status.Snapshot())
	})

	r.Get("/models", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Models == nil {
			writeJSON(w, http.StatusOK, []model.ModelInstance{})
			return
		}
		writeJSON(w, http.StatusOK, deps.Models.List())
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
