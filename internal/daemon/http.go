package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sphinxmk/internal/history"
	"git.home.luguber.info/inful/sphinxmk/internal/metrics"
	"git.home.luguber.info/inful/sphinxmk/internal/version"
)

// statusResponse is the JSON body served at /status.
type statusResponse struct {
	Version   string           `json:"version"`
	StartedAt time.Time        `json:"started_at"`
	Pending   []Job            `json:"pending"`
	Completed []Job            `json:"completed"`
	Recent    []history.Record `json:"recent,omitempty"`
}

// httpServer exposes daemon status, health and metrics endpoints.
type httpServer struct {
	server    *http.Server
	queue     *Queue
	store     *history.Store
	startedAt time.Time
}

func newHTTPServer(listen string, queue *Queue, store *history.Store, registry *prom.Registry) *httpServer {
	h := &httpServer{
		queue:     queue,
		store:     store,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/build", h.handleBuild)
	if registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(registry))
	}

	h.server = &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return h
}

func (h *httpServer) Start() {
	go func() {
		slog.Info("Status server listening", "addr", h.server.Addr)
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Status server failed", "error", err)
		}
	}()
}

func (h *httpServer) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func (h *httpServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *httpServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	pending, completed := h.queue.Snapshot()
	resp := statusResponse{
		Version:   version.Version,
		StartedAt: h.startedAt,
		Pending:   pending,
		Completed: completed,
	}
	if h.store != nil {
		if recent, err := h.store.Recent(r.Context(), 20); err == nil {
			resp.Recent = recent
		} else {
			slog.Warn("Failed to load build history", "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode status response", "error", err)
	}
}

// handleBuild lets operators trigger an out-of-schedule build:
// POST /build?target=html
func (h *httpServer) handleBuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	target := r.URL.Query().Get("target")
	if target == "" {
		target = "html"
	}

	job := NewJob(target, JobTypeManual, PriorityHigh)
	// Copy before handing the job to the queue: the worker owns it afterwards.
	accepted := *job
	if err := h.queue.Enqueue(job); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(accepted); err != nil {
		slog.Error("Failed to encode job response", "error", err)
	}
}
