package simd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/egosim/internal/metrics"
	"github.com/GoSim-25-26J-441/egosim/internal/results"
	"github.com/GoSim-25-26J-441/egosim/pkg/logger"
	"github.com/GoSim-25-26J-441/egosim/pkg/models"
)

type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	Executor *RunExecutor
}

func NewHTTPServer(store *RunStore, executor *RunExecutor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/runs", s.handleRuns)
	s.mux.HandleFunc("/v1/runs/", s.handleRunByID)

	return s
}

// HandleMetrics serves h on /metrics
func (s *HTTPServer) HandleMetrics(h http.Handler) {
	s.mux.Handle("/metrics", h)
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRuns handles /v1/runs endpoint
func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRunByID handles /v1/runs/{id} and related endpoints
func (s *HTTPServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	// /v1/runs/{id}, /v1/runs/{id}:start, /v1/runs/{id}:stop, /v1/runs/{id}/results, /v1/runs/{id}/events, /v1/runs/{id}/metrics
	path := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	type route struct {
		suffix  string
		method  string
		handler func(http.ResponseWriter, *http.Request, string)
	}
	routes := []route{
		{":start", http.MethodPost, s.handleStartRun},
		{":stop", http.MethodPost, s.handleStopRun},
		{"/results", http.MethodGet, s.handleGetResults},
		{"/events", http.MethodGet, s.handleRunEvents},
		{"/metrics", http.MethodGet, s.handleRunMetrics},
	}
	for _, rt := range routes {
		if !strings.HasSuffix(path, rt.suffix) {
			continue
		}
		runID := strings.TrimSuffix(path, rt.suffix)
		if runID == "" {
			s.writeError(w, http.StatusBadRequest, "run ID is required")
			return
		}
		if r.Method != rt.method {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		rt.handler(w, r, runID)
		return
	}

	if strings.Contains(path, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	// Otherwise it's GET /v1/runs/{id}
	if r.Method == http.MethodGet {
		s.handleGetRun(w, r, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateRun handles POST /v1/runs
func (s *HTTPServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID string `json:"run_id,omitempty"`
		RunInput
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ConfigYAML) == "" {
		s.writeError(w, http.StatusBadRequest, "config_yaml is required")
		return
	}
	if strings.ContainsAny(req.RunID, "/:") {
		s.writeError(w, http.StatusBadRequest, "run_id cannot contain '/' or ':'")
		return
	}
	if req.CallbackURL != "" {
		if err := validateCallbackURL(req.CallbackURL); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	rec, err := s.store.Create(req.RunID, req.RunInput)
	if err != nil {
		if errors.Is(err, ErrRunExists) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger.Info("run created (HTTP)", "run_id", rec.Run.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"run": rec.Run,
	})
}

// handleListRuns handles GET /v1/runs with pagination and filtering
func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	status := models.RunStatus(strings.ToLower(r.URL.Query().Get("status")))
	if status != "" && !validStatus(status) {
		s.writeError(w, http.StatusBadRequest, "unknown status: "+string(status))
		return
	}

	runs := s.store.List(limit, offset, status)
	out := make([]*models.Run, 0, len(runs))
	for _, rec := range runs {
		out = append(out, rec.Run)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs": out,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(out),
		},
	})
}

func validStatus(s models.RunStatus) bool {
	switch s {
	case models.RunStatusPending, models.RunStatusRunning,
		models.RunStatusCompleted, models.RunStatusFailed, models.RunStatusCancelled:
		return true
	}
	return false
}

// handleGetRun handles GET /v1/runs/{id}
func (s *HTTPServer) handleGetRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": rec.Run,
	})
}

// handleStartRun handles POST /v1/runs/{id}:start
func (s *HTTPServer) handleStartRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Start(runID)
	if err != nil {
		s.writeRunError(w, err)
		return
	}

	logger.Info("run started (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": updated.Run,
	})
}

// handleStopRun handles POST /v1/runs/{id}:stop
func (s *HTTPServer) handleStopRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		s.writeRunError(w, err)
		return
	}

	logger.Info("run cancelled (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": updated.Run,
	})
}

// handleGetResults handles GET /v1/runs/{id}/results
func (s *HTTPServer) handleGetResults(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	bundles := rec.Run.Results
	if bundles == nil {
		bundles = []*models.ResultBundle{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    runID,
		"status":    rec.Run.Status,
		"bundles":   bundles,
		"summaries": results.Merge(bundles),
	})
}

// handleRunMetrics handles GET /v1/runs/{id}/metrics
func (s *HTTPServer) handleRunMetrics(w http.ResponseWriter, r *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.collector == nil {
		s.writeError(w, http.StatusPreconditionFailed, "metrics not available")
		return
	}

	labels := make(map[string]string)
	for _, key := range []string{"experiment", "model"} {
		if v := r.URL.Query().Get(key); v != "" {
			labels[key] = v
		}
	}
	names := rec.collector.Names()
	if name := r.URL.Query().Get("metric"); name != "" {
		names = []string{name}
	}

	points := make([]metrics.Point, 0)
	for _, name := range names {
		points = append(points, rec.collector.Series(name, labels)...)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":   runID,
		"progress": rec.Run.Progress,
		"points":   points,
	})
}

// handleRunEvents handles GET /v1/runs/{id}/events (SSE)
func (s *HTTPServer) handleRunEvents(w http.ResponseWriter, r *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	interval := time.Second
	if intervalStr := r.URL.Query().Get("interval_ms"); intervalStr != "" {
		if intervalMs, err := strconv.ParseInt(intervalStr, 10, 64); err == nil && intervalMs > 0 {
			interval = time.Duration(intervalMs) * time.Millisecond
		}
	}

	var previousStatus models.RunStatus
	sent := 0
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		if rec.Run.Status != previousStatus {
			s.sendSSEEvent(w, "status_change", map[string]any{
				"status": rec.Run.Status,
			})
			previousStatus = rec.Run.Status
		}
		for ; sent < len(rec.Run.Summaries); sent++ {
			s.sendSSEEvent(w, "summary", map[string]any{
				"summary": rec.Run.Summaries[sent],
			})
		}
		if rec.Run.Status == models.RunStatusRunning && rec.Run.Progress != nil {
			s.sendSSEEvent(w, "progress", map[string]any{
				"progress": rec.Run.Progress,
			})
		}
		if rec.Run.Status.Terminal() {
			s.sendSSEEvent(w, "complete", map[string]any{
				"status": rec.Run.Status,
				"error":  rec.Run.Error,
			})
			s.flush(w)
			return
		}
		s.flush(w)

		select {
		case <-ctx.Done():
			// Client disconnected
			return
		case <-ticker.C:
		}

		rec, ok = s.store.Get(runID)
		if !ok {
			s.sendSSEEvent(w, "error", map[string]any{
				"error": "run not found",
			})
			return
		}
	}
}

// sendSSEEvent sends a Server-Sent Event
func (s *HTTPServer) sendSSEEvent(w http.ResponseWriter, eventType string, data map[string]any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		logger.Error("failed to marshal SSE event data", "error", err)
		return
	}

	if _, err := w.Write([]byte("event: " + eventType + "\n")); err != nil {
		logger.Error("failed to write SSE event header", "error", err)
		return
	}
	if _, err := w.Write([]byte("data: " + string(jsonData) + "\n\n")); err != nil {
		logger.Error("failed to write SSE event data", "error", err)
	}
}

func (s *HTTPServer) flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Helper functions

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

func (s *HTTPServer) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRunNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrRunIDMissing):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRunTerminal):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
