package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthOK           = "ok"
	healthNotReady     = "not ready"
	healthShuttingDown = "shutting down"
	healthMissing      = "not configured"
)

// HealthChecker serves liveness and readiness probes.
type HealthChecker struct {
	ready     atomic.Bool
	sc        *ServerContext
	startTime time.Time
}

// NewHealthChecker creates a HealthChecker. It starts ready.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{sc: sc, startTime: time.Now()}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports the readiness state.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed.
type DetailedHealthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	ReadOnly bool   `json:"read_only"`
	Mailbox  string `json:"mailbox,omitempty"`
}

// checks evaluates every readiness condition. A nil server context is
// treated as configured and running.
func (h *HealthChecker) checks() (map[string]string, bool) {
	checks := map[string]string{"ready": healthOK, "shutdown": healthOK, "pipeline": healthOK}
	ok := true

	if !h.ready.Load() {
		checks["ready"] = healthNotReady
		ok = false
	}
	if h.sc != nil {
		if h.sc.IsShutdown() {
			checks["shutdown"] = healthShuttingDown
			ok = false
		}
		if _, err := h.sc.Pipeline(); err != nil {
			checks["pipeline"] = healthMissing
			ok = false
		}
	}
	return checks, ok
}

// LivenessHandler serves /healthz. It only reports that the process runs.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthOK})
	})
}

// ReadinessHandler serves /readyz.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks, ok := h.checks()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: healthNotReady, Checks: checks})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthOK, Checks: checks})
	})
}

// DetailedHealthHandler serves /healthz/detailed.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := DetailedHealthResponse{
			Status: healthOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}
		if h.sc != nil {
			resp.ReadOnly = h.sc.ReadOnly()
			resp.Mailbox = h.sc.UserEmail()
		}

		code := http.StatusOK
		switch {
		case !h.ready.Load():
			resp.Status, code = healthNotReady, http.StatusServiceUnavailable
		case h.sc != nil && h.sc.IsShutdown():
			resp.Status, code = healthShuttingDown, http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	})
}

// RegisterHealthEndpoints registers the probes on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
