package api

import (
	"net/http"
	"sync/atomic"
	"time"
)

// Run phases reported by /healthz.
const (
	PhaseStarting  = "starting"
	PhaseMigrating = "migrating"
	PhaseVerifying = "verifying"
	PhaseDone      = "done"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	started time.Time
	phase   atomic.Value
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	h := &HealthHandler{started: time.Now()}
	h.phase.Store(PhaseStarting)
	return h
}

// SetPhase records what the process is doing.
func (h *HealthHandler) SetPhase(phase string) { h.phase.Store(phase) }

// Phase returns the current phase.
func (h *HealthHandler) Phase() string { return h.phase.Load().(string) }

type healthResponse struct {
	Status        string  `json:"status"`
	Phase         string  `json:"phase"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeJSON(w, http.StatusMethodNotAllowed, healthResponse{Status: "method not allowed", Phase: h.Phase()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Phase:         h.Phase(),
		UptimeSeconds: time.Since(h.started).Seconds(),
	})
}
