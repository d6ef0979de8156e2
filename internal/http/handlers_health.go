package httpx

import (
	"database/sql"
	"net/http"

	"github.com/yoyaba/gtm-docgen/internal/core"
)

// HealthHandlers reports service health with a dependency summary.
type HealthHandlers struct {
	DB       *sql.DB
	Replay   core.ReplayCache
	Registry core.JobRegistry
}

// Health returns overall status plus per-dependency checks and job counts.
// Degraded dependencies still answer 200 so the process is not restarted for
// a Redis blip; the body carries the detail.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{}
	status := "ok"

	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = "degraded"
		} else {
			checks["postgres"] = "ok"
		}
	}

	if h.Replay != nil {
		if err := h.Replay.Ping(ctx); err != nil {
			checks["replay_cache"] = err.Error()
			status = "degraded"
		} else {
			checks["replay_cache"] = "ok"
		}
	}

	resp := map[string]any{
		"status": status,
		"checks": checks,
	}
	if h.Registry != nil {
		if stats, err := h.Registry.Stats(ctx); err == nil {
			resp["jobs"] = stats
		}
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}
