package handlers

import (
	"context"
	"net/http"
	"time"

	"pinforge/internal/httpkit"
)

// healthProbeKey is read during deep checks; absence is fine, only
// transport errors count.
const healthProbeKey = "pinforge:health:probe"

// Health reports liveness. With ?deep=true it also checks the database,
// the cache and the storage provider, downgrading status to "degraded"
// when any of them fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	health := map[string]any{
		"status":  "ok",
		"service": "pinforge-api",
		"version": "0.1.0",
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := h.deepHealthCheck(ctx)
		health["checks"] = checks

		for _, check := range checks {
			if checkMap, ok := check.(map[string]any); ok {
				if checkMap["status"] != "ok" {
					health["status"] = "degraded"
					log.Warn("health check degraded", "checks", checks)
					break
				}
			}
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

func (h *Handler) deepHealthCheck(ctx context.Context) map[string]any {
	return map[string]any{
		"postgres": h.checkStore(ctx),
		"redis":    h.checkCache(ctx),
		"storage":  h.checkStorage(),
	}
}

func (h *Handler) checkStore(ctx context.Context) map[string]any {
	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.store.Ping(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}

	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func (h *Handler) checkCache(ctx context.Context) map[string]any {
	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, _, err := h.cache.Get(checkCtx, healthProbeKey); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}

	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func (h *Handler) checkStorage() map[string]any {
	return map[string]any{
		"status":   "ok",
		"provider": h.storage.Provider(),
	}
}
