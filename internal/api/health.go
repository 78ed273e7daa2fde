package api

import (
	"net/http"

	"github.com/tanuki0/tanuki/internal/knowledge"
)

// health is the liveness probe. Always 200 while the process serves.
func health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness reports 200 once at least one knowledge base is ready,
// 503 otherwise. The per-base states are included either way.
func readiness(registry *knowledge.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		infos := registry.List()

		ready := false
		states := make(map[string]string, len(infos))
		for _, info := range infos {
			states[info.Name] = info.State
			if info.State == knowledge.StateReady.String() {
				ready = true
			}
		}

		status := http.StatusOK
		body := map[string]any{"status": "ready", "knowledge_bases": states}
		if !ready {
			status = http.StatusServiceUnavailable
			body["status"] = "not_ready"
		}
		WriteJSON(w, status, body)
	})
}
