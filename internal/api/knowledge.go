package api

import (
	"log/slog"
	"net/http"

	"github.com/tanuki0/tanuki/internal/agent"
	"github.com/tanuki0/tanuki/internal/knowledge"
)

type knowledgeHandler struct {
	registry *knowledge.Registry
	sessions *sessionManager
	logger   *slog.Logger
}

type knowledgeBasesResponse struct {
	KnowledgeBases []knowledge.Info `json:"knowledge_bases"`
}

// list handles GET /api/v1/knowledge-bases.
func (h *knowledgeHandler) list(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, knowledgeBasesResponse{
		KnowledgeBases: h.registry.List(),
	})
}

type statusResponse struct {
	Agent          *agent.Status    `json:"agent,omitempty"`
	Sessions       int              `json:"sessions"`
	KnowledgeBases []knowledge.Info `json:"knowledge_bases"`
}

// status handles GET /api/v1/status: knowledge base states plus the
// agent status of the requested session, when it exists.
func (h *knowledgeHandler) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Sessions:       h.sessions.count(),
		KnowledgeBases: h.registry.List(),
	}

	sessionID := normalizeSession(r.URL.Query().Get("session_id"))
	if a, ok := h.sessions.lookup(sessionID); ok {
		status := a.Status()
		resp.Agent = &status
	}

	WriteJSON(w, http.StatusOK, resp)
}
