package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tanuki0/tanuki/internal/agent"
	"github.com/tanuki0/tanuki/internal/answer"
)

type chatHandler struct {
	sessions *sessionManager
	logger   *slog.Logger
}

type chatRequest struct {
	Message       string `json:"message"`
	SessionID     string `json:"session_id,omitempty"`
	KnowledgeBase string `json:"knowledge_base,omitempty"`
	DisableRAG    bool   `json:"disable_rag,omitempty"`
}

type chatResponse struct {
	SessionID      string            `json:"session_id"`
	Text           string            `json:"text"`
	KnowledgeBase  string            `json:"knowledge_base,omitempty"`
	Citations      []answer.Citation `json:"citations,omitempty"`
	GroundingError string            `json:"grounding_error,omitempty"`
}

// send handles POST /api/v1/chat: one conversational turn in the
// named session, creating the session on first use.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}
	if req.Message == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "message is required", h.logger)
		return
	}

	sessionID, a := h.sessions.get(req.SessionID)

	reply, err := a.Chat(r.Context(), req.Message, agent.ChatOptions{
		KnowledgeBase: req.KnowledgeBase,
		DisableRAG:    req.DisableRAG,
	})
	if err != nil {
		status, code := errorStatus(err)
		WriteError(w, status, code, err.Error(), h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, chatResponse{
		SessionID:      sessionID,
		Text:           reply.Text,
		KnowledgeBase:  reply.KnowledgeBase,
		Citations:      reply.Citations,
		GroundingError: reply.GroundingError,
	})
}

type historyResponse struct {
	SessionID string       `json:"session_id"`
	Turns     []agent.Turn `json:"turns"`
}

// history handles GET /api/v1/history. An unknown session returns an
// empty history rather than an error.
func (h *chatHandler) history(w http.ResponseWriter, r *http.Request) {
	sessionID := normalizeSession(r.URL.Query().Get("session_id"))

	resp := historyResponse{SessionID: sessionID, Turns: []agent.Turn{}}
	if a, ok := h.sessions.lookup(sessionID); ok {
		resp.Turns = a.History()
	}
	WriteJSON(w, http.StatusOK, resp)
}

// clearHistory handles DELETE /api/v1/history. Clearing an unknown
// session is a no-op.
func (h *chatHandler) clearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := normalizeSession(r.URL.Query().Get("session_id"))

	if a, ok := h.sessions.lookup(sessionID); ok {
		a.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}
