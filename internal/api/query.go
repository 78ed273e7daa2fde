package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tanuki0/tanuki/internal/answer"
	"github.com/tanuki0/tanuki/internal/knowledge"
)

type queryHandler struct {
	registry *knowledge.Registry
	answerer *answer.Answerer
	logger   *slog.Logger
}

type queryRequest struct {
	Question      string `json:"question"`
	KnowledgeBase string `json:"knowledge_base,omitempty"`
}

// query handles POST /api/v1/query: one grounded answer, no
// conversation state. Without a knowledge_base the first ready base
// answers.
func (h *queryHandler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}
	if req.Question == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "question is required", h.logger)
		return
	}

	var base *knowledge.Base
	if req.KnowledgeBase != "" {
		var err error
		base, err = h.registry.Get(req.KnowledgeBase)
		if err != nil {
			status, code := errorStatus(err)
			WriteError(w, status, code, err.Error(), h.logger)
			return
		}
	} else {
		var ok bool
		base, ok = h.registry.FirstReady()
		if !ok {
			WriteError(w, http.StatusNotFound, "no_knowledge_base",
				"no knowledge base is ready", h.logger)
			return
		}
	}

	result, err := h.answerer.Answer(r.Context(), base, req.Question)
	if err != nil {
		status, code := errorStatus(err)
		WriteError(w, status, code, err.Error(), h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
