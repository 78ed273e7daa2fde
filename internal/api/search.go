package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tanuki0/tanuki/internal/knowledge"
	"github.com/tanuki0/tanuki/internal/llm"
)

// errorStatus maps domain errors to HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, knowledge.ErrNotFound):
		return http.StatusNotFound, "knowledge_base_not_found"
	case errors.Is(err, knowledge.ErrDisabled):
		return http.StatusConflict, "knowledge_base_disabled"
	case errors.Is(err, knowledge.ErrNotReady):
		return http.StatusConflict, "knowledge_base_not_ready"
	case errors.Is(err, llm.ErrGeneration):
		return http.StatusBadGateway, "generation_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

type searchHandler struct {
	registry  *knowledge.Registry
	topK      int
	threshold float32
	logger    *slog.Logger
}

type searchRequest struct {
	Query         string   `json:"query"`
	KnowledgeBase string   `json:"knowledge_base,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	Threshold     *float32 `json:"threshold,omitempty"`
}

type searchHit struct {
	Content       string  `json:"content"`
	Table         string  `json:"table,omitempty"`
	Source        string  `json:"source,omitempty"`
	KnowledgeBase string  `json:"knowledge_base"`
	Similarity    float32 `json:"similarity"`
}

type searchResponse struct {
	Results []searchHit `json:"results"`
	Count   int         `json:"count"`
}

// search handles POST /api/v1/search. Without a knowledge_base the
// query fans out across every ready base.
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}
	if req.Query == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "query is required", h.logger)
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = h.topK
	}
	threshold := h.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	opts := []knowledge.SearchOption{
		knowledge.WithTopK(topK),
		knowledge.WithThreshold(threshold),
	}

	var hits []searchHit
	if req.KnowledgeBase == "" {
		for _, res := range h.registry.SearchAll(r.Context(), req.Query, opts...) {
			hits = append(hits, toHit(res.KnowledgeBase, res.Result))
		}
	} else {
		results, err := h.registry.Search(r.Context(), req.KnowledgeBase, req.Query, opts...)
		if err != nil {
			status, code := errorStatus(err)
			WriteError(w, status, code, err.Error(), h.logger)
			return
		}
		for _, res := range results {
			hits = append(hits, toHit(req.KnowledgeBase, res))
		}
	}

	WriteJSON(w, http.StatusOK, searchResponse{Results: hits, Count: len(hits)})
}

func toHit(baseName string, res knowledge.Result) searchHit {
	return searchHit{
		Content:       res.Document.Content,
		Table:         res.Document.Metadata[knowledge.MetaTable],
		Source:        res.Document.Metadata[knowledge.MetaSource],
		KnowledgeBase: baseName,
		Similarity:    res.Similarity,
	}
}
