package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tanuki0/tanuki/internal/answer"
	"github.com/tanuki0/tanuki/internal/knowledge"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger   *slog.Logger
	Registry *knowledge.Registry // Required
	Answerer *answer.Answerer    // Required
	Agents   AgentFactory        // Required

	// Retrieval defaults applied when a request does not override.
	SearchTopK      int
	SearchThreshold float32

	CORSOrigins []string
	TrustProxy  bool
	RateLimit   float64 // requests per second per IP; 0 disables
	RateBurst   int     // burst size; 0 means default 60
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("knowledge registry is required")
	}
	if cfg.Answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if cfg.Agents == nil {
		return nil, errors.New("agent factory is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	topK := cfg.SearchTopK
	if topK <= 0 {
		topK = 5
	}

	sessions := newSessionManager(cfg.Agents)

	sh := &searchHandler{
		registry:  cfg.Registry,
		topK:      topK,
		threshold: cfg.SearchThreshold,
		logger:    logger,
	}
	qh := &queryHandler{registry: cfg.Registry, answerer: cfg.Answerer, logger: logger}
	ch := &chatHandler{sessions: sessions, logger: logger}
	kh := &knowledgeHandler{registry: cfg.Registry, sessions: sessions, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/search", sh.search)
	mux.HandleFunc("POST /api/v1/query", qh.query)
	mux.HandleFunc("POST /api/v1/chat", ch.send)
	mux.HandleFunc("GET /api/v1/history", ch.history)
	mux.HandleFunc("DELETE /api/v1/history", ch.clearHistory)
	mux.HandleFunc("GET /api/v1/knowledge-bases", kh.list)
	mux.HandleFunc("GET /api/v1/status", kh.status)

	// Middleware stack, outermost first:
	//   Recovery -> RequestID -> Logging -> CORS -> RateLimit -> Routes
	// RequestID precedes Logging so request_id lands in log attributes.
	// CORS precedes RateLimit so preflight OPTIONS gets CORS headers.
	var handler http.Handler = mux
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 60
		}
		rl := newRateLimiter(cfg.RateLimit, burst)
		handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	}
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes stay outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Registry))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
