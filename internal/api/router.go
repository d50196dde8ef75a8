package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fastertools/ftl-tool-think/internal/api/handlers"
	"github.com/fastertools/ftl-tool-think/internal/api/middleware"
	"github.com/fastertools/ftl-tool-think/internal/config"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	auth := middleware.NewAPIKeyAuth(cfg.Auth.APIKeys)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SessionExtractor)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id", middleware.SessionHeader},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id", middleware.SessionHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(auth.Middleware)
	r.Use(limiter.Middleware)

	// Health & info
	r.Get("/health", healthHandler(h))
	r.Get("/version", versionHandler(cfg))
	r.Handle("/metrics", promhttp.Handler())

	// MCP
	r.Route("/mcp", func(r chi.Router) {
		r.Post("/", h.MCPEndpoint)
		r.Get("/sse", h.MCPSSEEndpoint)
	})

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.CreateSession)
			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.DeleteSession)
				r.Get("/thoughts", h.ListThoughts)
				r.Post("/thoughts", h.SubmitThought)
				r.Get("/branches", h.ListBranches)
				r.Get("/lineage", h.GetLineage)
				r.Get("/stream", h.StreamSession)
			})
		})

		r.Route("/tools", func(r chi.Router) {
			r.Get("/", h.ListTools)
			r.Get("/openai", h.ListOpenAITools)
		})
	})

	return r
}

func healthHandler(h *handlers.Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"status":   "healthy",
			"service":  "ftl-tool-think",
			"sessions": h.Sessions.Count(),
		})
	}
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{
			"version": cfg.Version,
			"service": "ftl-tool-think",
		})
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
