// Package server provides the public entry point for assembling the
// reasoning tool server: session store, tool registry, MCP gateway, HTTP
// router and idle-session janitor.
//
// Usage:
//
//	cfg, _ := config.Load()
//	srv, err := server.New(ctx, cfg)
//	go srv.Janitor.Start(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fastertools/ftl-tool-think/internal/api"
	"github.com/fastertools/ftl-tool-think/internal/api/handlers"
	"github.com/fastertools/ftl-tool-think/internal/chain"
	"github.com/fastertools/ftl-tool-think/internal/config"
	"github.com/fastertools/ftl-tool-think/internal/mcpgw"
	"github.com/fastertools/ftl-tool-think/internal/retention"
	"github.com/fastertools/ftl-tool-think/internal/sessions"
	"github.com/fastertools/ftl-tool-think/internal/stdio"
	"github.com/fastertools/ftl-tool-think/internal/telemetry"
	"github.com/fastertools/ftl-tool-think/internal/tools"
)

// Server holds the initialized components.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	Sessions *sessions.MemorySessionStore
	Gateway  *mcpgw.Gateway
	Janitor  *retention.Janitor

	Config *config.Config
	Port   int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc telemetry.ShutdownFunc
}

// New initializes every component from cfg.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	policy, err := chain.ParseDuplicatePolicy(cfg.Sessions.DuplicatePolicy)
	if err != nil {
		return nil, fmt.Errorf("duplicate policy: %w", err)
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	store := sessions.NewMemorySessionStore(sessions.Options{
		MaxSessions:     cfg.Sessions.MaxSessions,
		FeedSize:        cfg.Sessions.FeedSize,
		DuplicatePolicy: policy,
	})

	reasoning, err := tools.NewReasoningTool()
	if err != nil {
		return nil, err
	}
	gw := mcpgw.NewGateway(store, tools.NewRegistry(reasoning), cfg.Version)

	log.Info().
		Str("duplicate_policy", string(policy)).
		Int("max_sessions", cfg.Sessions.MaxSessions).
		Msg("Reasoning gateway initialized")

	h := handlers.New(store, gw)

	return &Server{
		Handler:      api.NewRouter(cfg, h),
		Sessions:     store,
		Gateway:      gw,
		Janitor:      retention.NewJanitor(store, cfg.Sessions.ReapInterval, cfg.Sessions.IdleTTL),
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// Stdio returns a stdio transport bound to this server's gateway.
func (s *Server) Stdio() *stdio.Server {
	return stdio.NewServer(s.Gateway)
}
