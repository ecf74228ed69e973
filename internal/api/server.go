// Package api is the thin wire-facing handler layer for the edge node. It
// owns no business logic: every handler decodes a request, calls exactly
// one Pipeline, Cache Engine or Sync Manager method, and encodes the
// result. The HTTP/WebSocket façade itself is out of scope for this
// node — this package exists only so the Pipeline-facing operation names
// have a concrete entry point for the process embedding this node (the
// clinic workstation's translation UI) to call.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheengine"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/pipeline"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/syncmanager"
)

// Server wraps an http.Server exposing the node's wire surface.
type Server struct {
	httpServer *http.Server
	handler    *handler
}

// New builds a Server bound to addr (e.g. ":8088"), wired to the three
// collaborators every handler delegates to.
func New(addr string, pl *pipeline.Pipeline, engine *cacheengine.Engine, sync *syncmanager.Manager) *Server {
	h := &handler{pipeline: pl, engine: engine, sync: sync}

	mux := http.NewServeMux()
	h.routes(mux)

	return &Server{
		handler: h,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      withMiddleware(mux),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Start runs the HTTP server; it blocks until Shutdown is called or the
// listener fails.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("api: listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
