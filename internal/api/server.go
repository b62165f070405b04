// Package api exposes the writer engine and its entities over HTTP.
//
// The transport is deliberately thin: handlers validate input, call the
// engine or store, and translate domain errors to status codes. All
// control flow lives in the engine.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zaler23/writer/internal/engine"
	"github.com/zaler23/writer/internal/ident"
	"github.com/zaler23/writer/internal/store"
)

// maxRequestBodySize limits incoming request bodies (4MB).
const maxRequestBodySize = 4 * 1024 * 1024

// Server is the HTTP front for the writer engine.
type Server struct {
	store      *store.Store
	engine     *engine.Engine
	ids        ident.Generator
	clock      engine.Clock
	httpServer *http.Server
}

// Config wires a Server. Store and Engine are required; IDs and Clock
// default to production implementations and exist for tests.
type Config struct {
	Addr   string
	Store  *store.Store
	Engine *engine.Engine
	IDs    ident.Generator
	Clock  engine.Clock
}

// NewServer creates a Server with all routes registered.
func NewServer(cfg Config) *Server {
	s := &Server{
		store:  cfg.Store,
		engine: cfg.Engine,
		ids:    cfg.IDs,
		clock:  cfg.Clock,
	}
	if s.ids == nil {
		s.ids = ident.ULID{}
	}
	if s.clock == nil {
		s.clock = engine.WallClock{}
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// routes builds the method-routed mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /projects", s.handleCreateProject)
	mux.HandleFunc("GET /projects", s.handleListProjects)
	mux.HandleFunc("GET /projects/{id}", s.handleGetProject)
	mux.HandleFunc("PUT /projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("GET /projects/{id}/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /projects/{id}/settings", s.handlePutSettings)

	mux.HandleFunc("POST /chapters", s.handleCreateChapter)
	mux.HandleFunc("GET /chapters", s.handleListChapters)
	mux.HandleFunc("GET /chapters/{id}", s.handleGetChapter)
	mux.HandleFunc("PUT /chapters/{id}", s.handleUpdateChapter)
	mux.HandleFunc("POST /chapters/{id}/segments", s.handleUpsertSegment)
	mux.HandleFunc("GET /chapters/{id}/segments", s.handleListSegments)
	mux.HandleFunc("GET /chapters/{id}/reviews", s.handleListReviews)
	mux.HandleFunc("GET /chapters/{id}/text-versions", s.handleListTextVersions)

	mux.HandleFunc("POST /swarm/run", s.handleCreateRun)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/steps", s.handleListRunSteps)
	mux.HandleFunc("GET /runs/{id}/steps/{step_id}", s.handleGetRunStep)
	mux.HandleFunc("POST /runs/{id}/pause", s.handlePauseRun)
	mux.HandleFunc("POST /runs/{id}/resume", s.handleResumeRun)
	mux.HandleFunc("POST /runs/{id}/cancel", s.handleCancelRun)
	mux.HandleFunc("POST /runs/{id}/steps/{step_id}/approve", s.handleApproveStep)
	mux.HandleFunc("POST /runs/{id}/steps/{step_id}/override", s.handleOverrideStep)

	return requestID(mux)
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server. Blocks until the server stops.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestID tags every request with a UUID for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		slog.Debug("request", "id", id, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
