// Package httpapi exposes the HTTP and WebSocket surface over the store,
// worktree manager, and event bus: job CRUD and lifecycle transitions,
// worktree enumeration and deletion, a server-sent event stream, and a
// JSON-RPC 2.0 tool surface for long-lived clients.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conductor-oss/conductor/internal/eventbus"
	"github.com/conductor-oss/conductor/internal/store"
	"github.com/conductor-oss/conductor/internal/worktree"
)

// Server bundles the dependencies every handler needs.
type Server struct {
	Store     *store.Store
	Worktrees *worktree.Manager
	Bus       *eventbus.Bus
}

// NewRouter builds the chi router implementing the full route table.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.createJob)
		r.Get("/", s.listJobs)
		r.Post("/claim", s.claimJob)
		r.Post("/cleanup", s.cleanupJobs)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Delete("/", s.deleteJob)
			r.Get("/logs", s.getLogs)
			r.Post("/logs", s.appendLog)
			r.Get("/dependencies", s.getDependencies)
			r.Post("/complete", s.completeJob)
			r.Post("/continue", s.continueJob)
		})
	})

	r.Route("/worktrees", func(r chi.Router) {
		r.Get("/", s.listWorktrees)
		r.Delete("/cleanup", s.cleanupWorktrees)
		r.Delete("/{path}", s.deleteWorktree)
	})

	r.Get("/events", s.streamEvents)
	r.Get("/rpc", s.serveRPC)

	return r
}
