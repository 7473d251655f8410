package api

import (
	"net/http"

	"github.com/internetarchive/frontier/internal/pkg/api/handlers"
)

// registerRoutes attaches all API handlers to mux.
func (s *Server) registerRoutes(mux *http.ServeMux, opts Options, f Frontier) {
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}
	mux.HandleFunc("GET /status", s.statusHandler(opts, f))
	mux.HandleFunc("GET /summary", summaryHandler(f))
	mux.HandleFunc("GET /pause", handlers.GetPause(f))
	mux.HandleFunc("PATCH /pause", handlers.PatchPause(f))
	mux.HandleFunc("GET /queues", handlers.GetQueues(f))
	mux.Handle("GET /queues/stream", s.stream)
	mux.HandleFunc("PATCH /queues/{key}/budget", handlers.PatchBudget(f))
	mux.HandleFunc("POST /queues/{key}/unretire", handlers.PostUnretire(f))
	mux.HandleFunc("DELETE /uris", handlers.DeleteURIs(f))
}
