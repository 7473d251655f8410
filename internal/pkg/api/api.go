// Package api defines the web API of a running crawl.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/api/handlers"
	"github.com/internetarchive/frontier/internal/pkg/api/handlers/stream"
	"github.com/internetarchive/frontier/internal/pkg/frontier"
	"github.com/sirupsen/logrus"
)

// ErrAPIAlreadyInitialized is returned when the API server is already started.
var ErrAPIAlreadyInitialized = errors.New("API server already initialized")

// Frontier is what the API exposes of the frontier
type Frontier interface {
	handlers.Pauser
	handlers.Admin
	Counts() frontier.Counts
	Summary() string
}

type Options struct {
	Port    int
	Version string
	// Metrics is served on /metrics when set
	Metrics http.Handler
	// Stats returns the values shown by /status
	Stats func() map[string]interface{}
	// StreamInterval is the polling interval of /queues/stream
	StreamInterval time.Duration
	Logger         logrus.FieldLogger
}

type Server struct {
	server    *http.Server
	stream    *stream.Stream
	log       logrus.FieldLogger
	startTime time.Time
	once      sync.Once
}

// New returns a Server for f, Start has to be called to serve requests
func New(opts Options, f Frontier) *Server {
	s := &Server{
		stream:    stream.New(f.QueueReports, opts.StreamInterval),
		log:       opts.Logger,
		startTime: time.Now(),
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux, opts, f)

	s.server = &http.Server{
		Addr:              ":" + strconv.Itoa(opts.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler returns the routes of the server
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving HTTP requests in a separate goroutine.
func (s *Server) Start() error {
	var (
		done bool
		err  error
	)

	s.once.Do(func() {
		done = true

		var listener net.Listener
		listener, err = net.Listen("tcp", s.server.Addr)
		if err != nil {
			return
		}

		s.log.WithField("addr", s.server.Addr).Info("Starting API server")

		go func() {
			// Serve returns http.ErrServerClosed when Shutdown is called.
			if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.WithField("error", err).Error("API server stopped")
			}
		}()
	})

	if !done {
		return ErrAPIAlreadyInitialized
	}

	return err
}

// Stop gracefully shuts down the server within the provided timeout.
func (s *Server) Stop(timeout time.Duration) error {
	s.log.WithField("addr", s.server.Addr).Info("Stopping API server")

	s.stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
