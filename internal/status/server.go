// Package status serves read-only HTTP endpoints describing a running ferry server.
package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/SpatiumPortae/ferry/internal/server"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// StatsProvider exposes the counters of a running acceptor.
type StatsProvider interface {
	Stats() server.Snapshot
}

// Server holds the HTTP server exposing the status routes.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	stats      StatsProvider
	logger     *zap.Logger
	version    string
}

// NewServer constructs a new Server struct and setups the routes.
func NewServer(addr string, stats StatsProvider, lgr *zap.Logger, version string) *Server {
	router := &mux.Router{}
	stdLoggerWrapper, _ := zap.NewStdLogAt(lgr, zap.ErrorLevel)
	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Handler:      router,
			ErrorLog:     stdLoggerWrapper,
		},
		router:  router,
		stats:   stats,
		logger:  lgr,
		version: version,
	}
	s.routes()
	return s
}

// Handler returns the router, for mounting in tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errC := make(chan error, 1)
	go func() {
		errC <- s.httpServer.Serve(ln)
	}()
	s.logger.Info("serving status endpoint", zap.String("address", ln.Addr().String()))

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctxShutdown); err != nil {
		return err
	}
	if err := <-errC; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("status endpoint shut down")
	return nil
}
