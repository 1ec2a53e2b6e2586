// Package server accepts connections and runs one isolated receive worker per
// connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/SpatiumPortae/ferry/internal/conn"
	"github.com/SpatiumPortae/ferry/internal/logger"
	"github.com/SpatiumPortae/ferry/internal/receiver"
	"github.com/SpatiumPortae/ferry/protocol/frame"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxAcceptDelay = time.Second

// Server is the connection acceptor. Workers share nothing but the Saver.
type Server struct {
	saver       receiver.Saver
	logger      *zap.Logger
	workers     *Workers
	stats       stats
	readTimeout time.Duration
	chunkSize   int
	wg          sync.WaitGroup
}

type Option func(*Server)

// WithReadTimeout bounds every read from a connection. Zero waits forever.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = d
	}
}

func WithChunkSize(n int) Option {
	return func(s *Server) {
		s.chunkSize = n
	}
}

// NewServer constructs a Server that persists received files through saver.
func NewServer(saver receiver.Saver, lgr *zap.Logger, opts ...Option) *Server {
	s := &Server{
		saver:     saver,
		logger:    lgr,
		workers:   &Workers{},
		chunkSize: frame.DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe binds addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, dispatching each to
// its own worker without waiting for it. Accept failures are logged and the
// loop continues. On cancellation the listener and all worker connections are
// closed and Serve returns once every worker has finished.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()
	defer ln.Close()

	s.logger.Info("serving", zap.String("address", ln.Addr().String()))
	var delay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("shutting down", zap.Ints("active_workers", s.workers.IDs()))
				s.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return fmt.Errorf("accepting connections: %w", err)
			}
			delay = min(max(2*delay, 5*time.Millisecond), maxAcceptDelay)
			s.logger.Error("accepting connection", zap.Error(err), zap.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
			continue
		}
		delay = 0
		s.stats.accepted.Add(1)

		id := s.workers.Bind()
		s.wg.Add(1)
		go s.handle(ctx, id, c)
	}
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() Snapshot {
	return s.stats.snapshot(s.workers.Len())
}

// handle runs one worker: receive a single batch, then close the connection.
func (s *Server) handle(ctx context.Context, id int, c net.Conn) {
	connLogger := s.logger.With(
		zap.Int("worker", id),
		zap.String("conn_id", uuid.NewString()),
		zap.String("remote_addr", c.RemoteAddr().String()),
	)
	stop := context.AfterFunc(ctx, func() {
		c.Close()
	})
	defer func() {
		if r := recover(); r != nil {
			s.stats.failed.Add(1)
			connLogger.Error("worker panicked", zap.Any("panic", r), zap.Stack("stack_trace"))
		}
		stop()
		c.Close()
		s.workers.Delete(id)
		connLogger.Info("connection closed")
		s.wg.Done()
	}()
	connLogger.Info("accepted connection")

	rcv := receiver.New(s.saver, receiver.WithChunkSize(s.chunkSize))
	sum, err := rcv.Receive(logger.WithLogger(ctx, connLogger), conn.New(c, conn.WithReadTimeout(s.readTimeout)))
	s.stats.record(sum, err)

	fields := []zap.Field{
		zap.Int("declared", sum.Declared),
		zap.Int("received", sum.Received),
		zap.Int("saved", sum.Saved),
		zap.Int("short", sum.Short),
		zap.Int("rejected", sum.Rejected),
	}
	if err != nil {
		connLogger.Error("receiving batch", append(fields, zap.Error(err))...)
		return
	}
	connLogger.Info("batch complete", fields...)
}
