package server

import (
	"net"

	"go.uber.org/zap"
)

// Server accepts TCP connections and hands each one to a worker pool
// for processing.
type Server struct {
	listener net.Listener
	pool     *Pool
	logger   *zap.Logger
}

// New wraps listener with a worker pool of PoolSize workers, each
// dispatching accepted connections to handler.
func New(listener net.Listener, handler Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		listener: listener,
		pool:     NewPool(PoolSize, handler, logger),
		logger:   logger,
	}
}

// Serve accepts connections until the listener is closed, submitting
// each to the worker pool. It returns the error that stopped the
// accept loop, which is expected to be net.ErrClosed on a clean
// shutdown.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.pool.Close()
			return err
		}
		s.pool.Submit(conn)
	}
}

// Close stops the accept loop by closing the underlying listener.
func (s *Server) Close() error {
	return s.listener.Close()
}
