// Package server runs the accept loop and drives every accepted connection
// through receive, handle and repeat until the handler or the transport ends
// it.
//
// Each connection gets its own goroutine. There is no pool and no cap: the
// number of live connection goroutines is bounded only by the clients.
// Connection goroutines are never cancelled; Close stops accepting and they
// finish on their own (peer close, idle timeout, error).
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Brownie44l1/staticd/internal/bufpool"
	"github.com/Brownie44l1/staticd/internal/config"
	"github.com/Brownie44l1/staticd/internal/transport"
)

const maxAcceptDelay = time.Second

var ErrNilHandler = errors.New("server: nil handler")

// Handler serves the request held in data and reports whether the
// connection should stay open for another one. data is only valid for the
// duration of the call.
type Handler interface {
	Handle(conn transport.Conn, data []byte) bool
}

type HandlerFunc func(conn transport.Conn, data []byte) bool

func (f HandlerFunc) Handle(conn transport.Conn, data []byte) bool {
	return f(conn, data)
}

type Server struct {
	cfg     config.Config
	backend transport.Backend
	log     *zap.Logger
	metrics *Metrics
	recv    *bufpool.Pool
	closed  atomic.Bool
}

// New builds a server on the backend selected by cfg.Secure.
func New(cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	kind := transport.KindSocket
	if cfg.Secure {
		kind = transport.KindTLS
	}

	backend, err := transport.New(kind, transport.Options{
		RecvTimeout:      cfg.KeepAliveTimeout,
		HandshakeTimeout: cfg.HandshakeTimeout,
		CertFile:         cfg.CertFile,
		KeyFile:          cfg.KeyFile,
		Logger:           log,
	})
	if err != nil {
		return nil, err
	}

	return NewWithBackend(cfg, backend, log), nil
}

// NewWithBackend builds a server on an already constructed backend.
func NewWithBackend(cfg config.Config, backend transport.Backend, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		backend: backend,
		log:     log.Named("server"),
		metrics: NewMetrics(),
		recv:    bufpool.New(cfg.InputBufferSize),
	}
}

// Init binds the listening address.
func (s *Server) Init(ctx context.Context) error {
	if err := s.backend.Init(ctx, s.cfg.Addr, s.cfg.Port); err != nil {
		return fmt.Errorf("server: init %s backend on %s: %w", s.backend.Kind(), s.cfg.ListenAddr(), err)
	}
	return nil
}

// Addr returns the bound address, nil before Init.
func (s *Server) Addr() net.Addr {
	return s.backend.Addr()
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Listen accepts connections until Close is called and hands each one to
// its own goroutine. It returns nil after Close, or the error that made
// accepting impossible.
func (s *Server) Listen(h Handler) error {
	if h == nil {
		return ErrNilHandler
	}

	var delay time.Duration
	for {
		conn, err := s.backend.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			if errors.Is(err, transport.ErrNotInitialized) || errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("server: accept: %w", err)
			}

			s.metrics.AcceptErrors.Add(1)
			if isHandshakeError(err) {
				s.log.Warn("connection rejected", zap.Error(err))
				continue
			}

			delay = nextDelay(delay)
			s.log.Error("fail to accept", zap.Error(err), zap.Duration("retry_in", delay))
			time.Sleep(delay)
			continue
		}

		delay = 0
		go s.serveConn(conn, h)
	}
}

// Close stops the accept loop and releases the listener. Live connections
// are left to finish.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.backend.Deinit()
}

func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > maxAcceptDelay {
		d = maxAcceptDelay
	}
	return d
}

func isHandshakeError(err error) bool {
	var terr *transport.Error
	return errors.As(err, &terr) && terr.Op == "handshake"
}
