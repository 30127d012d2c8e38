// Package transport provides the interchangeable connection backends the
// server runs on: plain TCP sockets and TLS over TCP. Both satisfy Backend and
// hand out Conn values, so the connection manager never knows which one it
// is driving.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// Kind selects a backend implementation.
type Kind int

const (
	KindSocket Kind = iota
	KindTLS
)

func (k Kind) String() string {
	switch k {
	case KindSocket:
		return "socket"
	case KindTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// Conn is one accepted client channel. It is owned by a single goroutine and
// Close must be called exactly once.
type Conn interface {
	// Recv performs a single read of at most len(p) bytes. It fails once the
	// receive timeout elapses without data.
	Recv(p []byte) (int, error)
	// Send writes p and returns once every byte is written or an error occurs.
	Send(p []byte) (int, error)
	Close() error
	ID() uint64
	RemoteAddr() net.Addr
}

// Backend listens for and accepts client connections.
type Backend interface {
	Init(ctx context.Context, addr string, port int) error
	// Accept blocks until a client connects. It returns ErrNotInitialized when
	// called before Init.
	Accept() (Conn, error)
	// Addr is the bound listening address, nil before Init.
	Addr() net.Addr
	Deinit() error
	Kind() Kind
}

// Options tune a backend.
type Options struct {
	// RecvTimeout bounds every Recv call. Zero disables it.
	RecvTimeout time.Duration
	// HandshakeTimeout bounds the TLS handshake performed by Accept.
	HandshakeTimeout time.Duration
	CertFile         string
	KeyFile          string
	Logger           *zap.Logger
}

var (
	ErrNotInitialized = errors.New("transport: backend not initialized")
	ErrTimeout        = errors.New("transport: receive timed out")
	ErrInvalidAddress = errors.New("transport: invalid address")
	ErrUnknownKind    = errors.New("transport: unknown backend kind")
)

// Error records the failed operation and the backend it happened on. The
// underlying OS or crypto error stays reachable through Unwrap, so callers can
// still match a syscall.Errno.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an uninitialized backend of the given kind.
func New(kind Kind, opts Options) (Backend, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	switch kind {
	case KindSocket:
		return newSocketBackend(opts), nil
	case KindTLS:
		return newTLSBackend(opts), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}
