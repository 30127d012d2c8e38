package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// listener is the TCP listening state shared by both backends.
type listener struct {
	kind   Kind
	opts   Options
	log    *zap.Logger
	ln     net.Listener
	nextID atomic.Uint64
}

// listen binds addr:port. Go's TCP listener already enables SO_REUSEADDR and
// uses the platform maximum backlog.
func (l *listener) listen(ctx context.Context, addr string, port int) error {
	if net.ParseIP(addr) == nil {
		return &Error{Kind: l.kind, Op: "init", Err: fmt.Errorf("%w: %q", ErrInvalidAddress, addr)}
	}
	if port < 0 || port > 65535 {
		return &Error{Kind: l.kind, Op: "init", Err: fmt.Errorf("%w: port %d", ErrInvalidAddress, port)}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		l.log.Error("fail to listen", zap.String("addr", addr), zap.Int("port", port), zap.Error(err))
		return &Error{Kind: l.kind, Op: "listen", Err: err}
	}

	l.ln = ln
	l.log.Info("has been started", zap.Stringer("addr", ln.Addr()))
	return nil
}

func (l *listener) acceptRaw() (net.Conn, uint64, error) {
	if l.ln == nil {
		return nil, 0, ErrNotInitialized
	}

	c, err := l.ln.Accept()
	if err != nil {
		return nil, 0, &Error{Kind: l.kind, Op: "accept", Err: err}
	}

	id := l.nextID.Add(1)
	l.log.Info("new connection", zap.Uint64("conn", id), zap.Stringer("remote", c.RemoteAddr()))
	return c, id, nil
}

func (l *listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *listener) Deinit() error {
	if l.ln == nil {
		return ErrNotInitialized
	}
	if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		l.log.Error("fail to close listener", zap.Error(err))
		return &Error{Kind: l.kind, Op: "deinit", Err: err}
	}
	return nil
}

func (l *listener) Kind() Kind {
	return l.kind
}

type socketBackend struct {
	listener
}

func newSocketBackend(opts Options) *socketBackend {
	return &socketBackend{
		listener: listener{
			kind: KindSocket,
			opts: opts,
			log:  opts.Logger.Named(KindSocket.String()),
		},
	}
}

func (b *socketBackend) Init(ctx context.Context, addr string, port int) error {
	return b.listen(ctx, addr, port)
}

func (b *socketBackend) Accept() (Conn, error) {
	c, id, err := b.acceptRaw()
	if err != nil {
		return nil, err
	}
	return newConn(KindSocket, id, c, b.opts.RecvTimeout, b.log), nil
}

// conn adapts a net.Conn to Conn. The TLS backend wraps a *tls.Conn in it.
type conn struct {
	kind    Kind
	id      uint64
	nc      net.Conn
	timeout time.Duration
	log     *zap.Logger
}

func newConn(kind Kind, id uint64, nc net.Conn, timeout time.Duration, log *zap.Logger) *conn {
	return &conn{
		kind:    kind,
		id:      id,
		nc:      nc,
		timeout: timeout,
		log:     log.With(zap.Uint64("conn", id)),
	}
}

func (c *conn) Recv(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.nc.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, &Error{Kind: c.kind, Op: "recv", Err: err}
		}
	}

	n, err := c.nc.Read(p)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return n, &Error{Kind: c.kind, Op: "recv", Err: err}
	}
	return n, nil
}

func (c *conn) Send(p []byte) (int, error) {
	n, err := c.nc.Write(p)
	if err != nil {
		c.log.Error("fail to send", zap.Int("sent", n), zap.Int("len", len(p)), zap.Error(err))
		return n, &Error{Kind: c.kind, Op: "send", Err: err}
	}
	return n, nil
}

func (c *conn) Close() error {
	c.log.Info("connection closed")
	if err := c.nc.Close(); err != nil {
		c.log.Error("fail to close connection", zap.Error(err))
		return &Error{Kind: c.kind, Op: "close", Err: err}
	}
	return nil
}

func (c *conn) ID() uint64 {
	return c.id
}

func (c *conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}
