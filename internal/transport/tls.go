package transport

import (
	"context"
	"crypto/tls"

	"go.uber.org/zap"
)

type tlsBackend struct {
	listener
	config *tls.Config
}

func newTLSBackend(opts Options) *tlsBackend {
	return &tlsBackend{
		listener: listener{
			kind: KindTLS,
			opts: opts,
			log:  opts.Logger.Named(KindTLS.String()),
		},
	}
}

// Init loads the key pair, falling back to a freshly generated self-signed
// certificate for addr when no files are configured, then starts listening.
func (b *tlsBackend) Init(ctx context.Context, addr string, port int) error {
	cert, err := LoadCertificate(b.opts.CertFile, b.opts.KeyFile, addr)
	if err != nil {
		b.log.Error("fail to get server certificate", zap.Error(err))
		return &Error{Kind: KindTLS, Op: "init", Err: err}
	}
	if b.opts.CertFile == "" {
		b.log.Warn("no certificate configured, using a self-signed one")
	}

	b.config = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	return b.listen(ctx, addr, port)
}

// Accept accepts a TCP connection and completes the TLS handshake before
// returning. A failed handshake closes the socket and is reported as an
// error; the listener stays usable.
func (b *tlsBackend) Accept() (Conn, error) {
	raw, id, err := b.acceptRaw()
	if err != nil {
		return nil, err
	}

	tc := tls.Server(raw, b.config)

	ctx := context.Background()
	if b.opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.HandshakeTimeout)
		defer cancel()
	}

	if err := tc.HandshakeContext(ctx); err != nil {
		b.log.Error("fail to handshake", zap.Uint64("conn", id), zap.Error(err))
		raw.Close()
		return nil, &Error{Kind: KindTLS, Op: "handshake", Err: err}
	}

	state := tc.ConnectionState()
	b.log.Debug("handshake complete",
		zap.Uint64("conn", id),
		zap.String("version", tls.VersionName(state.Version)),
		zap.String("cipher", tls.CipherSuiteName(state.CipherSuite)),
	)

	return &tlsConn{
		conn: newConn(KindTLS, id, tc, b.opts.RecvTimeout, b.log),
		tc:   tc,
	}, nil
}

type tlsConn struct {
	*conn
	tc *tls.Conn
}

// Close sends close_notify and then closes the socket. The alert is allowed
// to fail since the peer may have gone already.
func (c *tlsConn) Close() error {
	if err := c.tc.CloseWrite(); err != nil {
		c.log.Debug("close notify not delivered", zap.Error(err))
	}

	c.log.Info("connection closed")
	if err := c.tc.NetConn().Close(); err != nil {
		c.log.Error("fail to close connection", zap.Error(err))
		return &Error{Kind: KindTLS, Op: "close", Err: err}
	}
	return nil
}
