package server

import (
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/Brownie44l1/staticd/internal/transport"
)

// serveConn handles all requests on a single connection. Every exit path
// closes conn exactly once.
func (s *Server) serveConn(conn transport.Conn, h Handler) {
	s.metrics.ConnOpened()
	log := s.log.With(zap.Uint64("conn", conn.ID()))

	buf := s.recv.Get()
	defer func() {
		s.recv.Put(buf)
		conn.Close()
		s.metrics.ConnClosed()
	}()

	for {
		n, err := conn.Recv(buf)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Debug("peer closed connection")
			case errors.Is(err, transport.ErrTimeout):
				log.Debug("idle timeout")
			default:
				log.Warn("fail to receive data", zap.Error(err))
			}
			return
		}
		if n == 0 {
			return
		}

		if !s.handleRequest(log, h, conn, buf[:n]) {
			return
		}
	}
}

// handleRequest wraps handler call with panic recovery
func (s *Server) handleRequest(log *zap.Logger, h Handler, conn transport.Conn, data []byte) (keepAlive bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic", zap.Any("panic", r), zap.Stack("stack"))
			s.metrics.Panics.Add(1)
			keepAlive = false
		}
	}()

	return h.Handle(conn, data)
}
