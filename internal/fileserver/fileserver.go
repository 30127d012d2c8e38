// Package fileserver answers raw HTTP/1.1 requests with files read from a
// root directory.
//
// Only GET is implemented. Every other method gets 501, unparseable or
// unsafe targets get 400 and missing files get 404. Bodies are streamed in
// fixed size chunks so the file is never held in memory.
package fileserver

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Brownie44l1/staticd/internal/bufpool"
	"github.com/Brownie44l1/staticd/internal/config"
	"github.com/Brownie44l1/staticd/internal/headers"
	"github.com/Brownie44l1/staticd/internal/request"
	"github.com/Brownie44l1/staticd/internal/response"
	"github.com/Brownie44l1/staticd/internal/transport"
)

// Recorder receives one call per answered request.
type Recorder interface {
	RecordRequest(statusCode response.StatusCode, bodyBytes int64, duration time.Duration)
}

type Handler struct {
	root    string
	reqOpts request.Options
	out     *bufpool.Pool
	log     *zap.Logger
	rec     Recorder

	open func(name string) (*os.File, error)
}

// New builds a handler serving files under cfg.Root. rec may be nil.
func New(cfg config.Config, log *zap.Logger, rec Recorder) *Handler {
	if log == nil {
		log = zap.NewNop()
	}

	root := cfg.Root
	if root == "" {
		root = config.DefaultRoot
	}

	return &Handler{
		root: root,
		reqOpts: request.Options{
			MaxPathSize: cfg.MaxPathSize,
			KeepAlive:   cfg.KeepAlive,
		},
		out:  bufpool.New(cfg.OutputBufferSize),
		log:  log.Named("http"),
		rec:  rec,
		open: os.Open,
	}
}

// Handle answers the single request held in data and reports whether the
// connection should be kept open.
func (h *Handler) Handle(conn transport.Conn, data []byte) bool {
	start := time.Now()
	log := h.log.With(zap.Uint64("conn", conn.ID()))
	log.Debug("request received", zap.ByteString("raw", data))

	w := response.NewWriter(connWriter{conn})

	// status is the answer chosen for the request, recorded even when it
	// could not be written.
	var status response.StatusCode
	req, err := request.Parse(data, h.reqOpts)
	switch {
	case err != nil:
		log.Info("bad request", zap.Error(err))
		status = response.StatusBadRequest
		err = w.ErrorResponse(status, false)
	case req.Method != "GET":
		status = response.StatusNotImplemented
		err = w.ErrorResponse(status, false)
	default:
		status, err = h.serveFile(log, w, req)
	}
	if err != nil {
		log.Warn("fail to send response", zap.Int("status", int(status)), zap.Error(err))
	}

	elapsed := time.Since(start)
	h.logAccess(log, req, status, w.BodyBytes(), elapsed)
	if h.rec != nil {
		h.rec.RecordRequest(status, w.BodyBytes(), elapsed)
	}

	return keepConnection(req, w)
}

// serveFile answers with the requested file or 404 and returns the status
// it chose.
func (h *Handler) serveFile(log *zap.Logger, w *response.Writer, req *request.Request) (response.StatusCode, error) {
	name := filepath.Join(h.root, req.Path)

	f, err := h.open(name)
	if err != nil {
		log.Debug("file not found", zap.String("file", name), zap.Error(err))
		return response.StatusNotFound, w.ErrorResponse(response.StatusNotFound, req.KeepAlive)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return response.StatusNotFound, w.ErrorResponse(response.StatusNotFound, req.KeepAlive)
	}

	return response.StatusOK, h.sendFile(w, req, f, info.Size())
}

func (h *Handler) sendFile(w *response.Writer, req *request.Request, f *os.File, size int64) error {
	if err := w.WriteStatusLine(response.StatusOK); err != nil {
		return err
	}

	hdr := headers.NewHeaders()
	hdr.Set(req.ContentType.Header())
	hdr.Set("Content-Length", strconv.FormatInt(size, 10))
	if req.KeepAlive {
		hdr.Set("Connection", "keep-alive")
	}
	if err := w.WriteHeaders(hdr); err != nil {
		return err
	}

	buf := h.out.Get()
	defer h.out.Put(buf)

	_, err := w.Stream(f, buf)
	return err
}

func (h *Handler) logAccess(log *zap.Logger, req *request.Request, status response.StatusCode, bodyBytes int64, elapsed time.Duration) {
	fields := []zap.Field{
		zap.Int("status", int(status)),
		zap.Int64("bytes", bodyBytes),
		zap.Duration("duration", elapsed),
	}
	if req != nil {
		fields = append(fields,
			zap.String("method", req.Method),
			zap.String("path", req.RawPath),
			zap.String("host", req.Host),
			zap.String("user_agent", req.UserAgent),
		)
	}
	log.Info("request handled", fields...)
}

// connWriter sends everything written to it over the connection.
type connWriter struct {
	conn transport.Conn
}

func (c connWriter) Write(p []byte) (int, error) {
	return c.conn.Send(p)
}
