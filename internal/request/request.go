package request

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/Brownie44l1/staticd/internal/headers"
)

// Request is the parsed form of one raw request buffer.
type Request struct {
	Method string
	// RawPath is the request target exactly as the client sent it.
	RawPath string
	// Path is the filesystem path to serve, always "."-rooted.
	Path        string
	ContentType ContentType
	KeepAlive   bool

	// Host and UserAgent are read for access logging only.
	Host      string
	UserAgent string
}

// Options controls parsing limits and features.
type Options struct {
	// MaxPathSize limits the raw request target. Zero means no limit.
	MaxPathSize int
	// KeepAlive enables detection of "Connection: keep-alive".
	KeepAlive bool
}

var (
	ErrParse    = errors.New("parse error")
	ErrSecurity = errors.New("security error")

	ErrNoMethod      = fmt.Errorf("%w: no method", ErrParse)
	ErrNoPath        = fmt.Errorf("%w: no path", ErrParse)
	ErrPathTooLong   = fmt.Errorf("%w: path too long", ErrParse)
	ErrPathTraversal = fmt.Errorf("%w: path traversal", ErrSecurity)
)

const keepAliveToken = "Connection: keep-alive"

// Parse reads the request line of raw and resolves its target to a
// filesystem path. raw itself is never modified.
func Parse(raw []byte, opts Options) (*Request, error) {
	line, rest := splitRequestLine(raw)

	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' })
	if len(fields) == 0 {
		return nil, ErrNoMethod
	}
	if len(fields) < 2 {
		return nil, ErrNoPath
	}

	req := &Request{
		Method:  fields[0],
		RawPath: fields[1],
	}

	if opts.MaxPathSize > 0 && len(req.RawPath) > opts.MaxPathSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPathTooLong, len(req.RawPath), opts.MaxPathSize)
	}

	path, err := Normalize(req.RawPath)
	if err != nil {
		return nil, err
	}
	req.Path = path
	req.ContentType = Classify(path)

	if opts.KeepAlive {
		req.KeepAlive = bytes.Contains(raw, []byte(keepAliveToken))
	}

	// Headers are informational; a malformed block is ignored.
	h := headers.NewHeaders()
	h.Parse(rest)
	req.Host, _ = h.Get("Host")
	req.UserAgent, _ = h.Get("User-Agent")

	return req, nil
}

// splitRequestLine returns the first line of raw without its terminator and
// the bytes after it.
func splitRequestLine(raw []byte) (string, []byte) {
	idx := bytes.IndexByte(raw, '\n')
	if idx == -1 {
		return string(bytes.TrimRight(raw, "\r")), nil
	}
	return string(bytes.TrimRight(raw[:idx], "\r")), raw[idx+1:]
}

// Normalize maps a request target to a relative filesystem path. "/" serves
// index.html. Any path containing "../" or "~/" is rejected.
//
// The check is a plain substring match, not canonicalization: encoded or
// platform specific separators are not recognised.
func Normalize(raw string) (string, error) {
	if raw == "/" {
		raw = "/index.html"
	}

	path := "." + raw
	if strings.Contains(path, "../") || strings.Contains(path, "~/") {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, raw)
	}
	return path, nil
}
