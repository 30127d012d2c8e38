package response

import (
	"errors"
	"fmt"
	"io"

	"github.com/Brownie44l1/staticd/internal/headers"
)

var ErrWriterState = errors.New("response written out of order")

// writerState tracks what's been written so far
type writerState int

const (
	stateStart writerState = iota
	stateStatusWritten
	stateHeadersWritten
	stateBodyWritten
)

// Writer writes one HTTP response to an io.Writer: status line, then the
// header block, then the body.
type Writer struct {
	w          io.Writer
	state      writerState
	statusCode StatusCode
	bodyBytes  int64
	hadError   bool
}

// NewWriter creates a new response writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		state: stateStart,
	}
}

// WriteStatusLine writes the HTTP status line
func (w *Writer) WriteStatusLine(code StatusCode) error {
	if w.state != stateStart {
		return fmt.Errorf("%w: status line already written", ErrWriterState)
	}

	line := fmt.Sprintf("HTTP/1.1 %d %s\r\n", code, StatusText(code))
	if err := w.write([]byte(line)); err != nil {
		return err
	}

	w.statusCode = code
	w.state = stateStatusWritten
	return nil
}

// WriteHeaders writes the header block and the blank line ending it.
func (w *Writer) WriteHeaders(h *headers.Headers) error {
	if w.state != stateStatusWritten {
		return fmt.Errorf("%w: must write status line before headers", ErrWriterState)
	}

	if h != nil {
		if _, err := h.WriteTo(writerFunc(w.write)); err != nil {
			return err
		}
	}
	if err := w.write([]byte("\r\n")); err != nil {
		return err
	}

	w.state = stateHeadersWritten
	return nil
}

// WriteBody writes the complete response body
func (w *Writer) WriteBody(data []byte) error {
	if w.state != stateHeadersWritten {
		return fmt.Errorf("%w: must write headers before body", ErrWriterState)
	}

	if len(data) > 0 {
		if err := w.write(data); err != nil {
			return err
		}
		w.bodyBytes += int64(len(data))
	}

	w.state = stateBodyWritten
	return nil
}

// Stream copies r to the client one buffer at a time until EOF. buf sets
// the chunk size.
func (w *Writer) Stream(r io.Reader, buf []byte) (int64, error) {
	if w.state != stateHeadersWritten && w.state != stateBodyWritten {
		return 0, fmt.Errorf("%w: must write headers before body", ErrWriterState)
	}
	if len(buf) == 0 {
		return 0, io.ErrShortBuffer
	}

	var total int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if err := w.write(buf[:n]); err != nil {
				return total, err
			}
			total += int64(n)
			w.bodyBytes += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			w.hadError = true
			return total, fmt.Errorf("read body: %w", rerr)
		}
	}

	w.state = stateBodyWritten
	return total, nil
}

// write sends p in full or reports why it could not.
func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		w.hadError = true
		return err
	}
	return nil
}

func (w *Writer) HadError() bool {
	return w.hadError
}

func (w *Writer) StatusCode() StatusCode {
	return w.statusCode
}

// BodyBytes is the number of body bytes written so far.
func (w *Writer) BodyBytes() int64 {
	return w.bodyBytes
}

type writerFunc func([]byte) error

func (f writerFunc) Write(p []byte) (int, error) {
	if err := f(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
