package response

import (
	"strconv"

	"github.com/Brownie44l1/staticd/internal/headers"
)

// ErrorResponse writes a complete response whose body is the reason phrase
// of code, e.g. "Not Found".
func (w *Writer) ErrorResponse(code StatusCode, keepAlive bool) error {
	body := StatusText(code)

	if err := w.WriteStatusLine(code); err != nil {
		return err
	}

	h := headers.NewHeaders()
	h.Set("Content-Length", strconv.Itoa(len(body)))
	if keepAlive {
		h.Set("Connection", "keep-alive")
	}

	if err := w.WriteHeaders(h); err != nil {
		return err
	}

	return w.WriteBody([]byte(body))
}
