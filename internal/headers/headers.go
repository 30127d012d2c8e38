package headers

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Field is a single header line.
type Field struct {
	Name  string
	Value string
}

// Headers is an ordered header list. Names keep the case they were added
// with and lookups ignore case.
type Headers struct {
	fields []Field
}

func NewHeaders() *Headers {
	return &Headers{}
}

// Get returns the first value for a header
func (h *Headers) Get(key string) (string, bool) {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, key) {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces all values for a header, keeping the position of the first one.
func (h *Headers) Set(key, value string) {
	for i, f := range h.fields {
		if strings.EqualFold(f.Name, key) {
			h.fields[i] = Field{Name: key, Value: value}
			h.delFrom(key, i+1)
			return
		}
	}
	h.fields = append(h.fields, Field{Name: key, Value: value})
}

// Add appends a value to a header
func (h *Headers) Add(key, value string) {
	h.fields = append(h.fields, Field{Name: key, Value: value})
}

func (h *Headers) delFrom(key string, start int) {
	kept := h.fields[:start]
	for _, f := range h.fields[start:] {
		if !strings.EqualFold(f.Name, key) {
			kept = append(kept, f)
		}
	}
	h.fields = kept
}

// WriteTo writes every field as "Name: Value\r\n". The blank line closing
// the header block is left to the caller.
func (h *Headers) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	for _, f := range h.fields {
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\r\n")
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Parse parses headers from raw bytes
func (h *Headers) Parse(data []byte) (int, bool, error) {
	read := 0
	done := false

	for {
		idx := bytes.Index(data[read:], []byte("\r\n"))
		if idx == -1 {
			// Need more data
			break
		}

		if idx == 0 {
			// Empty line = end of headers
			done = true
			read += 2
			break
		}

		line := data[read : read+idx]

		// Check for line folding (obsolete, reject it)
		if line[0] == ' ' || line[0] == '\t' {
			return read, false, fmt.Errorf("obsolete line folding not supported")
		}

		name, value, err := parseHeader(line)
		if err != nil {
			return read, done, err
		}

		h.Add(name, value)

		read += idx + 2
	}

	return read, done, nil
}

func parseHeader(line []byte) (string, string, error) {
	colonIdx := bytes.IndexByte(line, ':')
	if colonIdx == -1 {
		return "", "", fmt.Errorf("malformed header: no colon")
	}

	name := line[:colonIdx]
	value := line[colonIdx+1:]

	if bytes.ContainsAny(name, " \t") {
		return "", "", fmt.Errorf("malformed header: whitespace in name")
	}

	for _, b := range name {
		if !isValidHeaderChar(b) {
			return "", "", fmt.Errorf("invalid character in header name: %c", b)
		}
	}

	value = bytes.TrimSpace(value)

	return string(name), string(value), nil
}

func isValidHeaderChar(b byte) bool {
	return (b >= 'A' && b <= 'Z') ||
		(b >= 'a' && b <= 'z') ||
		(b >= '0' && b <= '9') ||
		b == '!' || b == '#' || b == '$' || b == '%' || b == '&' ||
		b == '\'' || b == '*' || b == '+' || b == '-' || b == '.' ||
		b == '^' || b == '_' || b == '`' || b == '|' || b == '~'
}
