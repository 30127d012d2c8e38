package headers

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderParse(t *testing.T) {
	// Test: Valid single header
	h := NewHeaders()
	data := []byte("Host: localhost:42069\r\n")
	n, done, err := h.Parse(data)
	require.NoError(t, err)
	val, ok := h.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "localhost:42069", val)
	assert.Equal(t, 23, n)
	assert.False(t, done)

	// Test: Extra whitespace around the value
	h = NewHeaders()
	data = []byte("Host:   localhost:42069   \r\n")
	_, done, err = h.Parse(data)
	require.NoError(t, err)
	val, ok = h.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "localhost:42069", val)
	assert.False(t, done)

	// Test: Duplicate headers keep every value
	h = NewHeaders()
	data = []byte("Set-Cookie: a=1\r\nSet-Cookie: b=2\r\n")
	_, _, err = h.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "Set-Cookie: a=1\r\nSet-Cookie: b=2\r\n", render(t, h))
	val, _ = h.Get("set-cookie")
	assert.Equal(t, "a=1", val)

	// Test: Headers followed by empty line
	h = NewHeaders()
	data = []byte("Host: example.com\r\n\r\n")
	n, done, err = h.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 21, n)
	assert.True(t, done)

	// Test: Names keep their case, lookups ignore it
	h = NewHeaders()
	_, _, err = h.Parse([]byte("User-Agent: curl/8.0\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "User-Agent: curl/8.0\r\n", render(t, h))
	val, ok = h.Get("USER-AGENT")
	assert.True(t, ok)
	assert.Equal(t, "curl/8.0", val)

	// Test: Malformed lines
	for _, bad := range []string{"Host : localhost\r\n", "Ho st: localhost\r\n", "InvalidHeader\r\n"} {
		h = NewHeaders()
		_, _, err = h.Parse([]byte(bad))
		require.Error(t, err, bad)
		assert.Contains(t, err.Error(), "malformed")
	}

	// Test: Invalid character in header name
	h = NewHeaders()
	_, _, err = h.Parse([]byte("H©st: localhost\r\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid character")

	// Test: Obsolete line folding
	h = NewHeaders()
	_, _, err = h.Parse([]byte("Host: example.com\r\n continued\r\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line folding")

	// Test: Incomplete line
	h = NewHeaders()
	n, done, err = h.Parse([]byte("Host: example.com"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, done)
	assert.Empty(t, render(t, h))
}

func TestHeaderSetAdd(t *testing.T) {
	h := NewHeaders()
	h.Add("X-Custom", "value1")
	h.Add("Content-type", "text/html")
	h.Add("X-Custom", "value2")
	assert.Equal(t, "X-Custom: value1\r\nContent-type: text/html\r\nX-Custom: value2\r\n", render(t, h))

	// Set replaces in place and drops later duplicates.
	h.Set("x-custom", "new-value")
	assert.Equal(t, "x-custom: new-value\r\nContent-type: text/html\r\n", render(t, h))

	h.Set("Connection", "keep-alive")
	val, ok := h.Get("connection")
	assert.True(t, ok)
	assert.Equal(t, "keep-alive", val)
}

func TestHeaderWriteTo(t *testing.T) {
	h := NewHeaders()
	h.Set("Content-type", "text/html")
	h.Set("Content-Length", "37")
	h.Set("Connection", "keep-alive")

	var buf bytes.Buffer
	n, err := h.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "Content-type: text/html\r\nContent-Length: 37\r\nConnection: keep-alive\r\n", buf.String())
	assert.Equal(t, int64(buf.Len()), n)

	buf.Reset()
	_, err = NewHeaders().WriteTo(&buf)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func render(t *testing.T, h *Headers) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := h.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}
