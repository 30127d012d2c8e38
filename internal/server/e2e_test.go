package server

import (
	"bufio"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Brownie44l1/staticd/internal/config"
	"github.com/Brownie44l1/staticd/internal/fileserver"
)

const indexBody = "<html><body>Hello world</body></html>"

// startFileServer serves a temporary root holding index.html.
func startFileServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()

	cfg.Root = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Root, "index.html"), []byte(indexBody), 0o644))

	s, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Init(testContext(t)))

	h := fileserver.New(cfg, zap.NewNop(), s.Metrics())
	done := make(chan error, 1)
	go func() { done <- s.Listen(h) }()

	t.Cleanup(func() {
		s.Close()
		<-done
	})
	return s
}

func get(t *testing.T, c net.Conn, br *bufio.Reader, target, extra string) (*http.Response, string) {
	t.Helper()

	_, err := io.WriteString(c, "GET "+target+" HTTP/1.1\r\nHost: localhost\r\n"+extra+"\r\n")
	require.NoError(t, err)

	resp, err := http.ReadResponse(br, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServeIndexOverSocket(t *testing.T) {
	s := startFileServer(t, testConfig())

	c := dial(t, s)
	br := bufio.NewReader(c)

	resp, body := get(t, c, br, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	assert.Equal(t, int64(37), resp.ContentLength)
	assert.Equal(t, indexBody, body)

	// No keep-alive requested: the server hangs up after one response.
	_, err := br.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestTraversalOverSocket(t *testing.T) {
	s := startFileServer(t, testConfig())

	c := dial(t, s)
	br := bufio.NewReader(c)

	resp, body := get(t, c, br, "/../../etc/passwd", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Bad Request", body)
}

func TestKeepAliveOverSocket(t *testing.T) {
	cfg := testConfig()
	cfg.KeepAlive = true
	s := startFileServer(t, cfg)

	c := dial(t, s)
	br := bufio.NewReader(c)

	for i := 0; i < 2; i++ {
		resp, body := get(t, c, br, "/index.html", "Connection: keep-alive\r\n")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "keep-alive", resp.Header.Get("Connection"))
		assert.Equal(t, indexBody, body)
	}

	resp, _ := get(t, c, br, "/missing", "Connection: keep-alive\r\n")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := get(t, c, br, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, indexBody, body)

	_, err := br.ReadByte()
	assert.ErrorIs(t, err, io.EOF)

	assert.Eventually(t, func() bool {
		snap := s.Metrics().Snapshot()
		return snap.RequestsTotal == 4 && snap.Errors4xx == 1 && snap.ActiveConnections == 0
	}, time.Second, 10*time.Millisecond)
}

func TestServeIndexOverTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Secure = true
	cfg.KeepAlive = true
	s := startFileServer(t, cfg)

	c, err := tls.DialWithDialer(&net.Dialer{Timeout: time.Second}, "tcp", s.Addr().String(), &tls.Config{
		InsecureSkipVerify: true,
	})
	require.NoError(t, err)
	require.NoError(t, c.SetDeadline(time.Now().Add(5*time.Second)))
	t.Cleanup(func() { c.Close() })
	br := bufio.NewReader(c)

	resp, body := get(t, c, br, "/", "Connection: keep-alive\r\n")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, indexBody, body)

	resp, body = get(t, c, br, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, indexBody, body)

	_, err = br.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}
