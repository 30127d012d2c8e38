package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/staticd/internal/config"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, -1, exitCode(errors.New("boom")))
	assert.Equal(t, -int(syscall.EADDRINUSE), exitCode(fmt.Errorf("listen: %w", syscall.EADDRINUSE)))
}

func TestInvalidPortRejected(t *testing.T) {
	cmd := newCommand()
	cmd.SetArgs([]string{"--port", "70000"})

	err := cmd.ExecuteContext(testContext(t))
	assert.ErrorIs(t, err, config.ErrInvalidPort)
	assert.Equal(t, -1, exitCode(err))
}

func TestMissingRootExitsWithErrno(t *testing.T) {
	cmd := newCommand()
	cmd.SetArgs([]string{"--root", filepath.Join(t.TempDir(), "missing"), "--log-level", "error"})

	err := cmd.ExecuteContext(testContext(t))
	require.Error(t, err)
	assert.Equal(t, -int(syscall.ENOENT), exitCode(err))
}

func TestInvalidLogLevel(t *testing.T) {
	cmd := newCommand()
	cmd.SetArgs([]string{"--log-level", "loud"})

	assert.Error(t, cmd.ExecuteContext(testContext(t)))
}

func TestSecureNeedsHandshakeTimeout(t *testing.T) {
	cmd := newCommand()
	cmd.SetArgs([]string{"--secure", "--handshake-timeout", "0s"})

	assert.ErrorIs(t, cmd.ExecuteContext(testContext(t)), config.ErrInvalidHandshake)
}

func TestEnvOverridesDefault(t *testing.T) {
	t.Setenv("STATICD_PORT", "70001")

	cmd := newCommand()
	cmd.SetArgs([]string{})

	assert.ErrorIs(t, cmd.ExecuteContext(testContext(t)), config.ErrInvalidPort)
}
