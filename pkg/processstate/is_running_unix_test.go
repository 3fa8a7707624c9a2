//go:build !windows

package processstate

import (
	"os"
	"os/exec"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProcessRunning_Self(t *testing.T) {
	running, err := IsProcessRunning(os.Getpid())
	require.NoError(t, err)
	assert.True(t, running)
}

func TestIsProcessRunning_InvalidPID(t *testing.T) {
	running, err := IsProcessRunning(0)
	assert.Error(t, err)
	assert.False(t, running)
}

func TestIsProcessRunning_Reaped(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "true")
	require.NoError(t, cmd.Run())

	running, err := IsProcessRunning(cmd.Process.Pid)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestIsGroupRunning(t *testing.T) {
	running, err := IsGroupRunning(0)
	assert.Error(t, err)
	assert.False(t, running)

	running, err = IsGroupRunning(syscall.Getpgrp())
	require.NoError(t, err)
	assert.True(t, running)
}
