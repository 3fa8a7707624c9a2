//go:build !windows

package processstate

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// IsProcessRunning reports whether pid names a live process.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("invalid PID: %d", pid)
	}

	// On Unix FindProcess always succeeds; signal 0 checks existence.
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, err
	}
	return signalResult(process.Signal(syscall.Signal(0)))
}

// IsGroupRunning reports whether any member of process group pgid is alive.
// It is how micromanage detects descendants that outlived their leader.
func IsGroupRunning(pgid int) (bool, error) {
	if pgid <= 0 {
		return false, fmt.Errorf("invalid process group: %d", pgid)
	}
	return signalResult(syscall.Kill(-pgid, syscall.Signal(0)))
}

func signalResult(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrProcessDone), errors.Is(err, syscall.ESRCH):
		return false, nil
	case errors.Is(err, syscall.EPERM):
		// Exists, owned by someone else.
		return true, nil
	}
	return false, err
}
