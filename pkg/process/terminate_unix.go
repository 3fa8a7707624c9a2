//go:build !windows

package process

import (
	stderrors "errors"
	"syscall"

	"github.com/core-tools/hsu-micromanage/pkg/errors"
)

// SendInterruptToGroup sends SIGINT to the process group led by pid.
// SIGINT, not SIGKILL, so members can shut down gracefully.
func SendInterruptToGroup(pid int) error {
	if pid <= 0 {
		return errors.NewValidationError("invalid PID", nil).WithContext("pid", pid)
	}

	err := syscall.Kill(-pid, syscall.SIGINT)
	if err == nil {
		return nil
	}
	if stderrors.Is(err, syscall.ESRCH) {
		return errors.NewNotFoundError("process group already exited", err).WithContext("pid", pid)
	}
	if stderrors.Is(err, syscall.EPERM) {
		return errors.NewPermissionError("not allowed to signal process group", err).WithContext("pid", pid)
	}
	return errors.NewProcessError("failed to signal process group", err).WithContext("pid", pid)
}
