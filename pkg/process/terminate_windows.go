//go:build windows

package process

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/core-tools/hsu-micromanage/pkg/errors"
	"github.com/core-tools/hsu-micromanage/pkg/processstate"
)

const ctrlBreakTimeout = 5 * time.Second

// Console control events are process-global; serialize them.
var consoleOperationLock sync.Mutex

// SendInterruptToGroup sends CTRL_BREAK to the console process group led
// by pid, the closest Windows analogue of SIGINT to a group.
func SendInterruptToGroup(pid int) error {
	if pid <= 0 {
		return errors.NewValidationError("invalid PID", nil).WithContext("pid", pid)
	}

	consoleOperationLock.Lock()
	defer consoleOperationLock.Unlock()

	if running, _ := processstate.IsProcessRunning(pid); !running {
		return errors.NewNotFoundError("process group already exited", nil).WithContext("pid", pid)
	}

	dll, err := syscall.LoadDLL("kernel32.dll")
	if err != nil {
		return errors.NewInternalError("failed to load kernel32.dll", err)
	}
	defer dll.Release()

	done := make(chan error, 1)
	go func() {
		done <- generateConsoleCtrlEvent(dll, pid)
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.NewProcessError("failed to send Ctrl+Break", err).WithContext("pid", pid)
		}
		return nil
	case <-time.After(ctrlBreakTimeout):
		return errors.NewTimeoutError(fmt.Sprintf("sending Ctrl+Break timed out after %v", ctrlBreakTimeout), nil).
			WithContext("pid", pid)
	}
}

func generateConsoleCtrlEvent(dll *syscall.DLL, pid int) error {
	proc, err := dll.FindProc("GenerateConsoleCtrlEvent")
	if err != nil {
		return err
	}

	result, _, err := proc.Call(
		uintptr(syscall.CTRL_BREAK_EVENT),
		uintptr(pid),
	)
	if result == 0 {
		return err
	}
	return nil
}
