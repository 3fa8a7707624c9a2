package process

import (
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// ExitStatus is how a group leader ended.
type ExitStatus struct {
	// Code is the exit code, or 128+signal when the process was killed by a signal.
	Code     int
	Signal   string
	Signaled bool
	ExitedAt time.Time
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return fmt.Sprintf("terminated by %s", s.Signal)
	}
	return fmt.Sprintf("exit code %d", s.Code)
}

// Success reports a clean zero exit.
func (s ExitStatus) Success() bool {
	return !s.Signaled && s.Code == 0
}

func exitStatusFromState(state *os.ProcessState) ExitStatus {
	status := ExitStatus{ExitedAt: time.Now()}
	if state == nil {
		status.Code = -1
		return status
	}

	status.Code = state.ExitCode()
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signaled = true
		status.Signal = ws.Signal().String()
		status.Code = 128 + int(ws.Signal())
	}
	return status
}

func asExitError(err error, target **exec.ExitError) bool {
	return stderrors.As(err, target)
}
