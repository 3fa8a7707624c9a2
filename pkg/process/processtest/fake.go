// Package processtest provides test doubles for process.Spawner and
// process.Handle.
package processtest

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/core-tools/hsu-micromanage/pkg/process"
)

// MockSpawner is a testify mock of process.Spawner.
type MockSpawner struct {
	mock.Mock
}

func (m *MockSpawner) Spawn(spec process.ProcessSpec) (process.Handle, error) {
	args := m.Called(spec)
	handle, _ := args.Get(0).(process.Handle)
	return handle, args.Error(1)
}

// SpecNamed matches a ProcessSpec argument by name.
func SpecNamed(name string) interface{} {
	return mock.MatchedBy(func(spec process.ProcessSpec) bool {
		return spec.Name == name
	})
}

// FakeHandle is an in-memory process group. Output is fed with
// WriteStdout/WriteStderr; Exit ends it. TerminateGroup behaves like a
// process that exits on interrupt unless IgnoreInterrupt is set.
type FakeHandle struct {
	pid int

	stdoutR, stderrR *io.PipeReader
	stdoutW, stderrW *io.PipeWriter

	exitOnce sync.Once
	exited   chan struct{}
	status   process.ExitStatus

	mu              sync.Mutex
	terminateCalls  int
	terminateErr    error
	ignoreInterrupt bool
}

func NewFakeHandle(pid int) *FakeHandle {
	h := &FakeHandle{
		pid:    pid,
		exited: make(chan struct{}),
	}
	h.stdoutR, h.stdoutW = io.Pipe()
	h.stderrR, h.stderrW = io.Pipe()
	return h
}

func (h *FakeHandle) PID() int {
	return h.pid
}

func (h *FakeHandle) Stdout() io.ReadCloser {
	return h.stdoutR
}

func (h *FakeHandle) Stderr() io.ReadCloser {
	return h.stderrR
}

func (h *FakeHandle) Wait() (process.ExitStatus, error) {
	<-h.exited
	return h.status, nil
}

func (h *FakeHandle) TerminateGroup() error {
	h.mu.Lock()
	h.terminateCalls++
	err := h.terminateErr
	ignore := h.ignoreInterrupt
	h.mu.Unlock()

	if err != nil {
		return err
	}
	if !ignore {
		h.Exit(process.ExitStatus{Code: 130, Signaled: true, Signal: "interrupt"})
	}
	return nil
}

// WriteStdout writes each line followed by a newline. It blocks until the
// collector has read it.
func (h *FakeHandle) WriteStdout(lines ...string) {
	writeLines(h.stdoutW, lines)
}

func (h *FakeHandle) WriteStderr(lines ...string) {
	writeLines(h.stderrW, lines)
}

// Exit closes the output streams and lets Wait return status. Only the
// first call has an effect.
func (h *FakeHandle) Exit(status process.ExitStatus) {
	h.exitOnce.Do(func() {
		_ = h.stdoutW.Close()
		_ = h.stderrW.Close()
		if status.ExitedAt.IsZero() {
			status.ExitedAt = time.Now()
		}
		h.status = status
		close(h.exited)
	})
}

// SetTerminateError makes TerminateGroup fail with err.
func (h *FakeHandle) SetTerminateError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terminateErr = err
}

// SetIgnoreInterrupt keeps the fake alive after TerminateGroup.
func (h *FakeHandle) SetIgnoreInterrupt(ignore bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ignoreInterrupt = ignore
}

func (h *FakeHandle) TerminateCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminateCalls
}

// Exited is closed once Exit ran.
func (h *FakeHandle) Exited() <-chan struct{} {
	return h.exited
}

func writeLines(w *io.PipeWriter, lines []string) {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return
		}
	}
}
