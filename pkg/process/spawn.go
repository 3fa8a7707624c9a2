package process

import (
	"io"
	"os"
	"os/exec"

	"github.com/core-tools/hsu-micromanage/pkg/errors"
	"github.com/core-tools/hsu-micromanage/pkg/logging"
)

// Handle is a spawned process group. The group leader is the spawned
// process itself; its descendants inherit the group unless they detach.
type Handle interface {
	PID() int

	// Stdout and Stderr are the read ends of the child's output pipes.
	// They reach EOF once every writer in the group has exited.
	Stdout() io.ReadCloser
	Stderr() io.ReadCloser

	// Wait blocks until the group leader exits. The error is non-nil only
	// when waiting itself failed; a non-zero exit is reported in ExitStatus.
	Wait() (ExitStatus, error)

	// TerminateGroup asks every member of the group to stop. A group that
	// is already gone yields a NotFound error.
	TerminateGroup() error
}

// Spawner starts processes from specs.
type Spawner interface {
	Spawn(spec ProcessSpec) (Handle, error)
}

type execSpawner struct {
	logger logging.Logger
}

// NewExecSpawner returns a Spawner backed by os/exec. Each process becomes
// the leader of a new process group with stdout and stderr on separate pipes.
func NewExecSpawner(logger logging.Logger) Spawner {
	return &execSpawner{logger: logger}
}

func (s *execSpawner) Spawn(spec ProcessSpec) (Handle, error) {
	s.logger.Debugf("Spawning process, name: %s, command line: '%s', working directory: '%s'",
		spec.Name, spec.CommandLine(), spec.WorkingDirectory)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, spawnError(spec, "failed to create stdout pipe", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, spawnError(spec, "failed to create stderr pipe", err)
	}

	// Not CommandContext: the process outlives any single control call and
	// is stopped only through TerminateGroup.
	cmd := exec.Command(spec.Command, spec.Arguments...)
	cmd.Dir = spec.WorkingDirectory
	if len(spec.Environment) > 0 {
		cmd.Env = append(os.Environ(), spec.Environment...)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	setupProcessAttributes(cmd)

	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, spawnError(spec, "failed to start the process", err)
	}

	// The child holds its own copies; keeping ours open would prevent EOF.
	closeAll(stdoutW, stderrW)

	s.logger.Infof("Spawned process, name: %s, PID: %d", spec.Name, cmd.Process.Pid)

	return &execHandle{
		cmd:    cmd,
		stdout: stdoutR,
		stderr: stderrR,
	}, nil
}

func spawnError(spec ProcessSpec, message string, cause error) *errors.DomainError {
	return errors.NewSpawnError(message, cause).
		WithContext("name", spec.Name).
		WithContext("command", spec.Command)
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

type execHandle struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File
}

func (h *execHandle) PID() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) Stdout() io.ReadCloser {
	return h.stdout
}

func (h *execHandle) Stderr() io.ReadCloser {
	return h.stderr
}

func (h *execHandle) Wait() (ExitStatus, error) {
	err := h.cmd.Wait()
	status := exitStatusFromState(h.cmd.ProcessState)
	if err != nil {
		var exitErr *exec.ExitError
		if asExitError(err, &exitErr) {
			// A non-zero exit is a status, not a failure to wait.
			return status, nil
		}
		return status, errors.NewProcessError("failed to wait for process", err).
			WithContext("pid", h.PID())
	}
	return status, nil
}

func (h *execHandle) TerminateGroup() error {
	return SendInterruptToGroup(h.PID())
}
