package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/core-tools/hsu-micromanage/pkg/errors"
	"github.com/core-tools/hsu-micromanage/pkg/logcollection"
	"github.com/core-tools/hsu-micromanage/pkg/logging"
	"github.com/core-tools/hsu-micromanage/pkg/metrics"
	"github.com/core-tools/hsu-micromanage/pkg/process"
	"github.com/core-tools/hsu-micromanage/pkg/processstate"
)

type ManagedProcessOptions struct {
	QueueCapacity int
	Outputs       []logcollection.OutputWriter
	Metrics       *metrics.Metrics
}

// processRun is one spawn of a ManagedProcess.
type processRun struct {
	handle    process.Handle
	collector *logcollection.Collector
	signaled  bool
	exited    bool

	// done is closed after the leader exited and the collector drained.
	done chan struct{}
}

// ManagedProcess owns the lifecycle and output log of one external
// process. All methods are safe for concurrent use; none of them waits
// for the process to exit except Wait.
type ManagedProcess struct {
	spec    process.ProcessSpec
	spawner process.Spawner
	options ManagedProcessOptions
	logger  logging.Logger
	log     *logcollection.OutputLog

	mu       sync.Mutex
	current  *processRun
	state    ProcessState
	lastExit *process.ExitStatus
	lastErr  error
}

func NewManagedProcess(spec process.ProcessSpec, spawner process.Spawner, options ManagedProcessOptions, logger logging.Logger) *ManagedProcess {
	return &ManagedProcess{
		spec:    spec,
		spawner: spawner,
		options: options,
		logger:  logging.WithPrefix(logger, fmt.Sprintf("process: %s , ", spec.Name)),
		log:     logcollection.NewOutputLog(),
		state:   ProcessStateIdle,
	}
}

// Run clears the log and spawns the process with output collection. It
// fails with a conflict error while a previous run is alive and has not
// been killed, and with a spawn error if the process cannot start.
func (p *ManagedProcess) Run() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r := p.current; r != nil && !r.exited && !r.signaled {
		return errors.NewConflictError("process is already running", nil).
			WithContext("name", p.spec.Name).
			WithContext("pid", r.handle.PID())
	}

	p.logger.Infof("Running process, command line: '%s'", p.spec.CommandLine())

	// Reset before spawning so no line of the new run can precede the clear.
	writer := p.log.Reset()

	handle, err := p.spawner.Spawn(p.spec)
	if err != nil {
		p.logger.Errorf("Failed to spawn process, error: %v", err)
		p.current = nil
		p.state = ProcessStateFailedStart
		p.lastExit = nil
		p.lastErr = err
		p.options.Metrics.SpawnFailed(p.spec.Name)
		return err
	}

	collector := logcollection.NewCollector(p.spec.Name, writer, logcollection.CollectorConfig{
		QueueCapacity: p.options.QueueCapacity,
		Outputs:       p.options.Outputs,
		OnLine: func(stream logcollection.StreamType, line string) {
			p.options.Metrics.LineCollected(p.spec.Name, string(stream))
		},
	}, p.logger)

	r := &processRun{
		handle:    handle,
		collector: collector,
		done:      make(chan struct{}),
	}
	p.current = r
	p.state = ProcessStateRunning
	p.lastExit = nil
	p.lastErr = nil

	collector.Start(
		logcollection.Stream{Type: logcollection.StdoutStream, Reader: handle.Stdout()},
		logcollection.Stream{Type: logcollection.StderrStream, Reader: handle.Stderr()},
	)
	go p.waitRun(r)

	p.options.Metrics.ProcessSpawned(p.spec.Name)
	p.logger.Infof("Process is running, pid: %d", handle.PID())
	return nil
}

func (p *ManagedProcess) waitRun(r *processRun) {
	status, err := r.handle.Wait()

	p.mu.Lock()
	r.exited = true
	if p.current == r {
		p.state = ProcessStateExited
		p.lastExit = &status
		if err != nil {
			p.lastErr = err
		}
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Errorf("Failed to wait for process, pid: %d, error: %v", r.handle.PID(), err)
	} else {
		p.logger.Infof("Process exited, pid: %d, %s", r.handle.PID(), status)
	}
	p.options.Metrics.ProcessExited(p.spec.Name, exitOutcome(status))

	// Descendants may hold the pipes open after the leader exits.
	<-r.collector.Done()
	close(r.done)
}

// Kill sends an interrupt to the whole process group. Without a live run
// it only logs a warning and returns nil. A run is interrupted at most
// once; later calls return nil while it shuts down.
func (p *ManagedProcess) Kill() error {
	p.mu.Lock()
	r := p.current
	if r == nil || r.exited {
		p.mu.Unlock()
		p.warnNothingToKill(r)
		return nil
	}
	if r.signaled {
		// A second interrupt makes many programs skip their graceful exit.
		p.mu.Unlock()
		p.logger.Debugf("Process group already interrupted, waiting for exit, pgid: %d", r.handle.PID())
		return nil
	}
	r.signaled = true
	p.state = ProcessStateStopping
	pid := r.handle.PID()
	p.mu.Unlock()

	p.logger.Infof("Interrupting process group, pgid: %d", pid)

	if err := r.handle.TerminateGroup(); err != nil {
		if errors.IsNotFoundError(err) {
			p.logger.Debugf("Process group already gone, pgid: %d", pid)
			return nil
		}
		p.logger.Errorf("Failed to interrupt process group, pgid: %d, error: %v", pid, err)
		p.mu.Lock()
		p.lastErr = err
		// The interrupt never arrived; allow another attempt.
		r.signaled = false
		if p.current == r && !r.exited {
			p.state = ProcessStateRunning
		}
		p.mu.Unlock()
		return err
	}

	p.options.Metrics.KillSent(p.spec.Name)
	return nil
}

func (p *ManagedProcess) warnNothingToKill(r *processRun) {
	if r == nil {
		p.logger.Warnf("Nothing to kill, process is not running")
		return
	}

	pgid := r.handle.PID()
	if alive, _ := processstate.IsGroupRunning(pgid); alive {
		p.logger.Warnf("Group leader already exited but process group %d still has members; "+
			"they are not signalled and may be orphaned", pgid)
		return
	}
	p.logger.Warnf("Nothing to kill, process already exited")
}

// Restart kills the current run, if any, and runs the process again. The
// log is cleared by the new run.
func (p *ManagedProcess) Restart() error {
	p.logger.Infof("Restarting process")

	if err := p.Kill(); err != nil {
		return err
	}
	return p.Run()
}

// Wait blocks until the current run's leader exited and its output has
// been fully collected, or ctx ends. Without a run it returns immediately.
func (p *ManagedProcess) Wait(ctx context.Context) error {
	p.mu.Lock()
	r := p.current
	p.mu.Unlock()

	if r == nil {
		return nil
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return errors.NewCancelledError("stopped waiting for process", ctx.Err()).
			WithContext("name", p.spec.Name)
	}
}

func (p *ManagedProcess) Name() string {
	return p.spec.Name
}

// Snapshot returns a copy of the current output log.
func (p *ManagedProcess) Snapshot() []string {
	return p.log.Snapshot()
}

func (p *ManagedProcess) State() ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastExit returns how the latest run ended, or nil while it is running
// or if it never started.
func (p *ManagedProcess) LastExit() *process.ExitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastExit == nil {
		return nil
	}
	status := *p.lastExit
	return &status
}

func (p *ManagedProcess) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// PID returns the group leader's pid while it is alive, else 0.
func (p *ManagedProcess) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || p.current.exited {
		return 0
	}
	return p.current.handle.PID()
}

// CollectorStatus reports on the current run's output collection.
func (p *ManagedProcess) CollectorStatus() (logcollection.CollectorStatus, bool) {
	p.mu.Lock()
	r := p.current
	p.mu.Unlock()

	if r == nil {
		return logcollection.CollectorStatus{}, false
	}
	return r.collector.Status(), true
}

func exitOutcome(status process.ExitStatus) string {
	switch {
	case status.Signaled:
		return metrics.OutcomeSignaled
	case status.Code == 0:
		return metrics.OutcomeSuccess
	default:
		return metrics.OutcomeFailure
	}
}
