package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/core-tools/hsu-micromanage/pkg/errors"
	"github.com/core-tools/hsu-micromanage/pkg/logcollection"
	"github.com/core-tools/hsu-micromanage/pkg/logging"
	"github.com/core-tools/hsu-micromanage/pkg/metrics"
	"github.com/core-tools/hsu-micromanage/pkg/process"
	"github.com/core-tools/hsu-micromanage/pkg/workers"
)

type Options struct {
	QueueCapacity int
	Outputs       []logcollection.OutputWriter
	Metrics       *metrics.Metrics
}

// Supervisor owns an ordered, fixed set of managed processes and a
// selection cursor over them. It is the control surface for the UI.
//
// The process list never changes after New, so it is read without
// locking; mu guards only the selection.
type Supervisor struct {
	processes []*workers.ManagedProcess
	logger    logging.Logger

	mu           sync.Mutex
	selection    int
	hasSelection bool
}

// New builds one ManagedProcess per spec, in order. Nothing is started.
func New(specs []process.ProcessSpec, spawner process.Spawner, options Options, logger logging.Logger) *Supervisor {
	processes := make([]*workers.ManagedProcess, 0, len(specs))
	for _, spec := range specs {
		processes = append(processes, workers.NewManagedProcess(spec, spawner, workers.ManagedProcessOptions{
			QueueCapacity: options.QueueCapacity,
			Outputs:       options.Outputs,
			Metrics:       options.Metrics,
		}, logger))
	}

	return &Supervisor{
		processes: processes,
		logger:    logger,
	}
}

func (s *Supervisor) Len() int {
	return len(s.processes)
}

// RunAll runs every process in configuration order. A failing process
// does not stop the others; all failures are returned together.
func (s *Supervisor) RunAll() error {
	s.logger.Infof("Running all processes, count: %d", len(s.processes))

	collection := errors.NewErrorCollection()
	for _, p := range s.processes {
		if err := p.Run(); err != nil {
			s.logger.Errorf("Failed to run process %s: %v", p.Name(), err)
			collection.Add(err)
		}
	}
	return collection.ToError()
}

// KillAll interrupts every running process. Processes that are not
// running are skipped silently; calling it repeatedly is safe.
func (s *Supervisor) KillAll() error {
	s.logger.Infof("Killing all processes")

	collection := errors.NewErrorCollection()
	for _, p := range s.processes {
		if err := p.Kill(); err != nil {
			collection.Add(err)
		}
	}
	return collection.ToError()
}

func (s *Supervisor) Run(index int) error {
	p, err := s.Process(index)
	if err != nil {
		return err
	}
	return p.Run()
}

func (s *Supervisor) Kill(index int) error {
	p, err := s.Process(index)
	if err != nil {
		return err
	}
	return p.Kill()
}

func (s *Supervisor) Restart(index int) error {
	p, err := s.Process(index)
	if err != nil {
		return err
	}
	return p.Restart()
}

// Process returns the process at index, or an index error.
func (s *Supervisor) Process(index int) (*workers.ManagedProcess, error) {
	if index < 0 || index >= len(s.processes) {
		return nil, errors.NewIndexError(index, len(s.processes))
	}
	return s.processes[index], nil
}

// Next moves the selection forward, wrapping to the first process. With
// no selection it selects the first; with no processes it does nothing.
func (s *Supervisor) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.processes)
	if n == 0 {
		return
	}
	if !s.hasSelection {
		s.selection, s.hasSelection = 0, true
		return
	}
	s.selection = (s.selection + 1) % n
}

// Previous moves the selection back, wrapping to the last process. With
// no selection it selects the last; with no processes it does nothing.
func (s *Supervisor) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.processes)
	if n == 0 {
		return
	}
	if !s.hasSelection {
		s.selection, s.hasSelection = n-1, true
		return
	}
	s.selection = (s.selection - 1 + n) % n
}

func (s *Supervisor) Unselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection, s.hasSelection = 0, false
}

// Selected returns the selected index, if any.
func (s *Supervisor) Selected() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection, s.hasSelection
}

// Names returns the process names in configuration order.
func (s *Supervisor) Names() []string {
	names := make([]string, len(s.processes))
	for i, p := range s.processes {
		names[i] = p.Name()
	}
	return names
}

// SelectedSnapshot returns a copy of the selected process's log.
func (s *Supervisor) SelectedSnapshot() ([]string, bool) {
	index, ok := s.Selected()
	if !ok {
		return nil, false
	}
	return s.processes[index].Snapshot(), true
}

func (s *Supervisor) States() []workers.ProcessState {
	states := make([]workers.ProcessState, len(s.processes))
	for i, p := range s.processes {
		states[i] = p.State()
	}
	return states
}

// WaitAll waits until every started process exited and its output was
// collected, or ctx ends.
func (s *Supervisor) WaitAll(ctx context.Context) error {
	for _, p := range s.processes {
		if err := p.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Describe renders one line per process, used for the shutdown report.
func (s *Supervisor) Describe() []string {
	lines := make([]string, len(s.processes))
	for i, p := range s.processes {
		line := fmt.Sprintf("%s: %s", p.Name(), p.State())
		if exit := p.LastExit(); exit != nil {
			line += fmt.Sprintf(" (%s)", exit)
		}
		if status, ok := p.CollectorStatus(); ok {
			line += fmt.Sprintf(", lines: %d, bytes: %d", status.LinesProcessed, status.BytesProcessed)
		}
		if err := p.LastError(); err != nil {
			line += fmt.Sprintf(" error: %v", err)
		}
		lines[i] = line
	}
	return lines
}
