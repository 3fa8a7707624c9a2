package supervisor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/core-tools/hsu-micromanage/pkg/errors"
	"github.com/core-tools/hsu-micromanage/pkg/logging"
	"github.com/core-tools/hsu-micromanage/pkg/process"
	"github.com/core-tools/hsu-micromanage/pkg/process/processtest"
	"github.com/core-tools/hsu-micromanage/pkg/workers"
)

func specs(names ...string) []process.ProcessSpec {
	result := make([]process.ProcessSpec, len(names))
	for i, name := range names {
		result[i] = process.ProcessSpec{Name: name, Command: "echo", Arguments: []string{name}}
	}
	return result
}

func newTestSupervisor(spawner process.Spawner, names ...string) *Supervisor {
	return New(specs(names...), spawner, Options{}, logging.NewNopLogger())
}

func selection(s *Supervisor) interface{} {
	index, ok := s.Selected()
	if !ok {
		return nil
	}
	return index
}

func TestSupervisor_NextTraversesCircularly(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("len_%d", n), func(t *testing.T) {
			names := make([]string, n)
			for i := range names {
				names[i] = fmt.Sprintf("p%d", i)
			}
			s := newTestSupervisor(&processtest.MockSpawner{}, names...)
			assert.Nil(t, selection(s))

			visited := make(map[int]bool)
			for i := 0; i < n; i++ {
				s.Next()
				index, ok := s.Selected()
				require.True(t, ok)
				assert.Equal(t, i, index)
				visited[index] = true
			}
			assert.Len(t, visited, n)

			s.Next()
			assert.Equal(t, 0, selection(s), "wraps back to the first")
		})
	}
}

func TestSupervisor_PreviousWraps(t *testing.T) {
	s := newTestSupervisor(&processtest.MockSpawner{}, "p0", "p1", "p2")

	s.Previous()
	assert.Equal(t, 2, selection(s))

	s.Next()
	assert.Equal(t, 0, selection(s))

	s.Previous()
	assert.Equal(t, 2, selection(s))

	s.Previous()
	assert.Equal(t, 1, selection(s))
}

func TestSupervisor_Unselect(t *testing.T) {
	s := newTestSupervisor(&processtest.MockSpawner{}, "p0", "p1")

	s.Next()
	s.Next()
	assert.Equal(t, 1, selection(s))

	s.Unselect()
	assert.Nil(t, selection(s))

	snapshot, ok := s.SelectedSnapshot()
	assert.False(t, ok)
	assert.Nil(t, snapshot)

	s.Next()
	assert.Equal(t, 0, selection(s))
}

func TestSupervisor_EmptyListNavigationIsNoop(t *testing.T) {
	s := newTestSupervisor(&processtest.MockSpawner{})

	assert.NotPanics(t, func() {
		s.Next()
		s.Previous()
		s.Next()
		s.Unselect()
		s.Previous()
	})
	assert.Nil(t, selection(s))
	assert.Empty(t, s.Names())
	assert.NoError(t, s.RunAll())
	assert.NoError(t, s.KillAll())
}

func TestSupervisor_IndexErrors(t *testing.T) {
	spawner := &processtest.MockSpawner{}
	s := newTestSupervisor(spawner, "p0", "p1")

	for _, index := range []int{-1, 2, 100} {
		for name, op := range map[string]func(int) error{
			"run":     s.Run,
			"kill":    s.Kill,
			"restart": s.Restart,
		} {
			err := op(index)
			require.Error(t, err, "%s(%d)", name, index)
			assert.True(t, errors.IsIndexError(err), "%s(%d)", name, index)
			assert.False(t, errors.IsSpawnError(err))
		}
	}

	_, err := s.Process(2)
	assert.True(t, errors.IsIndexError(err))
	spawner.AssertNotCalled(t, "Spawn", mock.Anything)
}

func TestSupervisor_RunAllSpawnsEachProcessOnce(t *testing.T) {
	names := []string{"p0", "p1", "p2", "p3"}
	spawner := &processtest.MockSpawner{}
	handles := make([]*processtest.FakeHandle, len(names))
	for i, name := range names {
		handles[i] = processtest.NewFakeHandle(1000 + i)
		spawner.On("Spawn", processtest.SpecNamed(name)).Return(handles[i], nil).Once()
	}

	s := newTestSupervisor(spawner, names...)
	require.NoError(t, s.RunAll())

	spawner.AssertNumberOfCalls(t, "Spawn", len(names))
	for _, name := range names {
		spawner.AssertCalled(t, "Spawn", processtest.SpecNamed(name))
	}
	for _, state := range s.States() {
		assert.Equal(t, workers.ProcessStateRunning, state)
	}

	require.NoError(t, s.KillAll())
	require.NoError(t, s.WaitAll(context.Background()))
}

func TestSupervisor_RunAllIsolatesSpawnFailure(t *testing.T) {
	good0 := processtest.NewFakeHandle(2000)
	good2 := processtest.NewFakeHandle(2002)

	spawner := &processtest.MockSpawner{}
	spawner.On("Spawn", processtest.SpecNamed("p0")).Return(good0, nil).Once()
	spawner.On("Spawn", processtest.SpecNamed("p1")).
		Return(nil, errors.NewSpawnError("failed to start the process", nil).WithContext("name", "p1")).Once()
	spawner.On("Spawn", processtest.SpecNamed("p2")).Return(good2, nil).Once()

	s := newTestSupervisor(spawner, "p0", "p1", "p2")

	err := s.RunAll()
	require.Error(t, err)
	assert.True(t, errors.IsSpawnError(err))

	assert.Equal(t, []workers.ProcessState{
		workers.ProcessStateRunning,
		workers.ProcessStateFailedStart,
		workers.ProcessStateRunning,
	}, s.States())

	good2.WriteStdout("still alive")
	require.Eventually(t, func() bool {
		p, _ := s.Process(2)
		return len(p.Snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.KillAll())
}

func TestSupervisor_KillAllTwiceNeverFails(t *testing.T) {
	h0 := processtest.NewFakeHandle(3000)
	h1 := processtest.NewFakeHandle(3001)

	spawner := &processtest.MockSpawner{}
	spawner.On("Spawn", processtest.SpecNamed("p0")).Return(h0, nil).Once()
	spawner.On("Spawn", processtest.SpecNamed("p1")).Return(h1, nil).Once()

	s := newTestSupervisor(spawner, "p0", "p1")
	require.NoError(t, s.RunAll())

	// p1 exits on its own before the first KillAll.
	h1.Exit(process.ExitStatus{Code: 0})
	require.Eventually(t, func() bool {
		return s.States()[1] == workers.ProcessStateExited
	}, time.Second, 5*time.Millisecond)

	assert.NoError(t, s.KillAll())
	require.NoError(t, s.WaitAll(context.Background()))
	assert.NoError(t, s.KillAll())

	assert.Equal(t, 1, h0.TerminateCalls())
	assert.Equal(t, 0, h1.TerminateCalls())
}

func TestSupervisor_KillAllTwiceWhileStoppingInterruptsOnce(t *testing.T) {
	h0 := processtest.NewFakeHandle(3050)
	h0.SetIgnoreInterrupt(true)
	spawner := &processtest.MockSpawner{}
	spawner.On("Spawn", processtest.SpecNamed("p0")).Return(h0, nil).Once()

	s := newTestSupervisor(spawner, "p0")
	require.NoError(t, s.RunAll())

	assert.NoError(t, s.KillAll())
	assert.NoError(t, s.KillAll())
	assert.Equal(t, 1, h0.TerminateCalls())
	assert.Equal(t, workers.ProcessStateStopping, s.States()[0])

	h0.Exit(process.ExitStatus{Code: 130, Signaled: true, Signal: "interrupt"})
	require.NoError(t, s.WaitAll(context.Background()))
}

func TestSupervisor_KillAllCollectsRealFailures(t *testing.T) {
	h0 := processtest.NewFakeHandle(3100)
	h0.SetTerminateError(errors.NewPermissionError("not allowed to signal process group", nil))
	spawner := &processtest.MockSpawner{}
	spawner.On("Spawn", processtest.SpecNamed("p0")).Return(h0, nil).Once()

	s := newTestSupervisor(spawner, "p0")
	require.NoError(t, s.RunAll())

	err := s.KillAll()
	require.Error(t, err)
	assert.True(t, errors.IsPermissionError(err))

	h0.Exit(process.ExitStatus{})
}

func TestSupervisor_KillBeforeRun(t *testing.T) {
	spawner := &processtest.MockSpawner{}
	s := newTestSupervisor(spawner, "p0")

	assert.NoError(t, s.Kill(0))

	p, err := s.Process(0)
	require.NoError(t, err)
	assert.Equal(t, 0, p.PID())
	assert.Equal(t, workers.ProcessStateIdle, p.State())
}

func TestSupervisor_RestartShowsOnlyNewOutput(t *testing.T) {
	first := processtest.NewFakeHandle(4000)
	second := processtest.NewFakeHandle(4001)
	spawner := &processtest.MockSpawner{}
	spawner.On("Spawn", processtest.SpecNamed("p0")).Return(first, nil).Once()
	spawner.On("Spawn", processtest.SpecNamed("p0")).Return(second, nil).Once()

	s := newTestSupervisor(spawner, "p0")
	s.Next()

	require.NoError(t, s.Run(0))
	first.WriteStdout("before restart")
	require.Eventually(t, func() bool {
		lines, _ := s.SelectedSnapshot()
		return len(lines) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Restart(0))
	lines, ok := s.SelectedSnapshot()
	require.True(t, ok)
	assert.Empty(t, lines)

	second.WriteStdout("after restart")
	require.Eventually(t, func() bool {
		lines, _ := s.SelectedSnapshot()
		return len(lines) == 1 && lines[0] == "after restart"
	}, time.Second, 5*time.Millisecond)

	second.Exit(process.ExitStatus{})
}

func TestSupervisor_NamesAndDescribe(t *testing.T) {
	h0 := processtest.NewFakeHandle(5000)
	spawner := &processtest.MockSpawner{}
	spawner.On("Spawn", processtest.SpecNamed("web")).Return(h0, nil).Once()

	s := newTestSupervisor(spawner, "web", "db")
	assert.Equal(t, []string{"web", "db"}, s.Names())
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Run(0))
	h0.WriteStdout("listening", "ok")
	h0.Exit(process.ExitStatus{Code: 2})
	require.NoError(t, s.WaitAll(context.Background()))

	assert.Equal(t, []string{"web: exited (exit code 2), lines: 2, bytes: 11", "db: idle"}, s.Describe())
}

func TestRunHeadless_ReturnsWhenAllExited(t *testing.T) {
	h0 := processtest.NewFakeHandle(6000)
	spawner := &processtest.MockSpawner{}
	spawner.On("Spawn", processtest.SpecNamed("p0")).Return(h0, nil).Once()

	s := newTestSupervisor(spawner, "p0")

	done := make(chan error, 1)
	go func() {
		done <- RunHeadless(context.Background(), s, RunnerOptions{ShutdownTimeout: time.Second}, logging.NewNopLogger())
	}()

	require.Eventually(t, func() bool {
		return s.States()[0] == workers.ProcessStateRunning
	}, time.Second, 5*time.Millisecond)
	h0.Exit(process.ExitStatus{})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("headless runner did not return")
	}
	assert.Equal(t, 0, h0.TerminateCalls())
}

func TestRunHeadless_ContextCancelKillsProcesses(t *testing.T) {
	h0 := processtest.NewFakeHandle(6100)
	spawner := &processtest.MockSpawner{}
	spawner.On("Spawn", processtest.SpecNamed("p0")).Return(h0, nil).Once()

	s := newTestSupervisor(spawner, "p0")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := RunHeadless(ctx, s, RunnerOptions{ShutdownTimeout: time.Second}, logging.NewNopLogger())
	assert.NoError(t, err)
	assert.Equal(t, 1, h0.TerminateCalls())
	assert.Equal(t, workers.ProcessStateExited, s.States()[0])
}

func TestRunHeadless_ShutdownTimeoutIsBounded(t *testing.T) {
	h0 := processtest.NewFakeHandle(6200)
	h0.SetIgnoreInterrupt(true)
	spawner := &processtest.MockSpawner{}
	spawner.On("Spawn", processtest.SpecNamed("p0")).Return(h0, nil).Once()

	s := newTestSupervisor(spawner, "p0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := RunHeadless(ctx, s, RunnerOptions{ShutdownTimeout: 100 * time.Millisecond}, logging.NewNopLogger())
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, workers.ProcessStateStopping, s.States()[0])

	h0.Exit(process.ExitStatus{})
}
