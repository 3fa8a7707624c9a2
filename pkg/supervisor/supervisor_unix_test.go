//go:build !windows

package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-tools/hsu-micromanage/pkg/errors"
	"github.com/core-tools/hsu-micromanage/pkg/logging"
	"github.com/core-tools/hsu-micromanage/pkg/process"
	"github.com/core-tools/hsu-micromanage/pkg/workers"
)

func newRealSupervisor(specs ...process.ProcessSpec) *Supervisor {
	logger := logging.NewNopLogger()
	return New(specs, process.NewExecSpawner(logger), Options{}, logger)
}

func waitAll(t *testing.T, s *Supervisor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.WaitAll(ctx))
}

func snapshot(t *testing.T, s *Supervisor, index int) []string {
	t.Helper()
	p, err := s.Process(index)
	require.NoError(t, err)
	return p.Snapshot()
}

func TestRealProcess_EchoHello(t *testing.T) {
	s := newRealSupervisor(process.ProcessSpec{Name: "echo1", Command: "echo", Arguments: []string{"hello"}})

	require.NoError(t, s.RunAll())
	waitAll(t, s)

	assert.Equal(t, []string{"hello"}, snapshot(t, s, 0))

	p, _ := s.Process(0)
	require.NotNil(t, p.LastExit())
	assert.True(t, p.LastExit().Success())
}

func TestRealProcess_SameStreamOrdering(t *testing.T) {
	s := newRealSupervisor(process.ProcessSpec{
		Name:      "ab",
		Command:   "/bin/sh",
		Arguments: []string{"-c", "echo A; sleep 0.05; echo B"},
	})

	require.NoError(t, s.RunAll())
	waitAll(t, s)

	assert.Equal(t, []string{"A", "B"}, snapshot(t, s, 0))
}

func TestRealProcess_StdoutAndStderrAreCaptured(t *testing.T) {
	s := newRealSupervisor(process.ProcessSpec{
		Name:      "both",
		Command:   "/bin/sh",
		Arguments: []string{"-c", "echo to-out; echo to-err 1>&2"},
	})

	require.NoError(t, s.RunAll())
	waitAll(t, s)

	assert.ElementsMatch(t, []string{"to-out", "to-err"}, snapshot(t, s, 0))
}

func TestRealProcess_RestartClearsOldOutput(t *testing.T) {
	s := newRealSupervisor(process.ProcessSpec{
		Name:      "counter",
		Command:   "/bin/sh",
		Arguments: []string{"-c", "echo started $$; sleep 30"},
	})

	require.NoError(t, s.Run(0))
	require.Eventually(t, func() bool {
		return len(snapshot(t, s, 0)) == 1
	}, 5*time.Second, 10*time.Millisecond)
	before := snapshot(t, s, 0)[0]

	require.NoError(t, s.Restart(0))
	require.Eventually(t, func() bool {
		lines := snapshot(t, s, 0)
		return len(lines) == 1 && lines[0] != before
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.KillAll())
	waitAll(t, s)

	for _, line := range snapshot(t, s, 0) {
		assert.NotEqual(t, before, line)
	}
}

func TestRealProcess_MissingExecutableIsIsolated(t *testing.T) {
	s := newRealSupervisor(
		process.ProcessSpec{Name: "ghost", Command: "/definitely/not/here"},
		process.ProcessSpec{Name: "echo1", Command: "echo", Arguments: []string{"hello"}},
	)

	err := s.RunAll()
	require.Error(t, err)
	assert.True(t, errors.IsSpawnError(err))

	waitAll(t, s)
	assert.Equal(t, workers.ProcessStateFailedStart, s.States()[0])
	assert.Equal(t, []string{"hello"}, snapshot(t, s, 1))
}

func TestRealProcess_KillAllTwiceAfterExit(t *testing.T) {
	s := newRealSupervisor(
		process.ProcessSpec{Name: "quick", Command: "/bin/sh", Arguments: []string{"-c", "true"}},
		process.ProcessSpec{Name: "slow", Command: "/bin/sh", Arguments: []string{"-c", "sleep 30"}},
	)

	require.NoError(t, s.RunAll())
	require.Eventually(t, func() bool {
		return s.States()[0] == workers.ProcessStateExited
	}, 5*time.Second, 10*time.Millisecond)

	assert.NoError(t, s.KillAll())
	waitAll(t, s)
	assert.NoError(t, s.KillAll())

	p, _ := s.Process(1)
	require.NotNil(t, p.LastExit())
	assert.True(t, p.LastExit().Signaled)
}
