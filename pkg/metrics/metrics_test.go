package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-tools/hsu-micromanage/pkg/logging"
)

func newTestMetrics() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

func TestMetrics_Summary(t *testing.T) {
	m := newTestMetrics()

	m.ProcessSpawned("web")
	m.ProcessSpawned("db")
	m.SpawnFailed("ghost")
	m.KillSent("web")
	m.ProcessExited("web", OutcomeSignaled)
	m.LineCollected("db", "stdout")
	m.LineCollected("db", "stdout")
	m.LineCollected("db", "stderr")

	summary, err := m.Summary()
	require.NoError(t, err)

	assert.Equal(t, 2.0, summary["spawns_total"])
	assert.Equal(t, 1.0, summary["spawn_failures_total"])
	assert.Equal(t, 1.0, summary["kills_total"])
	assert.Equal(t, 1.0, summary["exits_total"])
	assert.Equal(t, 3.0, summary["output_lines_total"])
	// db still running, web exited, ghost never started.
	assert.Equal(t, 1.0, summary["running"])
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ProcessSpawned("a")
		m.SpawnFailed("a")
		m.KillSent("a")
		m.ProcessExited("a", OutcomeSuccess)
		m.LineCollected("a", "stdout")
	})
	assert.Nil(t, m.Registry())

	summary, err := m.Summary()
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestFormatSummary(t *testing.T) {
	out := FormatSummary(map[string]float64{"spawns_total": 3, "kills_total": 1, "running": 0.5})
	assert.Equal(t, "kills_total=1 running=0.5 spawns_total=3", out)
}

func TestServer_ServesMetricsAndHealth(t *testing.T) {
	m := newTestMetrics()
	m.ProcessSpawned("web")

	server := NewServer("127.0.0.1:0", m.Registry(), logging.NewNopLogger())
	require.NoError(t, server.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	base := "http://" + server.Addr()

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `micromanage_spawns_total{process="web"} 1`)

	resp, err = http.Get(base + "/health")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok\n", string(body))
}

func TestServer_BindFailure(t *testing.T) {
	first := NewServer("127.0.0.1:0", prometheus.NewRegistry(), logging.NewNopLogger())
	require.NoError(t, first.Start())
	defer first.Shutdown(context.Background())

	second := NewServer(first.Addr(), prometheus.NewRegistry(), logging.NewNopLogger())
	assert.Error(t, second.Start())
}
