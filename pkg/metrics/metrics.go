// Package metrics exposes process lifecycle and output counters for
// Prometheus.
//
// Every method is safe on a nil *Metrics, so callers that run without
// metrics can pass nil instead of branching.
package metrics

import (
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "micromanage"

// Exit outcomes used as the "outcome" label of the exits counter.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeSignaled = "signaled"
)

type Metrics struct {
	registry *prometheus.Registry

	spawns        *prometheus.CounterVec
	spawnFailures *prometheus.CounterVec
	kills         *prometheus.CounterVec
	exits         *prometheus.CounterVec
	lines         *prometheus.CounterVec
	running       *prometheus.GaugeVec
}

// New creates metrics on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(registry)
}

// NewWithRegistry registers the micromanage collectors on registry only.
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		spawns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "spawns_total",
				Help:      "Processes started successfully",
			},
			[]string{"process"},
		),
		spawnFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "spawn_failures_total",
				Help:      "Process start attempts that failed",
			},
			[]string{"process"},
		),
		kills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kills_total",
				Help:      "Interrupts sent to process groups",
			},
			[]string{"process"},
		),
		exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exits_total",
				Help:      "Process group leader exits by outcome",
			},
			[]string{"process", "outcome"},
		),
		lines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "output_lines_total",
				Help:      "Output lines appended to process logs",
			},
			[]string{"process", "stream"},
		),
		running: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "running",
				Help:      "1 while the process is running, else 0",
			},
			[]string{"process"},
		),
	}

	registry.MustRegister(m.spawns, m.spawnFailures, m.kills, m.exits, m.lines, m.running)
	return m
}

// Registry returns the registry backing these metrics, or nil.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ProcessSpawned(process string) {
	if m == nil {
		return
	}
	m.spawns.WithLabelValues(process).Inc()
	m.running.WithLabelValues(process).Set(1)
}

func (m *Metrics) SpawnFailed(process string) {
	if m == nil {
		return
	}
	m.spawnFailures.WithLabelValues(process).Inc()
	m.running.WithLabelValues(process).Set(0)
}

func (m *Metrics) KillSent(process string) {
	if m == nil {
		return
	}
	m.kills.WithLabelValues(process).Inc()
}

func (m *Metrics) ProcessExited(process, outcome string) {
	if m == nil {
		return
	}
	m.exits.WithLabelValues(process, outcome).Inc()
	m.running.WithLabelValues(process).Set(0)
}

func (m *Metrics) LineCollected(process, stream string) {
	if m == nil {
		return
	}
	m.lines.WithLabelValues(process, stream).Inc()
}

// Summary sums every micromanage_* metric across its labels, keyed by
// metric name without the namespace. Used for the shutdown report.
func (m *Metrics) Summary() (map[string]float64, error) {
	if m == nil {
		return map[string]float64{}, nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	summary := make(map[string]float64)
	for _, family := range families {
		name := family.GetName()
		if !strings.HasPrefix(name, namespace+"_") {
			continue
		}
		key := strings.TrimPrefix(name, namespace+"_")
		for _, metric := range family.GetMetric() {
			summary[key] += metricValue(family.GetType(), metric)
		}
	}
	return summary, nil
}

// FormatSummary renders a summary as "k=v" pairs in key order.
func FormatSummary(summary map[string]float64) string {
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strconv.FormatFloat(summary[k], 'f', -1, 64))
	}
	return strings.Join(parts, " ")
}

func metricValue(metricType dto.MetricType, metric *dto.Metric) float64 {
	switch metricType {
	case dto.MetricType_COUNTER:
		return metric.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return metric.GetGauge().GetValue()
	default:
		return 0
	}
}
