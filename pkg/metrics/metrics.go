// Package metrics records scan and transfer metrics. Collectors are
// in-memory (tests), Prometheus-backed (textfile export), or no-op.
package metrics

import (
	"sync"
	"time"
)

// =============================================================================
// Metrics Interface
// =============================================================================

// Collector is the interface for collecting metrics. Labels are passed as
// name/value pairs: "status", "201".
type Collector interface {
	CounterInc(name string, labels ...string)
	CounterAdd(name string, value float64, labels ...string)

	GaugeSet(name string, value float64, labels ...string)

	HistogramObserve(name string, value float64, labels ...string)
}

// =============================================================================
// Metric Types
// =============================================================================

// MetricType represents the type of metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// MetricDefinition defines a metric with its metadata.
type MetricDefinition struct {
	Name    string     `json:"name"`
	Type    MetricType `json:"type"`
	Help    string     `json:"help"`
	Labels  []string   `json:"labels,omitempty"`
	Buckets []float64  `json:"buckets,omitempty"` // For histograms
}

// =============================================================================
// depaudit metrics
// =============================================================================

var (
	ComponentsMapped = MetricDefinition{
		Name: "depaudit_components_mapped_total",
		Type: MetricTypeCounter,
		Help: "Components added to the report",
	}
	ComponentsUnmatched = MetricDefinition{
		Name: "depaudit_components_unmatched_total",
		Type: MetricTypeCounter,
		Help: "Graph nodes dropped because no license entry matched",
	}
	ChecksumFailures = MetricDefinition{
		Name:   "depaudit_checksum_failures_total",
		Type:   MetricTypeCounter,
		Help:   "Components reported without checksum",
		Labels: []string{"reason"},
	}
	ComponentsReported = MetricDefinition{
		Name: "depaudit_components_reported",
		Type: MetricTypeGauge,
		Help: "Components in the last transferred report",
	}
	TransfersTotal = MetricDefinition{
		Name:   "depaudit_transfers_total",
		Type:   MetricTypeCounter,
		Help:   "Report transfers to the evaluation service",
		Labels: []string{"status"},
	}
	TransferDuration = MetricDefinition{
		Name:    "depaudit_transfer_duration_seconds",
		Type:    MetricTypeHistogram,
		Help:    "Duration of report transfers in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}
	ScanDuration = MetricDefinition{
		Name:    "depaudit_scan_duration_seconds",
		Type:    MetricTypeHistogram,
		Help:    "Duration of a full scan in seconds",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
	}
)

// Definitions lists every depaudit metric.
func Definitions() []MetricDefinition {
	return []MetricDefinition{
		ComponentsMapped,
		ComponentsUnmatched,
		ChecksumFailures,
		ComponentsReported,
		TransfersTotal,
		TransferDuration,
		ScanDuration,
	}
}

// =============================================================================
// NopCollector - No-operation implementation
// =============================================================================

// NopCollector discards all metrics.
type NopCollector struct{}

func (c *NopCollector) CounterInc(name string, labels ...string)                      {}
func (c *NopCollector) CounterAdd(name string, value float64, labels ...string)       {}
func (c *NopCollector) GaugeSet(name string, value float64, labels ...string)         {}
func (c *NopCollector) HistogramObserve(name string, value float64, labels ...string) {}

// OrNop returns c, or a NopCollector when c is nil.
func OrNop(c Collector) Collector {
	if c == nil {
		return &NopCollector{}
	}
	return c
}

// =============================================================================
// InMemoryCollector - Simple in-memory implementation for testing
// =============================================================================

// InMemoryCollector stores metrics in memory.
type InMemoryCollector struct {
	mu         sync.RWMutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewInMemoryCollector creates a new in-memory metrics collector.
func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (c *InMemoryCollector) key(name string, labels []string) string {
	key := name
	for i := 0; i+1 < len(labels); i += 2 {
		key += "," + labels[i] + "=" + labels[i+1]
	}
	return key
}

func (c *InMemoryCollector) CounterInc(name string, labels ...string) {
	c.CounterAdd(name, 1, labels...)
}

func (c *InMemoryCollector) CounterAdd(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[c.key(name, labels)] += value
}

func (c *InMemoryCollector) GaugeSet(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[c.key(name, labels)] = value
}

func (c *InMemoryCollector) HistogramObserve(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(name, labels)
	c.histograms[key] = append(c.histograms[key], value)
}

// GetCounter returns the value of a counter.
func (c *InMemoryCollector) GetCounter(name string, labels ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[c.key(name, labels)]
}

// GetGauge returns the value of a gauge.
func (c *InMemoryCollector) GetGauge(name string, labels ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gauges[c.key(name, labels)]
}

// GetHistogram returns all observations of a histogram.
func (c *InMemoryCollector) GetHistogram(name string, labels ...string) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]float64(nil), c.histograms[c.key(name, labels)]...)
}

// =============================================================================
// Timer - Helper for timing operations
// =============================================================================

// Timer records the time since its creation into a histogram.
type Timer struct {
	start     time.Time
	collector Collector
	name      string
	labels    []string
}

// NewTimer starts a timer for the given histogram.
func NewTimer(collector Collector, name string, labels ...string) *Timer {
	return &Timer{
		start:     time.Now(),
		collector: OrNop(collector),
		name:      name,
		labels:    labels,
	}
}

// ObserveDuration records the duration since the timer was created.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	t.collector.HistogramObserve(t.name, d.Seconds(), t.labels...)
	return d
}

var (
	_ Collector = (*NopCollector)(nil)
	_ Collector = (*InMemoryCollector)(nil)
)
