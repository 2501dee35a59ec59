package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/exploopio/depaudit/pkg/errors"
)

// =============================================================================
// Prometheus Collector
// =============================================================================

// PrometheusCollector implements Collector on a Prometheus registry. A scan
// is a short-lived process, so the registry is usually exported with
// WriteTextfile for node-exporter's textfile collector rather than scraped.
type PrometheusCollector struct {
	mu sync.RWMutex

	registry *prometheus.Registry

	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec

	// ConstLabels are attached to every metric (e.g. project="g:a")
	constLabels prometheus.Labels
}

// PrometheusConfig configures the Prometheus collector.
type PrometheusConfig struct {
	// Registry to use (nil = new registry)
	Registry *prometheus.Registry

	// ConstLabels are attached to every registered metric
	ConstLabels map[string]string

	// RuntimeMetrics registers the Go runtime and process collectors
	RuntimeMetrics bool
}

// NewPrometheusCollector creates a collector with every depaudit metric
// registered.
func NewPrometheusCollector(cfg *PrometheusConfig) (*PrometheusCollector, error) {
	if cfg == nil {
		cfg = &PrometheusConfig{}
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.RuntimeMetrics {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	c := &PrometheusCollector{
		registry:    registry,
		counters:    make(map[string]*prometheus.CounterVec),
		gauges:      make(map[string]*prometheus.GaugeVec),
		histograms:  make(map[string]*prometheus.HistogramVec),
		constLabels: cfg.ConstLabels,
	}

	for _, def := range Definitions() {
		if err := c.Register(def); err != nil {
			return nil, errors.E(errors.KindInternal, "metrics.NewPrometheusCollector", "register "+def.Name, err)
		}
	}
	return c, nil
}

// Register registers a metric by its definition. Registering a name twice
// is a no-op.
func (c *PrometheusCollector) Register(def MetricDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch def.Type {
	case MetricTypeCounter:
		if _, exists := c.counters[def.Name]; exists {
			return nil
		}
		v := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        def.Name,
			Help:        def.Help,
			ConstLabels: c.constLabels,
		}, def.Labels)
		if err := c.registry.Register(v); err != nil {
			return err
		}
		c.counters[def.Name] = v

	case MetricTypeGauge:
		if _, exists := c.gauges[def.Name]; exists {
			return nil
		}
		v := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        def.Name,
			Help:        def.Help,
			ConstLabels: c.constLabels,
		}, def.Labels)
		if err := c.registry.Register(v); err != nil {
			return err
		}
		c.gauges[def.Name] = v

	case MetricTypeHistogram:
		if _, exists := c.histograms[def.Name]; exists {
			return nil
		}
		buckets := def.Buckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		v := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        def.Name,
			Help:        def.Help,
			ConstLabels: c.constLabels,
			Buckets:     buckets,
		}, def.Labels)
		if err := c.registry.Register(v); err != nil {
			return err
		}
		c.histograms[def.Name] = v

	default:
		return errors.E(errors.KindInvalidInput, "metrics.Register", "unknown metric type "+string(def.Type))
	}
	return nil
}

// =============================================================================
// Collector Interface Implementation
// =============================================================================

func (c *PrometheusCollector) CounterInc(name string, labels ...string) {
	c.CounterAdd(name, 1, labels...)
}

func (c *PrometheusCollector) CounterAdd(name string, value float64, labels ...string) {
	c.mu.RLock()
	counter, ok := c.counters[name]
	c.mu.RUnlock()

	if !ok {
		return // Metric not registered
	}
	counter.WithLabelValues(labelsToValues(labels)...).Add(value)
}

func (c *PrometheusCollector) GaugeSet(name string, value float64, labels ...string) {
	c.mu.RLock()
	gauge, ok := c.gauges[name]
	c.mu.RUnlock()

	if !ok {
		return // Metric not registered
	}
	gauge.WithLabelValues(labelsToValues(labels)...).Set(value)
}

func (c *PrometheusCollector) HistogramObserve(name string, value float64, labels ...string) {
	c.mu.RLock()
	histogram, ok := c.histograms[name]
	c.mu.RUnlock()

	if !ok {
		return // Metric not registered
	}
	histogram.WithLabelValues(labelsToValues(labels)...).Observe(value)
}

// Handler serves the registry in the Prometheus exposition format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry to path in the text exposition format.
// The file is written atomically, as node-exporter's textfile collector
// requires.
func (c *PrometheusCollector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return errors.E(errors.KindInternal, "metrics.WriteTextfile", err)
	}
	return nil
}

// Registry returns the underlying Prometheus registry.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// =============================================================================
// Helper Functions
// =============================================================================

// labelsToValues converts label pairs to values only.
// Input: ["label1", "value1", "label2", "value2"]
// Output: ["value1", "value2"]
func labelsToValues(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}

	values := make([]string, 0, len(labels)/2)
	for i := 1; i < len(labels); i += 2 {
		values = append(values, labels[i])
	}
	return values
}

var _ Collector = (*PrometheusCollector)(nil)
