package metrics

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestInMemoryCollector(t *testing.T) {
	c := NewInMemoryCollector()

	t.Run("Counter", func(t *testing.T) {
		c.CounterInc(ChecksumFailures.Name, "reason", "no_backing_file")
		c.CounterInc(ChecksumFailures.Name, "reason", "no_backing_file")
		c.CounterAdd(ChecksumFailures.Name, 5, "reason", "no_backing_file")

		got := c.GetCounter(ChecksumFailures.Name, "reason", "no_backing_file")
		if got != 7 {
			t.Errorf("Counter = %v, want %v", got, 7)
		}
		if other := c.GetCounter(ChecksumFailures.Name, "reason", "unavailable"); other != 0 {
			t.Errorf("Counter with other label = %v, want 0", other)
		}
	})

	t.Run("Gauge", func(t *testing.T) {
		c.GaugeSet(ComponentsReported.Name, 42)
		c.GaugeSet(ComponentsReported.Name, 12)
		if got := c.GetGauge(ComponentsReported.Name); got != 12 {
			t.Errorf("Gauge = %v, want %v", got, 12)
		}
	})

	t.Run("Histogram", func(t *testing.T) {
		c.HistogramObserve(TransferDuration.Name, 1.5)
		c.HistogramObserve(TransferDuration.Name, 2.5)

		got := c.GetHistogram(TransferDuration.Name)
		if len(got) != 2 {
			t.Errorf("Histogram observations = %v, want %v", len(got), 2)
		}
	})
}

func TestNopCollector(t *testing.T) {
	c := OrNop(nil)
	if _, ok := c.(*NopCollector); !ok {
		t.Fatalf("OrNop(nil) = %T, want *NopCollector", c)
	}

	// no-ops, must not panic
	c.CounterInc("test", "label", "value")
	c.CounterAdd("test", 5, "label", "value")
	c.GaugeSet("test", 10)
	c.HistogramObserve("test", 1.5)
}

func TestTimer(t *testing.T) {
	c := NewInMemoryCollector()

	timer := NewTimer(c, ScanDuration.Name)
	time.Sleep(10 * time.Millisecond)
	d := timer.ObserveDuration()

	if d < 10*time.Millisecond {
		t.Errorf("Duration = %v, want >= 10ms", d)
	}
	obs := c.GetHistogram(ScanDuration.Name)
	if len(obs) != 1 {
		t.Fatalf("observations = %d, want 1", len(obs))
	}
	if obs[0] < 0.01 {
		t.Errorf("observation = %v, want >= 0.01", obs[0])
	}
}

func TestDefinitions_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for _, def := range Definitions() {
		if !strings.HasPrefix(def.Name, "depaudit_") {
			t.Errorf("metric %q lacks depaudit_ prefix", def.Name)
		}
		if seen[def.Name] {
			t.Errorf("metric %q defined twice", def.Name)
		}
		seen[def.Name] = true
	}
}

// gathered returns the value of the sample of name whose first non-const
// label has value label ("" for unlabeled metrics).
func gathered(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			value := ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() != "project" {
					value = lp.GetValue()
				}
			}
			if value != label {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s{%s} not gathered", name, label)
	return 0
}

func TestPrometheusCollector(t *testing.T) {
	c, err := NewPrometheusCollector(&PrometheusConfig{
		ConstLabels: map[string]string{"project": "g:a"},
	})
	if err != nil {
		t.Fatalf("NewPrometheusCollector() error = %v", err)
	}

	c.CounterInc(TransfersTotal.Name, "status", "201")
	c.CounterInc(TransfersTotal.Name, "status", "201")
	c.CounterAdd(ComponentsMapped.Name, 3)
	c.GaugeSet(ComponentsReported.Name, 4)
	c.HistogramObserve(TransferDuration.Name, 0.3)

	// unregistered names are ignored
	c.CounterInc("not_registered")

	if got := gathered(t, c.Registry(), TransfersTotal.Name, "201"); got != 2 {
		t.Errorf("transfers{status=201} = %v, want 2", got)
	}
	if got := gathered(t, c.Registry(), ComponentsMapped.Name, ""); got != 3 {
		t.Errorf("components mapped = %v, want 3", got)
	}
	if got := gathered(t, c.Registry(), ComponentsReported.Name, ""); got != 4 {
		t.Errorf("components reported = %v, want 4", got)
	}

	// registering again is a no-op
	if err := c.Register(TransfersTotal); err != nil {
		t.Errorf("Register() twice error = %v", err)
	}
	if err := c.Register(MetricDefinition{Name: "x", Type: "summary"}); err == nil {
		t.Error("Register() with unknown type should fail")
	}
}

func TestPrometheusCollector_WriteTextfile(t *testing.T) {
	c, err := NewPrometheusCollector(nil)
	if err != nil {
		t.Fatalf("NewPrometheusCollector() error = %v", err)
	}
	c.CounterInc(ComponentsUnmatched.Name)

	path := filepath.Join(t.TempDir(), "depaudit.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "# TYPE depaudit_components_unmatched_total counter") {
		t.Errorf("textfile missing TYPE line:\n%s", out)
	}
	if !strings.Contains(out, "depaudit_components_unmatched_total 1") {
		t.Errorf("textfile missing sample:\n%s", out)
	}
}

func TestPrometheusCollector_Handler(t *testing.T) {
	c, err := NewPrometheusCollector(nil)
	if err != nil {
		t.Fatalf("NewPrometheusCollector() error = %v", err)
	}
	c.CounterInc(ChecksumFailures.Name, "reason", "no_backing_file")

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	want := `depaudit_checksum_failures_total{reason="no_backing_file"} 1`
	if !strings.Contains(string(body), want) {
		t.Errorf("exposition missing %q:\n%s", want, body)
	}
}
