package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestVecAndHistogramRender(t *testing.T) {
	c := NewCounterVec("reviews_total", "help", "rating")
	c.Inc("3")
	c.Inc("3")
	c.Add(2, "1")
	if got := c.Value("3"); got != 2 {
		t.Fatalf("counter value: want 2 got %v", got)
	}

	h := NewHistogramVec("latency_seconds", "help", []float64{0.1, 1}, "route")
	h.Observe(0.05, "/x")
	h.Observe(0.5, "/x")
	h.Observe(3, "/x")

	var buf bytes.Buffer
	if err := c.WritePrometheus(&buf); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	if err := h.WritePrometheus(&buf); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# TYPE reviews_total counter",
		`reviews_total{rating="1"} 2`,
		`reviews_total{rating="3"} 2`,
		`latency_seconds_bucket{route="/x",le="0.1"} 1`,
		`latency_seconds_bucket{route="/x",le="1"} 2`,
		`latency_seconds_bucket{route="/x",le="+Inf"} 3`,
		`latency_seconds_count{route="/x"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.IncReview(3, "REVIEW")
	m.ObserveJob("REBUILD_CACHE", "COMPLETED", time.Second)
	m.ObserveAPI("GET", "/x", 200, time.Millisecond)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil write: %v", err)
	}
}

func TestLabelEscaping(t *testing.T) {
	if got := labelString([]string{"a"}, []string{`x"y`}); got != `{a="x\"y"}` {
		t.Fatalf("escape: %s", got)
	}
	if got := labelString([]string{"a", "b"}, []string{"1"}); got != `{a="1",b="unknown"}` {
		t.Fatalf("missing label: %s", got)
	}
}
