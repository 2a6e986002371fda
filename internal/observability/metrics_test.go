package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountersIncrement(t *testing.T) {
	m := NewMetrics()

	m.LoopIterations.WithLabelValues("completed").Inc()
	m.ToolCalls.WithLabelValues("bash", "ok").Inc()
	m.JobsQueued.Inc()
	m.JobsProcessed.WithLabelValues("completed").Inc()
	m.ProviderCallDuration.WithLabelValues("anthropic").Observe(1.5)

	if got := testutil.ToFloat64(m.LoopIterations.WithLabelValues("completed")); got != 1 {
		t.Fatalf("LoopIterations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("bash", "ok")); got != 1 {
		t.Fatalf("ToolCalls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.JobsQueued); got != 1 {
		t.Fatalf("JobsQueued = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.JobsProcessed.WithLabelValues("completed")); got != 1 {
		t.Fatalf("JobsProcessed = %v, want 1", got)
	}
}
