package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors SPEC_FULL.md §3.1 names.
// Grounded on the teacher's internal/observability.Metrics struct
// shape (a field per collector, all built through promauto at
// construction time), narrowed to five collectors: loop iterations,
// tool calls, provider latency, jobs queued and jobs processed. Of
// these, only JobsQueued is incremented in this repository (by the
// HTTP handlers on enqueue); the other four are registered but no code
// updates them.
type Metrics struct {
	LoopIterations *prometheus.CounterVec // agentcore_loop_iterations_total{status}

	ToolCalls *prometheus.CounterVec // agentcore_tool_calls_total{tool,status}

	ProviderCallDuration *prometheus.HistogramVec // agentcore_provider_call_duration_seconds{provider}

	JobsQueued    prometheus.Counter      // agentcore_jobs_queued_total
	JobsProcessed *prometheus.CounterVec // agentcore_jobs_processed_total{result}
}

// NewMetrics registers every collector against prometheus's default
// registry via promauto, matching the teacher's registration style.
func NewMetrics() *Metrics {
	return &Metrics{
		LoopIterations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_loop_iterations_total",
			Help: "Agent loop iterations, labeled by terminal status.",
		}, []string{"status"}),

		ToolCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_tool_calls_total",
			Help: "Tool call executions, labeled by tool name and outcome.",
		}, []string{"tool", "status"}),

		ProviderCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentcore_provider_call_duration_seconds",
			Help:    "Provider.Call latency in seconds, labeled by provider dialect.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),

		JobsQueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_jobs_queued_total",
			Help: "Jobs enqueued onto the dispatcher.",
		}),

		JobsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_jobs_processed_total",
			Help: "Jobs processed by a worker, labeled by terminal result.",
		}, []string{"result"}),
	}
}
