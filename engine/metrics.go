package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the counters and histograms an Engine/Server record,
// grouped by concern the way hector's observability.Metrics is, but scoped
// to the handful of request paths this engine actually has (agent_run,
// tool_call, information, HTTP).
type Metrics struct {
	AgentRunTotal    *prometheus.CounterVec
	AgentRunDuration *prometheus.HistogramVec
	ToolCallTotal    *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// NewMetrics registers the engine's metric families on reg. Passing a nil
// reg is invalid; callers that want metrics disabled should simply not
// construct a Metrics value and pass a nil *Metrics to NewServer.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		AgentRunTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anda",
			Subsystem: "agent",
			Name:      "run_total",
			Help:      "Agent runs, labeled by agent name and outcome.",
		}, []string{"agent", "outcome"}),
		AgentRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "anda",
			Subsystem: "agent",
			Name:      "run_duration_seconds",
			Help:      "Agent run latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"agent"}),
		ToolCallTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anda",
			Subsystem: "tool",
			Name:      "call_total",
			Help:      "Tool calls, labeled by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		ToolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "anda",
			Subsystem: "tool",
			Name:      "call_duration_seconds",
			Help:      "Tool call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"tool"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anda",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, labeled by route and status class.",
		}, []string{"route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "anda",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		m.AgentRunTotal, m.AgentRunDuration,
		m.ToolCallTotal, m.ToolCallDuration,
		m.HTTPRequests, m.HTTPDuration,
	)
	return m
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
