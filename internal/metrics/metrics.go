// Package metrics exposes the copilot's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts completed turns by outcome.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "copilot",
		Name:      "turns_total",
		Help:      "Completed agent turns by outcome.",
	}, []string{"outcome"})

	// ToolCallsTotal counts tool invocations by tool and outcome.
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "copilot",
		Name:      "tool_calls_total",
		Help:      "Tool invocations by tool name and outcome.",
	}, []string{"tool", "outcome"})

	// ToolCallSeconds observes tool invocation latency.
	ToolCallSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "copilot",
		Name:      "tool_call_seconds",
		Help:      "Tool invocation latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})

	// LLMRequestsTotal counts inference endpoint calls by outcome.
	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "copilot",
		Name:      "llm_requests_total",
		Help:      "Inference endpoint calls by outcome.",
	}, []string{"outcome"})
)
