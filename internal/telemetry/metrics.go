package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ThoughtsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "think_thoughts_submitted_total",
		Help: "Accepted thoughts by thought type and chain kind (main, branch, revision)",
	}, []string{"type", "kind"})

	ValidationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "think_validation_errors_total",
		Help: "Rejected submissions by error kind",
	}, []string{"kind"})

	SubmitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "think_submit_duration_seconds",
		Help:    "Time spent validating, appending and rendering one thought",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
	})

	SessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "think_sessions_live",
		Help: "Reasoning sessions currently held in memory",
	})

	SessionsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "think_sessions_reaped_total",
		Help: "Sessions removed by the idle-session janitor",
	})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "think_tool_calls_total",
		Help: "MCP tool invocations by tool and outcome",
	}, []string{"tool", "outcome"})
)
