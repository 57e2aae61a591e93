package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Turn metrics
	Turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_turns_total",
			Help: "Total number of conversation turns",
		},
		[]string{"status"}, // status: completed|aborted|cancelled|rejected
	)

	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mentor_turn_duration_seconds",
			Help:    "Turn execution duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	TurnCycles = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mentor_turn_reasoning_cycles",
			Help:    "Reasoning/dispatch cycles consumed per turn",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"}, // status: success|validation_error|error
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mentor_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"tool"},
	)

	// Reasoning engine metrics
	EngineCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_engine_calls_total",
			Help: "Total number of reasoning engine invocations",
		},
		[]string{"provider", "status"}, // status: success|error
	)

	EngineRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mentor_engine_retries_total",
			Help: "Total number of reasoning engine retries",
		},
	)

	// Retrieval metrics
	RetrievalQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_retrieval_queries_total",
			Help: "Total number of passage retrieval queries",
		},
		[]string{"status"}, // status: ok|degraded
	)

	// Session metrics
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mentor_active_sessions",
			Help: "Number of sessions with live in-memory resources",
		},
	)

	SessionsBusy = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mentor_session_busy_rejections_total",
			Help: "Requests rejected because a turn was already running",
		},
	)

	// Event stream metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_events_published_total",
			Help: "Events published to session streams",
		},
		[]string{"type"},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mentor_events_dropped_total",
			Help: "Events dropped because no client was attached or the buffer was full",
		},
	)
)

func init() {
	prometheus.MustRegister(
		Turns,
		TurnDuration,
		TurnCycles,
		ToolExecutions,
		ToolLatency,
		EngineCalls,
		EngineRetries,
		RetrievalQueries,
		ActiveSessions,
		SessionsBusy,
		EventsPublished,
		EventsDropped,
	)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTurn records the outcome of one turn
func RecordTurn(status string, duration time.Duration, cycles int) {
	Turns.WithLabelValues(status).Inc()
	TurnDuration.WithLabelValues(status).Observe(duration.Seconds())
	TurnCycles.Observe(float64(cycles))
}

// RecordToolExecution records a tool execution
func RecordToolExecution(tool string, latency time.Duration, status string) {
	ToolExecutions.WithLabelValues(tool, status).Inc()
	ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}
