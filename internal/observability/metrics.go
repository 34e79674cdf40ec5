// Package observability exposes Prometheus metrics for the analysis
// pipeline and its delivery surfaces.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysesProcessed counts completed analysis requests by fused status.
	AnalysesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pondwatch_analyses_total",
		Help: "Completed analysis requests by fused status.",
	}, []string{"status"})

	// AnalysisDuration observes end-to-end pipeline latency.
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pondwatch_analysis_duration_seconds",
		Help:    "End-to-end analysis pipeline duration.",
		Buckets: prometheus.DefBuckets,
	})

	// AnalyzerFallbacks counts branch failures recovered via fallback.
	AnalyzerFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pondwatch_analyzer_fallbacks_total",
		Help: "Analyzer branch failures recovered with fallback results.",
	}, []string{"branch"})

	// AlertsCreated counts alerts by rule type.
	AlertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pondwatch_alerts_created_total",
		Help: "Alerts created by rule type.",
	}, []string{"type"})

	// NotificationsSent counts successful deliveries by channel.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pondwatch_notifications_sent_total",
		Help: "Successful notification deliveries by channel.",
	}, []string{"channel"})

	// NotificationsFailed counts failed deliveries by channel.
	NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pondwatch_notifications_failed_total",
		Help: "Failed notification deliveries by channel.",
	}, []string{"channel"})

	// AssistantRequests counts assistant queries by response mode.
	AssistantRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pondwatch_assistant_requests_total",
		Help: "Assistant queries by response mode (llm or fallback).",
	}, []string{"mode"})

	// RetryAttempts counts retried external-service calls.
	RetryAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pondwatch_retry_attempts_total",
		Help: "Retried attempts against external services.",
	})
)
