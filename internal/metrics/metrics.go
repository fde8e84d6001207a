// Package metrics exposes Prometheus instrumentation for the submission
// path, the embedding worker and paper ranking. Everything registers on the
// default registry and is served at /metrics.
package metrics

import (
	"time"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Submission Metrics
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_interest_submissions_total",
			Help: "Research-interest submissions by outcome",
		},
		[]string{"outcome"}, // queued, cached, rejected, error
	)

	// Queue Metrics
	QueueMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_messages_published_total",
			Help: "Total number of embed requests published",
		},
	)

	QueuePublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_publish_errors_total",
			Help: "Total number of embed requests that could not be published",
		},
	)

	QueueMessagesIgnored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_ignored_total",
			Help: "Messages acked without processing",
		},
		[]string{"reason"}, // malformed, unknown_type
	)

	// Worker Metrics
	JobClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_job_claims_total",
			Help: "Claim attempts by result",
		},
		[]string{"result"}, // won, lost
	)

	JobOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_job_outcomes_total",
			Help: "Finished embedding jobs by status and failure kind",
		},
		[]string{"status", "kind"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embedding_pipeline_stage_duration_seconds",
			Help:    "Duration of each embedding pipeline stage",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"}, // extract, embed, project
	)

	JobsRepublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embedding_jobs_republished_total",
			Help: "Stale queued jobs republished by the reconciliation sweep",
		},
	)

	// Ranking Metrics
	RankedCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranking_candidates",
			Help:    "Number of candidate papers per ranking pass",
			Buckets: []float64{0, 10, 25, 50, 100, 150, 200, 250},
		},
	)

	RankingUnknownScores = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ranking_unknown_scores_total",
			Help: "Candidates ranked without a similarity score",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	HTTPRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

func RecordSubmission(outcome string) {
	SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordPublish records the result of publishing one embed request
func RecordPublish(err error) {
	if err != nil {
		QueuePublishErrors.Inc()
		return
	}
	QueueMessagesPublished.Inc()
}

func RecordIgnoredMessage(reason string) {
	QueueMessagesIgnored.WithLabelValues(reason).Inc()
}

func RecordClaim(won bool) {
	result := "lost"
	if won {
		result = "won"
	}
	JobClaimsTotal.WithLabelValues(result).Inc()
}

// RecordJobOutcome records a finished job. err is nil for completed jobs.
func RecordJobOutcome(err error) {
	if err == nil {
		JobOutcomesTotal.WithLabelValues("completed", "").Inc()
		return
	}
	kind := string(apperror.KindOf(err))
	if kind == "" {
		kind = "unknown"
	}
	JobOutcomesTotal.WithLabelValues("failed", kind).Inc()
}

func RecordStage(stage string, duration time.Duration) {
	PipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func RecordRepublished(n int) {
	JobsRepublished.Add(float64(n))
}

func RecordRanking(candidates, unknown int) {
	RankedCandidates.Observe(float64(candidates))
	RankingUnknownScores.Add(float64(unknown))
}

// RecordCircuitBreakerState takes the numeric value of a gobreaker.State.
func RecordCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func RecordRateLimited(route string) {
	HTTPRateLimited.WithLabelValues(route).Inc()
}
