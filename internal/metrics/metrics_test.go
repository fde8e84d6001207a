package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordJobOutcome(t *testing.T) {
	completed := testutil.ToFloat64(JobOutcomesTotal.WithLabelValues("completed", ""))
	extraction := testutil.ToFloat64(JobOutcomesTotal.WithLabelValues("failed", string(apperror.KindExtractionFailed)))
	unknown := testutil.ToFloat64(JobOutcomesTotal.WithLabelValues("failed", "unknown"))

	RecordJobOutcome(nil)
	RecordJobOutcome(apperror.New(apperror.KindExtractionFailed, "no concepts extracted"))
	RecordJobOutcome(errors.New("plain"))

	assert.Equal(t, completed+1, testutil.ToFloat64(JobOutcomesTotal.WithLabelValues("completed", "")))
	assert.Equal(t, extraction+1, testutil.ToFloat64(JobOutcomesTotal.WithLabelValues("failed", string(apperror.KindExtractionFailed))))
	assert.Equal(t, unknown+1, testutil.ToFloat64(JobOutcomesTotal.WithLabelValues("failed", "unknown")))
}

func TestRecordPublishAndClaim(t *testing.T) {
	published := testutil.ToFloat64(QueueMessagesPublished)
	failed := testutil.ToFloat64(QueuePublishErrors)
	lost := testutil.ToFloat64(JobClaimsTotal.WithLabelValues("lost"))

	RecordPublish(nil)
	RecordPublish(errors.New("nats down"))
	RecordClaim(false)

	assert.Equal(t, published+1, testutil.ToFloat64(QueueMessagesPublished))
	assert.Equal(t, failed+1, testutil.ToFloat64(QueuePublishErrors))
	assert.Equal(t, lost+1, testutil.ToFloat64(JobClaimsTotal.WithLabelValues("lost")))
}

func TestRecordRankingAndStages(t *testing.T) {
	unknown := testutil.ToFloat64(RankingUnknownScores)

	RecordRanking(40, 3)
	RecordStage("embed", 200*time.Millisecond)
	RecordCircuitBreakerState("queue-publisher", 2)

	assert.Equal(t, unknown+3, testutil.ToFloat64(RankingUnknownScores))
	assert.Equal(t, 2.0, testutil.ToFloat64(CircuitBreakerState.WithLabelValues("queue-publisher")))
	assert.Equal(t, 1, testutil.CollectAndCount(PipelineStageDuration))
}
