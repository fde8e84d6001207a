package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/fadilmartias/aca-radar/internal/model"
	"github.com/fadilmartias/aca-radar/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "machine learning", Normalize("  Machine \t  LEARNING\n"))
	assert.Equal(t, "graph neural networks", Normalize("graph neural networks"))
}

func TestValidateTerm(t *testing.T) {
	valid := []string{
		"machine learning",
		"  Self-supervised learning (SSL), vision & language  ",
		"Apprentissage automatique",
		"量子计算",
		"C++ / R# 100%",
	}
	for _, term := range valid {
		assert.NoError(t, ValidateTerm(term), term)
	}

	invalid := map[string]string{
		"empty":        "   ",
		"too long":     strings.Repeat("a", MaxTermLength+1),
		"control char": "deep\x00learning",
		"inner tab":    "deep\tlearning",
		"symbol":       "deep learning <script>",
		"emoji":        "robots 🤖",
	}
	for name, term := range invalid {
		err := ValidateTerm(term)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation), name)
	}

	assert.NoError(t, ValidateTerm(strings.Repeat("é", MaxTermLength)), "length counts characters")
}

func newSubmitter(pub *fakePublisher) (*ResearchInterestUsecase, *repository.MemoryEmbeddingJobRepository) {
	store := repository.NewMemoryEmbeddingJobRepository()
	return NewResearchInterestUsecase(store, pub, 0), store
}

func TestSubmitQueuesNormalizedTerm(t *testing.T) {
	pub := &fakePublisher{}
	uc, store := newSubmitter(pub)
	ctx := context.Background()

	res, err := uc.Submit(ctx, "  Machine   Learning ")
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, model.JobQueued, res.Status)

	job, err := store.Find(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, "machine learning", job.Term)
	assert.Equal(t, model.JobQueued, job.Status)

	msgs := pub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, res.JobID, msgs[0].JobID)
	assert.Equal(t, "machine learning", msgs[0].Term)
}

func TestSubmitIsIdempotentWithinFreshness(t *testing.T) {
	pub := &fakePublisher{}
	uc, store := newSubmitter(pub)
	ctx := context.Background()

	first, err := uc.Submit(ctx, "robotics")
	require.NoError(t, err)
	claimJob(t, store, first.JobID)
	require.NoError(t, store.MarkCompleted(ctx, first.JobID, model.CompletedResult{
		EmbeddingB64: "AACAPw==",
		EmbeddingDim: 1,
		Concepts:     []string{"robotics"},
	}))

	second, err := uc.Submit(ctx, "  ROBOTICS")
	require.NoError(t, err)
	assert.Equal(t, first.JobID, second.JobID)
	assert.True(t, second.Cached)
	assert.Equal(t, model.JobCompleted, second.Status)
	assert.Len(t, pub.published(), 1, "cache hit publishes nothing")
}

func TestSubmitIgnoresStaleCache(t *testing.T) {
	pub := &fakePublisher{}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := repository.NewMemoryEmbeddingJobRepository().WithClock(func() time.Time { return now })
	uc := NewResearchInterestUsecase(store, pub, time.Hour)
	ctx := context.Background()

	first, err := uc.Submit(ctx, "ecology")
	require.NoError(t, err)
	claimJob(t, store, first.JobID)
	require.NoError(t, store.MarkCompleted(ctx, first.JobID, model.CompletedResult{EmbeddingB64: "AACAPw==", EmbeddingDim: 1}))

	now = now.Add(2 * time.Hour)
	second, err := uc.Submit(ctx, "ecology")
	require.NoError(t, err)
	assert.NotEqual(t, first.JobID, second.JobID)
	assert.False(t, second.Cached)
}

func TestSubmitRejectsInvalidTermBeforeTouchingStore(t *testing.T) {
	pub := &fakePublisher{}
	uc, store := newSubmitter(pub)

	_, err := uc.Submit(context.Background(), "bad\x07term")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	assert.Empty(t, pub.published())

	stale, err := store.ListStaleQueued(context.Background(), -time.Hour, 0)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestSubmitPublishFailureFailsTheJob(t *testing.T) {
	pub := &fakePublisher{err: errServiceDown}
	uc, store := newSubmitter(pub)
	var created string
	uc.newID = func() string {
		created = uuid.NewString()
		return created
	}

	_, err := uc.Submit(context.Background(), "climate modelling")
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindQueueingFailed))

	job, err := store.Find(context.Background(), created)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "queueing failed")
}

func TestGetJob(t *testing.T) {
	pub := &fakePublisher{}
	uc, _ := newSubmitter(pub)
	ctx := context.Background()

	res, err := uc.Submit(ctx, "bioinformatics")
	require.NoError(t, err)

	job, err := uc.GetJob(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, "bioinformatics", job.Term)

	_, err = uc.GetJob(ctx, "not-a-uuid")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = uc.GetJob(ctx, uuid.NewString())
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}
