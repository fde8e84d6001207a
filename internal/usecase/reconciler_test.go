package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/fadilmartias/aca-radar/internal/model"
	"github.com/fadilmartias/aca-radar/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcilerRepublishesStaleQueuedJobs(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := repository.NewMemoryEmbeddingJobRepository().WithClock(func() time.Time { return now })
	pub := &fakePublisher{}
	r := NewReconciler(store, pub, ReconcilerConfig{StaleAfter: 2 * time.Minute, Lease: time.Hour, BatchSize: 10})
	ctx := context.Background()

	orphan := uuid.NewString()
	require.NoError(t, store.Create(ctx, &model.EmbeddingJob{ID: orphan, Term: "orphaned term"}))
	claimed := uuid.NewString()
	require.NoError(t, store.Create(ctx, &model.EmbeddingJob{ID: claimed, Term: "in flight"}))
	_, err := store.TryClaim(ctx, claimed, time.Hour)
	require.NoError(t, err)

	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is stale yet")

	now = now.Add(5 * time.Minute)
	n, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	msgs := pub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, orphan, msgs[0].JobID)
	assert.Equal(t, "orphaned term", msgs[0].Term)

	n, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "touched job waits another stale period")
}

func TestReconcilerRepublishesExpiredClaims(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := repository.NewMemoryEmbeddingJobRepository().WithClock(func() time.Time { return now })
	pub := &fakePublisher{}
	r := NewReconciler(store, pub, ReconcilerConfig{StaleAfter: time.Hour, Lease: time.Minute})
	ctx := context.Background()

	id := uuid.NewString()
	require.NoError(t, store.Create(ctx, &model.EmbeddingJob{ID: id, Term: "stuck"}))
	claimJob(t, store, id)

	now = now.Add(30 * time.Second)
	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "lease still held")

	now = now.Add(time.Minute)
	n, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, pub.published(), 1)
	assert.Equal(t, id, pub.published()[0].JobID)

	claimJob(t, store, id)
	n, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "claimed again")
}

func TestReconcilerKeepsGoingWhenPublishFails(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := repository.NewMemoryEmbeddingJobRepository().WithClock(func() time.Time { return now })
	pub := &fakePublisher{err: errServiceDown}
	r := NewReconciler(store, pub, ReconcilerConfig{StaleAfter: time.Minute})
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &model.EmbeddingJob{ID: uuid.NewString(), Term: "a"}))
	now = now.Add(time.Hour)

	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReconcilerRunStopsWithContext(t *testing.T) {
	r := NewReconciler(repository.NewMemoryEmbeddingJobRepository(), &fakePublisher{}, ReconcilerConfig{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
