package repository

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/fadilmartias/aca-radar/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDialector(sqlite.Open(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(db))
	return db
}

// eachStore runs fn against every EmbeddingJobStore implementation.
func eachStore(t *testing.T, fn func(t *testing.T, store EmbeddingJobStore, clock *testClock)) {
	t.Run("gorm", func(t *testing.T) {
		clock := newTestClock()
		fn(t, NewEmbeddingJobRepository(openTestDB(t)).WithClock(clock.Now), clock)
	})
	t.Run("memory", func(t *testing.T) {
		clock := newTestClock()
		fn(t, NewMemoryEmbeddingJobRepository().WithClock(clock.Now), clock)
	})
}

func newJob(t *testing.T, store EmbeddingJobStore, term string) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, store.Create(context.Background(), &model.EmbeddingJob{ID: id, Term: term}))
	return id
}

// complete claims id and marks it completed with sampleResult.
func complete(t *testing.T, store EmbeddingJobStore, id string) {
	t.Helper()
	ctx := context.Background()
	ok, err := store.TryClaim(ctx, id, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.MarkCompleted(ctx, id, sampleResult()))
}

func sampleResult() model.CompletedResult {
	return model.CompletedResult{
		Vector2D:     [2]float64{0.25, -0.75},
		EmbeddingB64: "AACAPw==",
		EmbeddingDim: 1,
		Concepts:     []string{"graph neural networks"},
	}
}

func TestCreateAndFind(t *testing.T) {
	eachStore(t, func(t *testing.T, store EmbeddingJobStore, clock *testClock) {
		ctx := context.Background()
		id := newJob(t, store, "machine learning")

		job, err := store.Find(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "machine learning", job.Term)
		assert.Equal(t, model.JobQueued, job.Status)
		assert.True(t, job.UpdatedAt.Equal(clock.Now()))

		_, err = store.Find(ctx, uuid.NewString())
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

		err = store.Create(ctx, &model.EmbeddingJob{ID: id, Term: "again"})
		assert.True(t, apperror.IsKind(err, apperror.KindDuplicateIdentifier))
	})
}

func TestTryClaimMutualExclusion(t *testing.T) {
	eachStore(t, func(t *testing.T, store EmbeddingJobStore, _ *testClock) {
		id := newJob(t, store, "robotics")

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.TryClaim(context.Background(), id, time.Minute)
				assert.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestTryClaimLeaseRecovery(t *testing.T) {
	eachStore(t, func(t *testing.T, store EmbeddingJobStore, clock *testClock) {
		ctx := context.Background()
		id := newJob(t, store, "quantum computing")

		ok, err := store.TryClaim(ctx, id, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		clock.Advance(30 * time.Second)
		ok, err = store.TryClaim(ctx, id, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "lease still held")

		clock.Advance(31 * time.Second)
		ok, err = store.TryClaim(ctx, id, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "expired lease is claimable")
	})
}

func TestTerminalJobsAreNeverClaimed(t *testing.T) {
	eachStore(t, func(t *testing.T, store EmbeddingJobStore, clock *testClock) {
		ctx := context.Background()
		done := newJob(t, store, "a")
		failed := newJob(t, store, "b")

		complete(t, store, done)
		require.NoError(t, store.MarkFailed(ctx, failed, "no concepts extracted"))

		clock.Advance(24 * time.Hour)
		for _, id := range []string{done, failed} {
			ok, err := store.TryClaim(ctx, id, time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)
		}

		ok, err := store.TryClaim(ctx, uuid.NewString(), time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMarkCompletedPersistsResult(t *testing.T) {
	eachStore(t, func(t *testing.T, store EmbeddingJobStore, _ *testClock) {
		ctx := context.Background()
		id := newJob(t, store, "ecology")
		_, err := store.TryClaim(ctx, id, time.Minute)
		require.NoError(t, err)

		require.NoError(t, store.MarkCompleted(ctx, id, sampleResult()))

		job, err := store.Find(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.JobCompleted, job.Status)
		v, ok := job.Vector2D()
		require.True(t, ok)
		assert.Equal(t, [2]float64{0.25, -0.75}, v)
		require.NotNil(t, job.EmbeddingB64)
		assert.Equal(t, "AACAPw==", *job.EmbeddingB64)
		require.NotNil(t, job.EmbeddingDim)
		assert.Equal(t, 1, *job.EmbeddingDim)
		assert.Equal(t, []string{"graph neural networks"}, []string(job.Concepts))
		assert.Nil(t, job.ErrorMessage)
	})
}

func TestTerminalTransitionErrors(t *testing.T) {
	eachStore(t, func(t *testing.T, store EmbeddingJobStore, _ *testClock) {
		ctx := context.Background()
		id := newJob(t, store, "x")
		require.NoError(t, store.MarkFailed(ctx, id, "boom"))

		err := store.MarkCompleted(ctx, id, sampleResult())
		assert.True(t, apperror.IsKind(err, apperror.KindInvalidTransition))

		err = store.MarkFailed(ctx, id, "again")
		assert.True(t, apperror.IsKind(err, apperror.KindInvalidTransition))

		job, err := store.Find(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, job.ErrorMessage)
		assert.Equal(t, "boom", *job.ErrorMessage)

		err = store.MarkFailed(ctx, uuid.NewString(), "missing")
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})
}

func TestCompletionRequiresClaim(t *testing.T) {
	eachStore(t, func(t *testing.T, store EmbeddingJobStore, _ *testClock) {
		ctx := context.Background()
		id := newJob(t, store, "unclaimed")

		err := store.MarkCompleted(ctx, id, sampleResult())
		assert.True(t, apperror.IsKind(err, apperror.KindInvalidTransition))

		job, err := store.Find(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.JobQueued, job.Status)
		assert.Nil(t, job.EmbeddingB64)
	})
}

func TestUpdateStatus(t *testing.T) {
	eachStore(t, func(t *testing.T, store EmbeddingJobStore, _ *testClock) {
		ctx := context.Background()
		id := newJob(t, store, "x")

		require.NoError(t, store.UpdateStatus(ctx, id, model.JobProcessing))
		job, err := store.Find(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.JobProcessing, job.Status)

		err = store.UpdateStatus(ctx, id, model.JobCompleted)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))

		err = store.UpdateStatus(ctx, id, model.JobQueued)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})
}

func TestFindCompletedByTerm(t *testing.T) {
	eachStore(t, func(t *testing.T, store EmbeddingJobStore, clock *testClock) {
		ctx := context.Background()

		job, err := store.FindCompletedByTerm(ctx, "deep learning", 7*24*time.Hour)
		require.NoError(t, err)
		assert.Nil(t, job)

		old := newJob(t, store, "deep learning")
		complete(t, store, old)
		clock.Advance(time.Hour)
		fresh := newJob(t, store, "deep learning")
		complete(t, store, fresh)
		newJob(t, store, "deep learning") // queued, never matches

		job, err = store.FindCompletedByTerm(ctx, "deep learning", 7*24*time.Hour)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, fresh, job.ID)

		clock.Advance(8 * 24 * time.Hour)
		job, err = store.FindCompletedByTerm(ctx, "deep learning", 7*24*time.Hour)
		require.NoError(t, err)
		assert.Nil(t, job, "outside freshness window")

		job, err = store.FindCompletedByTerm(ctx, "deep learning", 0)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, fresh, job.ID)
	})
}

func TestStaleQueuedSweepPrimitives(t *testing.T) {
	eachStore(t, func(t *testing.T, store EmbeddingJobStore, clock *testClock) {
		ctx := context.Background()
		first := newJob(t, store, "a")
		clock.Advance(time.Second)
		second := newJob(t, store, "b")
		claimed := newJob(t, store, "c")
		_, err := store.TryClaim(ctx, claimed, time.Minute)
		require.NoError(t, err)

		stale, err := store.ListStaleQueued(ctx, 2*time.Minute, 10)
		require.NoError(t, err)
		assert.Empty(t, stale)

		clock.Advance(5 * time.Minute)
		stale, err = store.ListStaleQueued(ctx, 2*time.Minute, 10)
		require.NoError(t, err)
		require.Len(t, stale, 2)
		assert.Equal(t, first, stale[0].ID)
		assert.Equal(t, second, stale[1].ID)

		limited, err := store.ListStaleQueued(ctx, 2*time.Minute, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		ok, err := store.TouchQueued(ctx, first, 2*time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = store.TouchQueued(ctx, first, 2*time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "second sweeper loses")

		ok, err = store.TouchQueued(ctx, claimed, 2*time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "only queued jobs are touched")
	})
}

func TestListExpiredProcessing(t *testing.T) {
	eachStore(t, func(t *testing.T, store EmbeddingJobStore, clock *testClock) {
		ctx := context.Background()
		claimed := newJob(t, store, "a")
		newJob(t, store, "queued")
		done := newJob(t, store, "done")
		_, err := store.TryClaim(ctx, claimed, time.Minute)
		require.NoError(t, err)
		complete(t, store, done)

		expired, err := store.ListExpiredProcessing(ctx, time.Minute, 10)
		require.NoError(t, err)
		assert.Empty(t, expired, "lease still held")

		clock.Advance(2 * time.Minute)
		expired, err = store.ListExpiredProcessing(ctx, time.Minute, 10)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, claimed, expired[0].ID)

		ok, err := store.TryClaim(ctx, claimed, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		expired, err = store.ListExpiredProcessing(ctx, time.Minute, 10)
		require.NoError(t, err)
		assert.Empty(t, expired, "a new claim renews the lease")
	})
}
