package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/fadilmartias/aca-radar/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EmbeddingJobStore persists research-interest embedding jobs.
//
// TryClaim is the only mutual-exclusion primitive: it succeeds for at most one
// caller per lease period. UpdateStatus is for intermediate signalling and
// must not be relied on for exclusion.
type EmbeddingJobStore interface {
	Create(ctx context.Context, job *model.EmbeddingJob) error
	Find(ctx context.Context, id string) (*model.EmbeddingJob, error)
	// FindCompletedByTerm returns the most recently updated completed job for
	// term, or nil when none exists. maxAge <= 0 disables the age filter.
	FindCompletedByTerm(ctx context.Context, term string, maxAge time.Duration) (*model.EmbeddingJob, error)
	TryClaim(ctx context.Context, id string, lease time.Duration) (bool, error)
	MarkCompleted(ctx context.Context, id string, result model.CompletedResult) error
	MarkFailed(ctx context.Context, id string, message string) error
	UpdateStatus(ctx context.Context, id string, status model.JobStatus) error
	ListStaleQueued(ctx context.Context, olderThan time.Duration, limit int) ([]model.EmbeddingJob, error)
	// TouchQueued bumps updated_at of a queued job that has been idle for
	// longer than olderThan. It reports whether this caller won the update.
	TouchQueued(ctx context.Context, id string, olderThan time.Duration) (bool, error)
	// ListExpiredProcessing returns processing jobs whose claim is older than
	// lease, oldest first. Such a job can be claimed again by any worker.
	ListExpiredProcessing(ctx context.Context, lease time.Duration, limit int) ([]model.EmbeddingJob, error)
}

type EmbeddingJobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ EmbeddingJobStore = (*EmbeddingJobRepository)(nil)

func NewEmbeddingJobRepository(db *gorm.DB) *EmbeddingJobRepository {
	return &EmbeddingJobRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source used for lease and freshness checks.
func (r *EmbeddingJobRepository) WithClock(now func() time.Time) *EmbeddingJobRepository {
	r.now = now
	return r
}

func (r *EmbeddingJobRepository) Create(ctx context.Context, job *model.EmbeddingJob) error {
	if job.ID == "" {
		return apperror.NewValidation("job id is required", map[string]string{"id": "required"})
	}
	if job.Status == "" {
		job.Status = model.JobQueued
	}
	now := r.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return storageError("create job "+job.ID, err)
	}
	return nil
}

func (r *EmbeddingJobRepository) Find(ctx context.Context, id string) (*model.EmbeddingJob, error) {
	var job model.EmbeddingJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, storageError("find job "+id, err)
	}
	return &job, nil
}

func (r *EmbeddingJobRepository) FindCompletedByTerm(ctx context.Context, term string, maxAge time.Duration) (*model.EmbeddingJob, error) {
	q := r.db.WithContext(ctx).
		Where("term = ? AND status = ?", term, model.JobCompleted)
	if maxAge > 0 {
		q = q.Where("updated_at >= ?", r.now().Add(-maxAge))
	}

	var job model.EmbeddingJob
	err := q.Order("updated_at DESC").Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("find completed job by term", err)
	}
	return &job, nil
}

// TryClaim moves a job to processing in one conditional UPDATE. A queued job is
// always claimable; a processing job only once its lease has expired.
func (r *EmbeddingJobRepository) TryClaim(ctx context.Context, id string, lease time.Duration) (bool, error) {
	now := r.now()
	res := r.db.WithContext(ctx).
		Model(&model.EmbeddingJob{}).
		Where("id = ?", id).
		Where("(status = ? OR (status = ? AND updated_at < ?))", model.JobQueued, model.JobProcessing, now.Add(-lease)).
		Updates(map[string]interface{}{
			"status":     model.JobProcessing,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, storageError("claim job "+id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *EmbeddingJobRepository) MarkCompleted(ctx context.Context, id string, result model.CompletedResult) error {
	return r.transition(ctx, id, model.JobCompleted, map[string]interface{}{
		"status":        model.JobCompleted,
		"vector_x":      result.Vector2D[0],
		"vector_y":      result.Vector2D[1],
		"embedding_b64": result.EmbeddingB64,
		"embedding_dim": result.EmbeddingDim,
		"concepts":      datatypes.JSONSlice[string](result.Concepts),
		"error_message": nil,
		"updated_at":    r.now(),
	})
}

func (r *EmbeddingJobRepository) MarkFailed(ctx context.Context, id string, message string) error {
	return r.transition(ctx, id, model.JobFailed, map[string]interface{}{
		"status":        model.JobFailed,
		"error_message": message,
		"updated_at":    r.now(),
	})
}

func (r *EmbeddingJobRepository) UpdateStatus(ctx context.Context, id string, status model.JobStatus) error {
	if !status.Valid() || status.Terminal() || status == model.JobQueued {
		return apperror.NewValidation(fmt.Sprintf("status %q cannot be set directly", status), map[string]string{"status": "invalid"})
	}
	return r.transition(ctx, id, status, map[string]interface{}{
		"status":     status,
		"updated_at": r.now(),
	})
}

// transition applies updates only when the row is in a status that may move
// to target, so terminal rows are never mutated.
func (r *EmbeddingJobRepository) transition(ctx context.Context, id string, target model.JobStatus, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&model.EmbeddingJob{}).
		Where("id = ? AND status IN ?", id, model.Predecessors(target)).
		Updates(updates)
	if res.Error != nil {
		return storageError(fmt.Sprintf("mark job %s %s", id, target), res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	current, err := r.Find(ctx, id)
	if err != nil {
		return err
	}
	return apperror.New(apperror.KindInvalidTransition,
		fmt.Sprintf("job %s: %s -> %s", id, current.Status, target))
}

func (r *EmbeddingJobRepository) ListStaleQueued(ctx context.Context, olderThan time.Duration, limit int) ([]model.EmbeddingJob, error) {
	var jobs []model.EmbeddingJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.JobQueued, r.now().Add(-olderThan)).
		Order("updated_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, storageError("list stale queued jobs", err)
	}
	return jobs, nil
}

func (r *EmbeddingJobRepository) TouchQueued(ctx context.Context, id string, olderThan time.Duration) (bool, error) {
	now := r.now()
	res := r.db.WithContext(ctx).
		Model(&model.EmbeddingJob{}).
		Where("id = ? AND status = ? AND updated_at < ?", id, model.JobQueued, now.Add(-olderThan)).
		Update("updated_at", now)
	if res.Error != nil {
		return false, storageError("touch job "+id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *EmbeddingJobRepository) ListExpiredProcessing(ctx context.Context, lease time.Duration, limit int) ([]model.EmbeddingJob, error) {
	var jobs []model.EmbeddingJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.JobProcessing, r.now().Add(-lease)).
		Order("updated_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, storageError("list expired processing jobs", err)
	}
	return jobs, nil
}
