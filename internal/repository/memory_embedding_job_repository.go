package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/fadilmartias/aca-radar/internal/model"
	"gorm.io/datatypes"
)

// MemoryEmbeddingJobRepository keeps jobs in process memory. Every operation
// holds the mutex, which gives it the same record-level atomicity as the
// conditional UPDATEs of the gorm store.
type MemoryEmbeddingJobRepository struct {
	mu   sync.Mutex
	jobs map[string]model.EmbeddingJob
	now  func() time.Time
}

var _ EmbeddingJobStore = (*MemoryEmbeddingJobRepository)(nil)

func NewMemoryEmbeddingJobRepository() *MemoryEmbeddingJobRepository {
	return &MemoryEmbeddingJobRepository{
		jobs: make(map[string]model.EmbeddingJob),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryEmbeddingJobRepository) WithClock(now func() time.Time) *MemoryEmbeddingJobRepository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	return r
}

func (r *MemoryEmbeddingJobRepository) Create(_ context.Context, job *model.EmbeddingJob) error {
	if job.ID == "" {
		return apperror.NewValidation("job id is required", map[string]string{"id": "required"})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return apperror.New(apperror.KindDuplicateIdentifier, "create job "+job.ID)
	}
	if job.Status == "" {
		job.Status = model.JobQueued
	}
	now := r.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	r.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (r *MemoryEmbeddingJobRepository) Find(_ context.Context, id string) (*model.EmbeddingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, apperror.New(apperror.KindNotFound, "find job "+id)
	}
	out := cloneJob(job)
	return &out, nil
}

func (r *MemoryEmbeddingJobRepository) FindCompletedByTerm(_ context.Context, term string, maxAge time.Duration) (*model.EmbeddingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		best  *model.EmbeddingJob
		since = r.now().Add(-maxAge)
	)
	for _, job := range r.jobs {
		if job.Term != term || job.Status != model.JobCompleted {
			continue
		}
		if maxAge > 0 && job.UpdatedAt.Before(since) {
			continue
		}
		if best == nil || job.UpdatedAt.After(best.UpdatedAt) {
			j := cloneJob(job)
			best = &j
		}
	}
	return best, nil
}

func (r *MemoryEmbeddingJobRepository) TryClaim(_ context.Context, id string, lease time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return false, nil
	}
	now := r.now()
	claimable := job.Status == model.JobQueued ||
		(job.Status == model.JobProcessing && job.UpdatedAt.Before(now.Add(-lease)))
	if !claimable {
		return false, nil
	}
	job.Status = model.JobProcessing
	job.UpdatedAt = now
	r.jobs[id] = job
	return true, nil
}

func (r *MemoryEmbeddingJobRepository) MarkCompleted(_ context.Context, id string, result model.CompletedResult) error {
	return r.transition(id, model.JobCompleted, func(job *model.EmbeddingJob) {
		x, y := result.Vector2D[0], result.Vector2D[1]
		b64, dim := result.EmbeddingB64, result.EmbeddingDim
		job.VectorX, job.VectorY = &x, &y
		job.EmbeddingB64, job.EmbeddingDim = &b64, &dim
		job.Concepts = datatypes.JSONSlice[string](append([]string(nil), result.Concepts...))
		job.ErrorMessage = nil
	})
}

func (r *MemoryEmbeddingJobRepository) MarkFailed(_ context.Context, id string, message string) error {
	return r.transition(id, model.JobFailed, func(job *model.EmbeddingJob) {
		job.ErrorMessage = &message
	})
}

func (r *MemoryEmbeddingJobRepository) UpdateStatus(_ context.Context, id string, status model.JobStatus) error {
	if !status.Valid() || status.Terminal() || status == model.JobQueued {
		return apperror.NewValidation(fmt.Sprintf("status %q cannot be set directly", status), map[string]string{"status": "invalid"})
	}
	return r.transition(id, status, func(*model.EmbeddingJob) {})
}

func (r *MemoryEmbeddingJobRepository) transition(id string, target model.JobStatus, apply func(*model.EmbeddingJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return apperror.New(apperror.KindNotFound, "find job "+id)
	}
	if !model.CanTransition(job.Status, target) {
		return apperror.New(apperror.KindInvalidTransition,
			fmt.Sprintf("job %s: %s -> %s", id, job.Status, target))
	}
	apply(&job)
	job.Status = target
	job.UpdatedAt = r.now()
	r.jobs[id] = job
	return nil
}

func (r *MemoryEmbeddingJobRepository) ListStaleQueued(_ context.Context, olderThan time.Duration, limit int) ([]model.EmbeddingJob, error) {
	return r.listOlder(model.JobQueued, olderThan, limit), nil
}

// listOlder returns jobs in status idle for longer than olderThan, oldest first.
func (r *MemoryEmbeddingJobRepository) listOlder(status model.JobStatus, olderThan time.Duration, limit int) []model.EmbeddingJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	var out []model.EmbeddingJob
	for _, job := range r.jobs {
		if job.Status == status && job.UpdatedAt.Before(cutoff) {
			out = append(out, cloneJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *MemoryEmbeddingJobRepository) ListExpiredProcessing(_ context.Context, lease time.Duration, limit int) ([]model.EmbeddingJob, error) {
	return r.listOlder(model.JobProcessing, lease, limit), nil
}

func (r *MemoryEmbeddingJobRepository) TouchQueued(_ context.Context, id string, olderThan time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	now := r.now()
	if !ok || job.Status != model.JobQueued || !job.UpdatedAt.Before(now.Add(-olderThan)) {
		return false, nil
	}
	job.UpdatedAt = now
	r.jobs[id] = job
	return true, nil
}

func cloneJob(job model.EmbeddingJob) model.EmbeddingJob {
	if job.Concepts != nil {
		job.Concepts = append(datatypes.JSONSlice[string](nil), job.Concepts...)
	}
	return job
}
