package usecase

import (
	"context"
	"time"

	"github.com/fadilmartias/aca-radar/internal/logging"
	"github.com/fadilmartias/aca-radar/internal/metrics"
	"github.com/fadilmartias/aca-radar/internal/model"
	"github.com/fadilmartias/aca-radar/internal/queue"
	"github.com/fadilmartias/aca-radar/internal/repository"
)

type ReconcilerConfig struct {
	StaleAfter time.Duration
	// Lease must match the lease workers claim with.
	Lease     time.Duration
	Interval  time.Duration
	BatchSize int
}

// Reconciler republishes jobs whose work message was lost: queued rows left
// behind when the API crashed between creating and publishing, and processing
// rows whose worker could not record the outcome before its lease ran out.
type Reconciler struct {
	jobs      repository.EmbeddingJobStore
	publisher EmbedRequestPublisher
	cfg       ReconcilerConfig
}

func NewReconciler(jobs repository.EmbeddingJobStore, publisher EmbedRequestPublisher, cfg ReconcilerConfig) *Reconciler {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Minute
	}
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultLease
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Reconciler{jobs: jobs, publisher: publisher, cfg: cfg}
}

// Sweep republishes one batch of stale queued jobs and one batch of expired
// processing jobs, and returns how many were republished. A queued job is only
// republished by the sweeper that wins TouchQueued. Expired processing jobs
// are republished on every sweep until a worker claims them; the claim keeps
// execution exclusive.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	republished, err := r.sweepQueued(ctx)
	metrics.RecordRepublished(republished)
	if err != nil {
		return republished, err
	}

	expired, err := r.jobs.ListExpiredProcessing(ctx, r.cfg.Lease, r.cfg.BatchSize)
	if err != nil {
		return republished, err
	}
	n := 0
	for _, job := range expired {
		if r.republish(ctx, job) {
			n++
		}
	}
	metrics.RecordRepublished(n)
	return republished + n, nil
}

func (r *Reconciler) sweepQueued(ctx context.Context) (int, error) {
	stale, err := r.jobs.ListStaleQueued(ctx, r.cfg.StaleAfter, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	republished := 0
	for _, job := range stale {
		won, err := r.jobs.TouchQueued(ctx, job.ID, r.cfg.StaleAfter)
		if err != nil {
			return republished, err
		}
		// touched rows are picked up again once they go stale
		if won && r.republish(ctx, job) {
			republished++
		}
	}
	return republished, nil
}

func (r *Reconciler) republish(ctx context.Context, job model.EmbeddingJob) bool {
	if err := r.publisher.PublishEmbedRequest(ctx, queue.NewEmbedRequest(job.ID, job.Term)); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("job_id", job.ID).Str("status", string(job.Status)).Msg("republish failed")
		return false
	}
	return true
}

// Run sweeps every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				logging.Ctx(ctx).Error().Err(err).Msg("reconciliation sweep failed")
				continue
			}
			if n > 0 {
				logging.Ctx(ctx).Info().Int("republished", n).Msg("republished stale jobs")
			}
		}
	}
}
