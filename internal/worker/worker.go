// Package worker runs the embedding consumer and the reconciliation sweep
// until their context ends.
package worker

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/fadilmartias/aca-radar/internal/config"
	"github.com/fadilmartias/aca-radar/internal/logging"
	"github.com/fadilmartias/aca-radar/internal/queue"
	"github.com/fadilmartias/aca-radar/internal/repository"
	"github.com/fadilmartias/aca-radar/internal/service"
	"github.com/fadilmartias/aca-radar/internal/usecase"
	"golang.org/x/sync/errgroup"
)

type Runner struct {
	router     *message.Router
	reconciler *usecase.Reconciler
}

func New(
	jobs repository.EmbeddingJobStore,
	pipeline *service.Pipeline,
	sub message.Subscriber,
	publisher usecase.EmbedRequestPublisher,
	queueCfg *config.QueueConfig,
	workerCfg *config.WorkerConfig,
	logger watermill.LoggerAdapter,
) (*Runner, error) {
	embedder := usecase.NewEmbeddingWorker(jobs, pipeline, usecase.EmbeddingWorkerConfig{
		Lease:           workerCfg.LeaseDuration,
		PipelineTimeout: workerCfg.PipelineTimeout,
	})
	router, err := queue.NewRouter(queueCfg.Topic, sub, embedder.HandleMessage, queueCfg.CloseTimeout, logger)
	if err != nil {
		return nil, err
	}
	reconciler := usecase.NewReconciler(jobs, publisher, usecase.ReconcilerConfig{
		StaleAfter: workerCfg.StaleQueuedAfter,
		Lease:      workerCfg.LeaseDuration,
		Interval:   workerCfg.SweepInterval,
		BatchSize:  workerCfg.SweepBatchSize,
	})
	return &Runner{router: router, reconciler: reconciler}, nil
}

// Running is closed once the router consumes messages.
func (r *Runner) Running() chan struct{} {
	return r.router.Running()
}

// Run blocks until ctx is done or the router stops with an error.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.router.Run(ctx); err != nil {
			return fmt.Errorf("embedding router: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		r.reconciler.Run(ctx)
		return nil
	})

	logging.Info().Msg("embedding worker started")
	err := g.Wait()
	if closeErr := r.router.Close(); closeErr != nil {
		logging.Warn().Err(closeErr).Msg("router close")
	}
	return err
}
