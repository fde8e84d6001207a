package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/fadilmartias/aca-radar/internal/logging"
	"github.com/fadilmartias/aca-radar/internal/metrics"
	"github.com/fadilmartias/aca-radar/internal/model"
	"github.com/fadilmartias/aca-radar/internal/queue"
	"github.com/fadilmartias/aca-radar/internal/repository"
	"github.com/fadilmartias/aca-radar/internal/service"
	"github.com/fadilmartias/aca-radar/internal/vector"
	"github.com/rs/zerolog"
)

const (
	DefaultLease           = 60 * time.Second
	DefaultPipelineTimeout = 45 * time.Second
)

type EmbeddingWorkerConfig struct {
	Lease           time.Duration
	PipelineTimeout time.Duration
}

// EmbeddingWorker executes embed requests. Exclusivity comes from the job
// store claim; the queue may deliver the same request to several workers.
type EmbeddingWorker struct {
	jobs      repository.EmbeddingJobStore
	extractor service.ConceptExtractor
	embedder  service.Embedder
	projector service.Projector
	notifier  service.Notifier
	cfg       EmbeddingWorkerConfig
}

func NewEmbeddingWorker(jobs repository.EmbeddingJobStore, pipeline *service.Pipeline, cfg EmbeddingWorkerConfig) *EmbeddingWorker {
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultLease
	}
	if cfg.PipelineTimeout <= 0 || cfg.PipelineTimeout >= cfg.Lease {
		cfg.PipelineTimeout = cfg.Lease * 3 / 4
	}
	notifier := pipeline.Notifier
	if notifier == nil {
		notifier = service.NopNotifier{}
	}
	return &EmbeddingWorker{
		jobs:      jobs,
		extractor: pipeline.Extractor,
		embedder:  pipeline.Embedder,
		projector: pipeline.Projector,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// HandleMessage processes one queue payload. It returns an error only when
// the job store failed, so the message is redelivered; every other outcome,
// including malformed messages and lost claims, acknowledges it.
func (w *EmbeddingWorker) HandleMessage(ctx context.Context, payload []byte) error {
	req, err := queue.DecodeEmbedRequest(payload)
	if errors.Is(err, queue.ErrUnknownMessageType) {
		metrics.RecordIgnoredMessage("unknown_type")
		logging.Ctx(ctx).Debug().Err(err).Msg("ignoring message")
		return nil
	}
	if err != nil {
		metrics.RecordIgnoredMessage("malformed")
		logging.Ctx(ctx).Warn().Err(err).Msg("dropping malformed embed request")
		return nil
	}

	log := logging.Ctx(ctx).With().Str("job_id", req.JobID).Logger()
	ctx = logging.WithContext(ctx, log)

	claimed, err := w.jobs.TryClaim(ctx, req.JobID, w.cfg.Lease)
	if err != nil {
		return fmt.Errorf("claim job %s: %w", req.JobID, err)
	}
	metrics.RecordClaim(claimed)
	if !claimed {
		log.Debug().Msg("job already claimed or finished")
		return nil
	}

	result, pipelineErr := w.run(ctx, req)
	metrics.RecordJobOutcome(pipelineErr)
	if pipelineErr != nil {
		return w.fail(ctx, log, req.JobID, pipelineErr)
	}

	if err := w.jobs.MarkCompleted(ctx, req.JobID, result); err != nil {
		if apperror.IsKind(err, apperror.KindInvalidTransition) {
			log.Warn().Err(err).Msg("job finished elsewhere, dropping result")
			return nil
		}
		return fmt.Errorf("complete job %s: %w", req.JobID, err)
	}

	w.notifier.Notify(ctx, req.JobID, service.ProgressEvent{
		Status:  string(model.JobCompleted),
		Message: "Analysis done",
		Percent: 100,
		Payload: map[string]any{"vector_2d": result.Vector2D},
	})
	log.Info().Int("concepts", len(result.Concepts)).Int("dim", result.EmbeddingDim).Msg("embedding job completed")
	return nil
}

func (w *EmbeddingWorker) fail(ctx context.Context, log zerolog.Logger, jobID string, cause error) error {
	log.Warn().Err(cause).Str("kind", string(apperror.KindOf(cause))).Msg("embedding job failed")

	if err := w.jobs.MarkFailed(ctx, jobID, failureMessage(cause)); err != nil {
		if apperror.IsKind(err, apperror.KindInvalidTransition) {
			return nil
		}
		return fmt.Errorf("fail job %s: %w", jobID, err)
	}
	w.notifier.Notify(ctx, jobID, service.ProgressEvent{
		Status:  string(model.JobFailed),
		Message: failureMessage(cause),
		Percent: 100,
	})
	return nil
}

// run executes the pipeline under the per-job timeout. A panic in any stage
// becomes an ordinary failure.
func (w *EmbeddingWorker) run(ctx context.Context, req queue.EmbedRequest) (result model.CompletedResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.PipelineTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	w.progress(ctx, req.JobID, "Processing started", 10)

	var concepts []string
	err = w.stage(ctx, "extract", func(ctx context.Context) error {
		var err error
		concepts, err = w.extractor.ExtractConcepts(ctx, req.Term)
		if err != nil {
			return apperror.Wrap(apperror.KindExtractionFailed, "extract concepts", err)
		}
		if len(concepts) == 0 {
			return apperror.New(apperror.KindExtractionFailed, "no concepts extracted")
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	w.progress(ctx, req.JobID, "Concepts extracted", 25)

	var embedding []float32
	err = w.stage(ctx, "embed", func(ctx context.Context) error {
		var err error
		embedding, err = w.embedder.Embed(ctx, strings.Join(concepts, ", "))
		if err != nil {
			return apperror.Wrap(apperror.KindEmbeddingFailed, "embed concepts", err)
		}
		if len(embedding) == 0 || !vector.AllFinite(embedding) {
			return apperror.New(apperror.KindEmbeddingFailed, "embedding is empty or not finite")
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	w.progress(ctx, req.JobID, "Embedding computed", 50)

	var xy [2]float64
	err = w.stage(ctx, "project", func(ctx context.Context) error {
		var err error
		xy, err = w.projector.Project(ctx, embedding)
		if err != nil {
			return apperror.Wrap(apperror.KindProjectionFailed, "reduce dimensions", err)
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	w.progress(ctx, req.JobID, "Dimensions reduced", 75)

	b64, dim := vector.Encode(embedding)
	return model.CompletedResult{
		Vector2D:     xy,
		EmbeddingB64: b64,
		EmbeddingDim: dim,
		Concepts:     concepts,
	}, nil
}

func (w *EmbeddingWorker) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	metrics.RecordStage(name, time.Since(start))
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		err = fmt.Errorf("%w (%v)", err, ctx.Err())
	}
	return err
}

func (w *EmbeddingWorker) progress(ctx context.Context, jobID, message string, percent int) {
	w.notifier.Notify(ctx, jobID, service.ProgressEvent{
		Status:  string(model.JobProcessing),
		Message: message,
		Percent: percent,
	})
}

func failureMessage(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr.Cause == nil {
		return appErr.Message
	}
	return err.Error()
}
