package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/fadilmartias/aca-radar/internal/logging"
	"github.com/fadilmartias/aca-radar/internal/metrics"
	"github.com/fadilmartias/aca-radar/internal/model"
	"github.com/fadilmartias/aca-radar/internal/queue"
	"github.com/fadilmartias/aca-radar/internal/repository"
	"github.com/google/uuid"
)

const (
	MaxTermLength = 500

	// DefaultFreshness is how long a completed embedding of the same term is
	// reused instead of queueing new work.
	DefaultFreshness = 7 * 24 * time.Hour
)

const allowedTermPunctuation = `-.,;:!?'"()[]/&+@#%`

// EmbedRequestPublisher is the part of queue.Publisher the coordinator needs.
type EmbedRequestPublisher interface {
	PublishEmbedRequest(ctx context.Context, req queue.EmbedRequest) error
}

type SubmitResult struct {
	JobID  string
	Status model.JobStatus
	Cached bool
}

type ResearchInterestUsecase struct {
	jobs      repository.EmbeddingJobStore
	publisher EmbedRequestPublisher
	freshness time.Duration
	newID     func() string
}

func NewResearchInterestUsecase(jobs repository.EmbeddingJobStore, publisher EmbedRequestPublisher, freshness time.Duration) *ResearchInterestUsecase {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &ResearchInterestUsecase{
		jobs:      jobs,
		publisher: publisher,
		freshness: freshness,
		newID:     uuid.NewString,
	}
}

// Submit returns the job that will hold the embedding of term. A fresh
// completed job for the same normalized term is reused; otherwise a queued
// job is created and an embed request published for it.
func (uc *ResearchInterestUsecase) Submit(ctx context.Context, term string) (SubmitResult, error) {
	if err := ValidateTerm(term); err != nil {
		metrics.RecordSubmission("invalid")
		return SubmitResult{}, err
	}
	normalized := Normalize(term)
	log := logging.Ctx(ctx).With().Str("term", normalized).Logger()

	cached, err := uc.jobs.FindCompletedByTerm(ctx, normalized, uc.freshness)
	if err != nil {
		metrics.RecordSubmission("error")
		return SubmitResult{}, apperror.Wrap(apperror.KindStorageUnavailable, "look up cached embedding", err)
	}
	if cached != nil {
		metrics.RecordSubmission("cached")
		log.Debug().Str("job_id", cached.ID).Msg("reusing completed embedding")
		return SubmitResult{JobID: cached.ID, Status: cached.Status, Cached: true}, nil
	}

	job := &model.EmbeddingJob{
		ID:     uc.newID(),
		Term:   normalized,
		Status: model.JobQueued,
	}
	if err := uc.jobs.Create(ctx, job); err != nil {
		metrics.RecordSubmission("error")
		return SubmitResult{}, apperror.Wrap(apperror.KindQueueingFailed, "create job", err)
	}

	if err := uc.publisher.PublishEmbedRequest(ctx, queue.NewEmbedRequest(job.ID, normalized)); err != nil {
		metrics.RecordSubmission("error")
		// the row must not stay queued with no message behind it
		if markErr := uc.jobs.MarkFailed(ctx, job.ID, "queueing failed: "+err.Error()); markErr != nil {
			log.Error().Err(markErr).Str("job_id", job.ID).Msg("could not fail unpublished job, reconciler will republish it")
		}
		return SubmitResult{}, apperror.Wrap(apperror.KindQueueingFailed, "publish embed request", err)
	}

	metrics.RecordSubmission("queued")
	log.Info().Str("job_id", job.ID).Msg("embedding job queued")
	return SubmitResult{JobID: job.ID, Status: model.JobQueued}, nil
}

func (uc *ResearchInterestUsecase) GetJob(ctx context.Context, id string) (*model.EmbeddingJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperror.NewValidation("invalid job id", map[string]string{"job_id": "must be a UUID"})
	}
	return uc.jobs.Find(ctx, id)
}

// Normalize trims term, lower-cases it and collapses internal whitespace.
func Normalize(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}

// ValidateTerm checks a raw term. Leading and trailing whitespace is ignored;
// inside the term only letters, digits, spaces and common punctuation are
// accepted.
func ValidateTerm(term string) error {
	fail := func(msg string) error {
		return apperror.NewValidation("invalid research interest", map[string]string{"term": msg})
	}

	if !utf8.ValidString(term) {
		return fail("must be valid UTF-8")
	}
	t := strings.TrimSpace(term)
	if t == "" {
		return fail("is required")
	}
	if n := utf8.RuneCountInString(t); n > MaxTermLength {
		return fail(fmt.Sprintf("must be at most %d characters, got %d", MaxTermLength, n))
	}
	for _, r := range t {
		switch {
		case unicode.IsControl(r):
			return fail("must not contain control characters")
		case unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsSpace(r):
		case strings.ContainsRune(allowedTermPunctuation, r):
		default:
			return fail(fmt.Sprintf("contains unsupported character %q", r))
		}
	}
	return nil
}
