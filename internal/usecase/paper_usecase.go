package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/fadilmartias/aca-radar/internal/config"
	"github.com/fadilmartias/aca-radar/internal/logging"
	"github.com/fadilmartias/aca-radar/internal/metrics"
	"github.com/fadilmartias/aca-radar/internal/model"
	"github.com/fadilmartias/aca-radar/internal/ranking"
	"github.com/fadilmartias/aca-radar/internal/repository"
	"github.com/fadilmartias/aca-radar/internal/service"
	"github.com/fadilmartias/aca-radar/internal/vector"
	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

// PaperSource is the paper candidate store.
type PaperSource interface {
	FindCandidates(ctx context.Context, f repository.CandidateFilter) ([]model.Paper, error)
	Count(ctx context.Context, f repository.CandidateFilter) (int64, error)
	ListMissingEmbeddings(ctx context.Context, limit int) ([]model.Paper, error)
	UpdateEmbedding(ctx context.Context, id uint, embedding []float32) error
}

type ListPapersRequest struct {
	Journals []string `validate:"required,min=1,max=10,unique,dive,required,max=255"`
	Page     int      `validate:"gte=0"`
	TopN     *int     `validate:"omitempty,min=1,max=200"`
	MinDate  string   `validate:"omitempty,datetime=2006-01-02"`
	MaxDate  string   `validate:"omitempty,datetime=2006-01-02"`
	JobID    string   `validate:"omitempty,uuid"`
}

// ResearchState says whether ranking had a research embedding to work with.
type ResearchState struct {
	JobID   string
	Term    string
	Status  model.JobStatus
	Vector  *[2]float64
	Enabled bool
}

type ListPapersResult struct {
	Papers   []ranking.RankedPaper
	Page     *ranking.PageResult
	Top      *ranking.TopResult
	Research ResearchState
	// Matching counts every stored paper matching the filters, including
	// those beyond the candidate window.
	Matching int64
}

type PaperUsecase struct {
	papers   PaperSource
	jobs     repository.EmbeddingJobStore
	embedder service.Embedder
	catalog  *config.JournalCatalog
	validate *validator.Validate
}

func NewPaperUsecase(papers PaperSource, jobs repository.EmbeddingJobStore, embedder service.Embedder, catalog *config.JournalCatalog) *PaperUsecase {
	return &PaperUsecase{
		papers:   papers,
		jobs:     jobs,
		embedder: embedder,
		catalog:  catalog,
		validate: validator.New(),
	}
}

func (uc *PaperUsecase) ListPapers(ctx context.Context, req ListPapersRequest) (*ListPapersResult, error) {
	filter, err := uc.filter(req)
	if err != nil {
		return nil, err
	}

	research, embedding, err := uc.research(ctx, req.JobID)
	if err != nil {
		return nil, err
	}

	candidates, err := uc.papers.FindCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}
	matching, err := uc.papers.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	ranked := ranking.Rank(candidates, embedding)
	metrics.RecordRanking(len(ranked), ranking.CountUnknown(ranked))

	out := &ListPapersResult{Research: research, Matching: matching}
	if req.TopN != nil {
		top := ranking.TopN(ranked, *req.TopN, ranking.MaxTopN)
		out.Top = &top
		out.Papers = top.Items
	} else {
		page := ranking.Paginate(ranked, req.Page, ranking.DefaultPageSize)
		out.Page = &page
		out.Papers = page.Items
	}
	return out, nil
}

func (uc *PaperUsecase) filter(req ListPapersRequest) (repository.CandidateFilter, error) {
	for i := range req.Journals {
		req.Journals[i] = strings.TrimSpace(req.Journals[i])
	}
	if err := uc.validate.Struct(req); err != nil {
		return repository.CandidateFilter{}, apperror.NewValidation("invalid paper listing request", validationFields(err))
	}
	if unknown := uc.catalog.Unknown(req.Journals); len(unknown) > 0 {
		return repository.CandidateFilter{}, apperror.NewValidation("unknown journals",
			map[string]string{"journals": "unknown: " + strings.Join(unknown, ", ")})
	}

	f := repository.CandidateFilter{Journals: req.Journals, Limit: ranking.MaxCandidates}
	if req.MinDate != "" {
		d, _ := time.Parse(dateLayout, req.MinDate)
		f.MinDate = &d
	}
	if req.MaxDate != "" {
		d, _ := time.Parse(dateLayout, req.MaxDate)
		f.MaxDate = &d
	}
	if f.MinDate != nil && f.MaxDate != nil && f.MinDate.After(*f.MaxDate) {
		return repository.CandidateFilter{}, apperror.NewValidation("invalid date range",
			map[string]string{"min_date": "must not be after max_date"})
	}
	return f, nil
}

// research resolves the research embedding of jobID. A job that is not
// completed, or whose stored embedding is unreadable, disables similarity
// instead of failing the listing.
func (uc *PaperUsecase) research(ctx context.Context, jobID string) (ResearchState, []float32, error) {
	if jobID == "" {
		return ResearchState{}, nil, nil
	}
	job, err := uc.jobs.Find(ctx, jobID)
	if err != nil {
		return ResearchState{}, nil, fmt.Errorf("load research embedding: %w", err)
	}

	state := ResearchState{JobID: job.ID, Term: job.Term, Status: job.Status}
	if v, ok := job.Vector2D(); ok {
		state.Vector = &v
	}
	if job.Status != model.JobCompleted || job.EmbeddingB64 == nil || job.EmbeddingDim == nil {
		return state, nil, nil
	}

	embedding, err := vector.Decode(*job.EmbeddingB64, *job.EmbeddingDim)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("job_id", job.ID).Msg("stored embedding is corrupt, ranking disabled")
		return state, nil, nil
	}
	state.Enabled = ranking.Usable(embedding)
	return state, embedding, nil
}

// BackfillEmbeddings embeds up to limit papers that have no embedding yet and
// returns how many were stored. Papers that fail to embed are skipped.
func (uc *PaperUsecase) BackfillEmbeddings(ctx context.Context, limit int) (int, error) {
	if limit <= 0 || limit > ranking.MaxCandidates {
		limit = ranking.MaxCandidates
	}
	papers, err := uc.papers.ListMissingEmbeddings(ctx, limit)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, p := range papers {
		text := strings.TrimSpace(p.Title + "\n\n" + p.Summary)
		if text == "" {
			continue
		}
		embedding, err := uc.embedder.Embed(ctx, text)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stored, err
			}
			logging.Ctx(ctx).Warn().Err(err).Str("origin_id", p.OriginID).Msg("paper embedding failed")
			continue
		}
		if err := uc.papers.UpdateEmbedding(ctx, p.ID, embedding); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

func validationFields(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[fieldName(fe.StructField())] = fe.Tag()
		}
	}
	return out
}

var fieldNames = map[string]string{
	"Journals": "journals",
	"Page":     "page",
	"TopN":     "top_n",
	"MinDate":  "min_date",
	"MaxDate":  "max_date",
	"JobID":    "job_id",
}

func fieldName(s string) string {
	if n, ok := fieldNames[s]; ok {
		return n
	}
	return strings.ToLower(s)
}
