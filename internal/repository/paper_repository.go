package repository

import (
	"context"
	"time"

	"github.com/fadilmartias/aca-radar/internal/model"
	"github.com/fadilmartias/aca-radar/internal/ranking"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CandidateFilter narrows the papers considered for ranking. Dates are
// inclusive calendar days in UTC.
type CandidateFilter struct {
	Journals []string
	MinDate  *time.Time
	MaxDate  *time.Time
	Limit    int
}

type PaperRepository struct {
	db *gorm.DB
}

func NewPaperRepository(db *gorm.DB) *PaperRepository {
	return &PaperRepository{db}
}

// FindCandidates returns the newest papers matching f, never more than
// ranking.MaxCandidates.
func (r *PaperRepository) FindCandidates(ctx context.Context, f CandidateFilter) ([]model.Paper, error) {
	limit := f.Limit
	if limit <= 0 || limit > ranking.MaxCandidates {
		limit = ranking.MaxCandidates
	}

	var papers []model.Paper
	err := r.filtered(ctx, f).
		Order("published DESC").
		Order("id ASC").
		Limit(limit).
		Find(&papers).Error
	if err != nil {
		return nil, storageError("find candidate papers", err)
	}
	return papers, nil
}

// Count returns how many papers match f, ignoring the candidate cap.
func (r *PaperRepository) Count(ctx context.Context, f CandidateFilter) (int64, error) {
	var n int64
	if err := r.filtered(ctx, f).Model(&model.Paper{}).Count(&n).Error; err != nil {
		return 0, storageError("count papers", err)
	}
	return n, nil
}

func (r *PaperRepository) filtered(ctx context.Context, f CandidateFilter) *gorm.DB {
	q := r.db.WithContext(ctx)
	if len(f.Journals) > 0 {
		q = q.Where("journal IN ?", f.Journals)
	}
	if f.MinDate != nil {
		q = q.Where("published >= ?", dayStart(*f.MinDate))
	}
	if f.MaxDate != nil {
		q = q.Where("published < ?", dayStart(*f.MaxDate).AddDate(0, 0, 1))
	}
	return q
}

func (r *PaperRepository) ListMissingEmbeddings(ctx context.Context, limit int) ([]model.Paper, error) {
	var papers []model.Paper
	err := r.db.WithContext(ctx).
		Where("embedding IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&papers).Error
	if err != nil {
		return nil, storageError("list papers without embedding", err)
	}
	return papers, nil
}

func (r *PaperRepository) UpdateEmbedding(ctx context.Context, id uint, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	res := r.db.WithContext(ctx).
		Model(&model.Paper{}).
		Where("id = ?", id).
		Update("embedding", &vec)
	if res.Error != nil {
		return storageError("update paper embedding", res.Error)
	}
	if res.RowsAffected == 0 {
		return storageError("update paper embedding", gorm.ErrRecordNotFound)
	}
	return nil
}

// Upsert inserts p or refreshes the metadata of the paper with the same
// origin id. An existing embedding is kept.
func (r *PaperRepository) Upsert(ctx context.Context, p *model.Paper) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "origin_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "summary", "authors", "pdf_url", "primary_category", "journal", "published", "updated_at"}),
		}).
		Create(p).Error
	if err != nil {
		return storageError("upsert paper "+p.OriginID, err)
	}
	return nil
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
