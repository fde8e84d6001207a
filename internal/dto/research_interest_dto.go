package dto

import (
	"time"

	"github.com/fadilmartias/aca-radar/internal/model"
)

type SubmitResearchInterestRequest struct {
	Term string `json:"term"`
}

type SubmitResearchInterestResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Cached bool   `json:"cached"`
}

type ResearchInterestJobDTO struct {
	ID           string      `json:"id"`
	Term         string      `json:"term"`
	Status       string      `json:"status"`
	Vector2D     *[2]float64 `json:"vector_2d"`
	Concepts     []string    `json:"concepts"`
	EmbeddingDim *int        `json:"embedding_dim,omitempty"`
	Error        *string     `json:"error"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func NewResearchInterestJobDTO(job *model.EmbeddingJob) ResearchInterestJobDTO {
	out := ResearchInterestJobDTO{
		ID:           job.ID,
		Term:         job.Term,
		Status:       string(job.Status),
		Concepts:     []string(job.Concepts),
		EmbeddingDim: job.EmbeddingDim,
		Error:        job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
	if out.Concepts == nil {
		out.Concepts = []string{}
	}
	if v, ok := job.Vector2D(); ok {
		out.Vector2D = &v
	}
	return out
}
