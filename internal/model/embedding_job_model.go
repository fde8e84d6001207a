package model

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether a job may move from one status to another.
// Statuses only move forward: queued -> processing -> completed|failed.
// queued may also fail directly (e.g. the work message could not be published).
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobQueued:
		return to == JobProcessing || to == JobFailed
	case JobProcessing:
		return to == JobProcessing || to == JobCompleted || to == JobFailed
	}
	return false
}

// Predecessors returns every status that may transition into to.
func Predecessors(to JobStatus) []JobStatus {
	var out []JobStatus
	for _, from := range []JobStatus{JobQueued, JobProcessing, JobCompleted, JobFailed} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// EmbeddingJob is one asynchronous embedding of a research-interest term.
// VectorX/VectorY and the embedding columns are populated only when Status is
// completed; ErrorMessage only when failed.
type EmbeddingJob struct {
	ID           string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Term         string                      `gorm:"type:text;not null;index:idx_research_interest_jobs_term_status,priority:1" json:"term"`
	Status       JobStatus                   `gorm:"type:varchar(20);not null;default:queued;index:idx_research_interest_jobs_term_status,priority:2" json:"status"`
	VectorX      *float64                    `json:"vector_x,omitempty"`
	VectorY      *float64                    `json:"vector_y,omitempty"`
	EmbeddingB64 *string                     `gorm:"type:text" json:"-"`
	EmbeddingDim *int                        `json:"embedding_dim,omitempty"`
	Concepts     datatypes.JSONSlice[string] `json:"concepts"`
	ErrorMessage *string                     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `gorm:"index" json:"updated_at"`
}

func (j *EmbeddingJob) TableName() string {
	return "research_interest_jobs"
}

func (j *EmbeddingJob) Vector2D() ([2]float64, bool) {
	if j.VectorX == nil || j.VectorY == nil {
		return [2]float64{}, false
	}
	return [2]float64{*j.VectorX, *j.VectorY}, true
}

func (j *EmbeddingJob) IsTerminal() bool {
	return j.Status.Terminal()
}

// CompletedResult is what a worker writes back when the pipeline succeeds.
type CompletedResult struct {
	Vector2D     [2]float64
	EmbeddingB64 string
	EmbeddingDim int
	Concepts     []string
}
