package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type Paper struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	OriginID        string                      `gorm:"type:varchar(64);uniqueIndex" json:"origin_id"`
	Title           string                      `gorm:"type:text" json:"title"`
	Summary         string                      `gorm:"type:text" json:"summary"`
	Authors         datatypes.JSONSlice[string] `json:"authors"`
	PDFURL          string                      `gorm:"type:text" json:"pdf_url"`
	PrimaryCategory string                      `gorm:"type:varchar(64)" json:"primary_category"`
	Journal         string                      `gorm:"type:varchar(255);index" json:"journal"`
	Published       time.Time                   `gorm:"index" json:"published"`
	Embedding       *pgvector.Vector            `gorm:"type:vector" json:"-"` // dimension follows the configured embedder
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

func (p *Paper) TableName() string {
	return "papers"
}

// EmbeddingValues returns the stored embedding, or nil when the paper has none.
func (p *Paper) EmbeddingValues() []float32 {
	if p.Embedding == nil {
		return nil
	}
	return p.Embedding.Slice()
}
