package dto

import (
	"github.com/fadilmartias/aca-radar/internal/ranking"
	"github.com/fadilmartias/aca-radar/internal/usecase"
)

type PaperDTO struct {
	ID              uint          `json:"id"`
	OriginID        string        `json:"origin_id"`
	Title           string        `json:"title"`
	Summary         string        `json:"summary"`
	Authors         []string      `json:"authors"`
	PDFURL          string        `json:"pdf_url,omitempty"`
	Category        string        `json:"category,omitempty"`
	Journal         string        `json:"journal"`
	Published       string        `json:"published"`
	SimilarityScore ranking.Score `json:"similarity_score"`
}

type ResearchInterestMeta struct {
	JobID            string      `json:"job_id,omitempty"`
	Term             string      `json:"term,omitempty"`
	Status           string      `json:"status,omitempty"`
	Vector2D         *[2]float64 `json:"vector_2d,omitempty"`
	RankingAvailable bool        `json:"ranking_available"`
}

type PapersMeta struct {
	Journals         []string             `json:"journals"`
	Mode             string               `json:"mode"`
	TopN             int                  `json:"top_n,omitempty"`
	Returned         int                  `json:"returned"`
	Candidates       int                  `json:"candidates"`
	Matching         int64                `json:"matching"`
	ResearchInterest ResearchInterestMeta `json:"research_interest"`
}

func NewPaperDTOs(ranked []ranking.RankedPaper) []PaperDTO {
	out := make([]PaperDTO, len(ranked))
	for i, r := range ranked {
		authors := []string(r.Paper.Authors)
		if authors == nil {
			authors = []string{}
		}
		out[i] = PaperDTO{
			ID:              r.Paper.ID,
			OriginID:        r.Paper.OriginID,
			Title:           r.Paper.Title,
			Summary:         r.Paper.Summary,
			Authors:         authors,
			PDFURL:          r.Paper.PDFURL,
			Category:        r.Paper.PrimaryCategory,
			Journal:         r.Paper.Journal,
			Published:       r.Paper.Published.UTC().Format("2006-01-02"),
			SimilarityScore: r.Score,
		}
	}
	return out
}

func NewPapersMeta(journals []string, res *usecase.ListPapersResult) PapersMeta {
	meta := PapersMeta{
		Journals: journals,
		Returned: len(res.Papers),
		Matching: res.Matching,
		ResearchInterest: ResearchInterestMeta{
			JobID:            res.Research.JobID,
			Term:             res.Research.Term,
			Status:           string(res.Research.Status),
			Vector2D:         res.Research.Vector,
			RankingAvailable: res.Research.Enabled,
		},
	}
	if res.Top != nil {
		meta.Mode = "top_n"
		meta.TopN = res.Top.TopN
		meta.Candidates = res.Top.Available
	} else {
		meta.Mode = "paged"
		if res.Page != nil {
			meta.Candidates = res.Page.TotalCount
		}
	}
	return meta
}
