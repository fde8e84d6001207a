package response

import "github.com/fadilmartias/aca-radar/internal/ranking"

type Pagination struct {
	Current    int  `json:"current"`
	PageSize   int  `json:"page_size"`
	TotalPages int  `json:"total_pages"`
	TotalCount int  `json:"total_count"`
	PrevPage   *int `json:"prev_page"`
	NextPage   *int `json:"next_page"`
}

func NewPagination(p ranking.PageResult) *Pagination {
	return &Pagination{
		Current:    p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
		TotalCount: p.TotalCount,
		PrevPage:   p.PrevPage,
		NextPage:   p.NextPage,
	}
}
