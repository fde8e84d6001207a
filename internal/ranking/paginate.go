package ranking

type PageResult struct {
	Items      []RankedPaper
	Page       int
	PageSize   int
	TotalCount int
	TotalPages int
	PrevPage   *int
	NextPage   *int
}

// Paginate slices ranked into 1-based pages. A page past the end yields no
// items but keeps the totals.
func Paginate(ranked []RankedPaper, page, pageSize int) PageResult {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	total := len(ranked)
	totalPages := (total + pageSize - 1) / pageSize

	res := PageResult{
		Items:      []RankedPaper{},
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}
	if page > 1 {
		prev := page - 1
		res.PrevPage = &prev
	}
	if page < totalPages {
		next := page + 1
		res.NextPage = &next
	}

	offset := (page - 1) * pageSize
	if offset < total {
		end := min(offset+pageSize, total)
		res.Items = ranked[offset:end]
	}
	return res
}

type TopResult struct {
	Items     []RankedPaper
	TopN      int
	Returned  int
	Available int
}

// TopN returns the first n ranked papers, bounded by maxN.
func TopN(ranked []RankedPaper, n, maxN int) TopResult {
	if maxN < 1 {
		maxN = MaxTopN
	}
	if n < 1 {
		n = DefaultTopN
	}
	n = min(n, maxN)

	items := ranked[:min(n, len(ranked))]
	return TopResult{
		Items:     items,
		TopN:      n,
		Returned:  len(items),
		Available: len(ranked),
	}
}
