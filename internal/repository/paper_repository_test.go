package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/fadilmartias/aca-radar/internal/model"
	"github.com/fadilmartias/aca-radar/internal/ranking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func seedPapers(t *testing.T, repo *PaperRepository) {
	t.Helper()
	ctx := context.Background()
	papers := []model.Paper{
		{OriginID: "2401.00001", Title: "A", Journal: "Nature", Published: day("2024-01-10").Add(15 * time.Hour)},
		{OriginID: "2402.00002", Title: "B", Journal: "Nature", Published: day("2024-02-01")},
		{OriginID: "2403.00003", Title: "C", Journal: "MIS Quarterly", Published: day("2024-03-05")},
		{OriginID: "2404.00004", Title: "D", Journal: "Science", Published: day("2024-04-20")},
	}
	for i := range papers {
		require.NoError(t, repo.Upsert(ctx, &papers[i]))
	}
}

func titles(papers []model.Paper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.Title
	}
	return out
}

func TestFindCandidatesFilters(t *testing.T) {
	repo := NewPaperRepository(openTestDB(t))
	seedPapers(t, repo)
	ctx := context.Background()

	got, err := repo.FindCandidates(ctx, CandidateFilter{Journals: []string{"Nature", "MIS Quarterly"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, titles(got))

	minDate, maxDate := day("2024-01-10"), day("2024-02-01")
	got, err = repo.FindCandidates(ctx, CandidateFilter{
		Journals: []string{"Nature", "MIS Quarterly"},
		MinDate:  &minDate,
		MaxDate:  &maxDate,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, titles(got), "date bounds are inclusive days")

	n, err := repo.Count(ctx, CandidateFilter{Journals: []string{"Nature"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestFindCandidatesIsBounded(t *testing.T) {
	repo := NewPaperRepository(openTestDB(t))
	ctx := context.Background()
	base := day("2023-01-01")
	for i := 0; i < ranking.MaxCandidates+5; i++ {
		require.NoError(t, repo.Upsert(ctx, &model.Paper{
			OriginID:  fmt.Sprintf("p-%d", i),
			Journal:   "Nature",
			Published: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := repo.FindCandidates(ctx, CandidateFilter{Journals: []string{"Nature"}, Limit: 10_000})
	require.NoError(t, err)
	assert.Len(t, got, ranking.MaxCandidates)
	assert.Equal(t, fmt.Sprintf("p-%d", ranking.MaxCandidates+4), got[0].OriginID, "newest first")
}

func TestUpsertAndEmbeddings(t *testing.T) {
	repo := NewPaperRepository(openTestDB(t))
	seedPapers(t, repo)
	ctx := context.Background()

	missing, err := repo.ListMissingEmbeddings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 4)

	require.NoError(t, repo.UpdateEmbedding(ctx, missing[0].ID, []float32{0.5, 0.25}))

	// refreshing metadata keeps the stored embedding
	require.NoError(t, repo.Upsert(ctx, &model.Paper{
		OriginID:        missing[0].OriginID,
		Title:           "A (revised)",
		Authors:         []string{"Ada Lovelace", "Alan Turing"},
		PDFURL:          "https://arxiv.org/pdf/" + missing[0].OriginID,
		PrimaryCategory: "cs.LG",
		Journal:         missing[0].Journal,
		Published:       missing[0].Published,
	}))

	got, err := repo.FindCandidates(ctx, CandidateFilter{Journals: []string{missing[0].Journal}})
	require.NoError(t, err)
	var revised *model.Paper
	for i := range got {
		if got[i].OriginID == missing[0].OriginID {
			revised = &got[i]
		}
	}
	require.NotNil(t, revised)
	assert.Equal(t, "A (revised)", revised.Title)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, []string(revised.Authors))
	assert.Equal(t, "https://arxiv.org/pdf/"+missing[0].OriginID, revised.PDFURL)
	assert.Equal(t, "cs.LG", revised.PrimaryCategory)
	assert.Equal(t, []float32{0.5, 0.25}, revised.EmbeddingValues())

	missing, err = repo.ListMissingEmbeddings(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, missing, 3)

	err = repo.UpdateEmbedding(ctx, 9999, []float32{1})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}
