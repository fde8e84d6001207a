package ranking

import (
	"sort"

	"github.com/fadilmartias/aca-radar/internal/model"
)

type RankedPaper struct {
	Paper model.Paper
	Score Score
}

// Rank scores every paper against research and sorts them stably, known
// scores descending first. When research is not usable every score is
// unknown and the incoming order is kept.
func Rank(papers []model.Paper, research []float32) []RankedPaper {
	out := make([]RankedPaper, len(papers))
	enabled := Usable(research)
	for i, p := range papers {
		out[i] = RankedPaper{Paper: p, Score: UnknownScore()}
		if !enabled {
			continue
		}
		if v, ok := Cosine(research, p.EmbeddingValues()); ok {
			out[i].Score = KnownScore(v)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.Less(out[j].Score)
	})
	return out
}

// CountUnknown returns how many ranked papers carry an unknown score.
func CountUnknown(ranked []RankedPaper) int {
	n := 0
	for _, r := range ranked {
		if !r.Score.Known {
			n++
		}
	}
	return n
}
