// Package ranking orders candidate papers by cosine similarity to a research
// embedding. Numeric problems never abort a pass: the affected candidate gets
// an unknown score and sorts after every known one.
package ranking

import (
	"math"
	"strconv"
)

const (
	DefaultPageSize = 10
	MaxCandidates   = 250
	DefaultTopN     = 25
	MaxTopN         = 200
)

// Score is a similarity value that may be unknown. Unknown is distinct from 0.
type Score struct {
	Value float64
	Known bool
}

func KnownScore(v float64) Score { return Score{Value: v, Known: true} }

func UnknownScore() Score { return Score{} }

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Known {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, s.Value, 'g', -1, 64), nil
}

// Less orders known scores descending, unknown last.
func (s Score) Less(o Score) bool {
	switch {
	case s.Known && o.Known:
		return s.Value > o.Value
	case s.Known:
		return true
	default:
		return false
	}
}

// Usable reports whether v can take part in a cosine computation.
func Usable(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	var sum float64
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
		sum += f * f
	}
	return sum != 0
}

// Cosine returns the cosine similarity of a and b accumulated in float64.
// ok is false when the vectors are empty, differ in length, contain a
// non-finite component, have zero norm, or the result is not finite.
func Cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
			return 0, false
		}
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, false
	}
	return score, true
}
