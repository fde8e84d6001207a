package service

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/tidwall/gjson"
)

// PCAProjector projects embeddings with precomputed PCA parameters:
// xy = (v - mean) . components^T, components being 2 x d.
type PCAProjector struct {
	mean       []float64
	components [2][]float64
}

var _ Projector = (*PCAProjector)(nil)

// LoadPCAProjector reads {"mean": [...]} and {"components": [[...], [...]]}.
// Bare arrays are accepted too, and a d x 2 component matrix is transposed.
func LoadPCAProjector(meanPath, componentsPath string) (*PCAProjector, error) {
	meanRaw, err := os.ReadFile(meanPath)
	if err != nil {
		return nil, fmt.Errorf("missing PCA mean file: %w", err)
	}
	compRaw, err := os.ReadFile(componentsPath)
	if err != nil {
		return nil, fmt.Errorf("missing PCA components file: %w", err)
	}
	return NewPCAProjector(meanRaw, compRaw)
}

func NewPCAProjector(meanJSON, componentsJSON []byte) (*PCAProjector, error) {
	meanNode := gjson.ParseBytes(meanJSON)
	if !meanNode.IsArray() {
		meanNode = meanNode.Get("mean")
	}
	mean, err := floatArray(meanNode)
	if err != nil {
		return nil, fmt.Errorf("PCA mean: %w", err)
	}
	if len(mean) < 2 {
		return nil, fmt.Errorf("PCA mean must have at least 2 dimensions")
	}

	compNode := gjson.ParseBytes(componentsJSON)
	if !compNode.IsArray() {
		compNode = compNode.Get("components")
	}
	var rows [][]float64
	var rowErr error
	compNode.ForEach(func(_, row gjson.Result) bool {
		values, err := floatArray(row)
		if err != nil {
			rowErr = err
			return false
		}
		rows = append(rows, values)
		return true
	})
	if rowErr != nil {
		return nil, fmt.Errorf("PCA components: %w", rowErr)
	}

	d := len(mean)
	if d != 2 && len(rows) == d && rowsOfLen(rows, 2) {
		rows = transpose(rows)
	}
	if len(rows) != 2 {
		return nil, fmt.Errorf("PCA components must have 2 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if len(row) != d {
			return nil, fmt.Errorf("dim mismatch: mean length %d, component length %d", d, len(row))
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("PCA components contain NaN/Inf")
			}
		}
	}
	return &PCAProjector{mean: mean, components: [2][]float64{rows[0], rows[1]}}, nil
}

func (p *PCAProjector) Project(_ context.Context, embedding []float32) ([2]float64, error) {
	if len(embedding) != len(p.mean) {
		return [2]float64{}, fmt.Errorf("embedding dim %d != PCA dim %d", len(embedding), len(p.mean))
	}
	var xy [2]float64
	for i, v := range embedding {
		centered := float64(v) - p.mean[i]
		xy[0] += centered * p.components[0][i]
		xy[1] += centered * p.components[1][i]
	}
	return pair(xy[:])
}

func rowsOfLen(m [][]float64, n int) bool {
	for _, row := range m {
		if len(row) != n {
			return false
		}
	}
	return true
}

func transpose(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return m
	}
	out := make([][]float64, len(m[0]))
	for j := range out {
		out[j] = make([]float64, len(m))
		for i := range m {
			out[j][i] = m[i][j]
		}
	}
	return out
}
