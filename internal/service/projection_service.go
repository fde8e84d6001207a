package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// ProjectionService calls a 2D projection HTTP service. The response is either
// a bare [x, y] pair or an object with a vector_2d pair.
type ProjectionService struct {
	client *resty.Client
	url    string
}

var _ Projector = (*ProjectionService)(nil)

func NewProjectionService(url string, timeout time.Duration) *ProjectionService {
	return &ProjectionService{
		client: resty.New().SetTimeout(timeout).SetHeader("Content-Type", "application/json"),
		url:    url,
	}
}

func (s *ProjectionService) Project(ctx context.Context, embedding []float32) ([2]float64, error) {
	if len(embedding) < 2 {
		return [2]float64{}, fmt.Errorf("embedding dimension must be >= 2, got %d", len(embedding))
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"embedding": embedding}).
		Post(s.url)
	if err != nil {
		return [2]float64{}, fmt.Errorf("projection service request: %w", err)
	}
	if resp.IsError() {
		return [2]float64{}, fmt.Errorf("projection service returned %d", resp.StatusCode())
	}

	body := gjson.ParseBytes(resp.Body())
	if !body.IsArray() {
		body = body.Get("vector_2d")
	}
	values, err := floatArray(body)
	if err != nil {
		return [2]float64{}, fmt.Errorf("projection service response: %w", err)
	}
	return pair(values)
}

func pair(values []float64) ([2]float64, error) {
	if len(values) != 2 {
		return [2]float64{}, fmt.Errorf("expected 2 coordinates, got %d", len(values))
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return [2]float64{}, fmt.Errorf("projection contains non-finite values")
		}
	}
	return [2]float64{values[0], values[1]}, nil
}
