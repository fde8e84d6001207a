package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fadilmartias/aca-radar/internal/vector"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// EmbedService calls a sentence-embedding HTTP service:
//
//	POST {url} {"text": "..."} -> {"embedding": [0.1, ...]}
type EmbedService struct {
	client *resty.Client
	url    string
}

var _ Embedder = (*EmbedService)(nil)

func NewEmbedService(url string, timeout time.Duration) *EmbedService {
	return &EmbedService{
		client: resty.New().SetTimeout(timeout).SetHeader("Content-Type", "application/json"),
		url:    url,
	}
}

func (s *EmbedService) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text for embedding cannot be empty")
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		Post(s.url)
	if err != nil {
		return nil, fmt.Errorf("embed service request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embed service returned %d", resp.StatusCode())
	}

	values, err := floatArray(gjson.GetBytes(resp.Body(), "embedding"))
	if err != nil {
		return nil, fmt.Errorf("embed service response: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("embed service returned an empty embedding")
	}
	embedding := vector.FromFloat64(values)
	if !vector.AllFinite(embedding) {
		return nil, fmt.Errorf("embed service returned non-finite values")
	}
	return embedding, nil
}

// floatArray reads a JSON array of numbers, rejecting any other element.
func floatArray(r gjson.Result) ([]float64, error) {
	if !r.IsArray() {
		return nil, fmt.Errorf("expected a JSON array")
	}
	var (
		out []float64
		bad error
	)
	r.ForEach(func(_, v gjson.Result) bool {
		if v.Type != gjson.Number {
			bad = fmt.Errorf("element %d is not a number", len(out))
			return false
		}
		out = append(out, v.Float())
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return out, nil
}
