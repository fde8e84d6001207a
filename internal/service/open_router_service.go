package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fadilmartias/aca-radar/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// OpenRouterService extracts concepts through OpenRouter chat completions.
type OpenRouterService struct {
	client      *resty.Client
	Model       string
	MaxConcepts int
}

var _ ConceptExtractor = (*OpenRouterService)(nil)

func NewOpenRouterService(cfg *config.OpenRouterConfig, timeout time.Duration) *OpenRouterService {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &OpenRouterService{
		client:      client,
		Model:       cfg.Model,
		MaxConcepts: defaultMaxConcepts,
	}
}

func (s *OpenRouterService) ExtractConcepts(ctx context.Context, term string) ([]string, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("term cannot be empty")
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"model":           s.Model,
			"temperature":     0.1,
			"response_format": map[string]string{"type": "json_object"},
			"messages": []map[string]string{
				{"role": "system", "content": "You extract research concepts from short research-interest statements."},
				{"role": "user", "content": conceptPrompt(term, s.MaxConcepts)},
			},
		}).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("openrouter request: %w", err)
	}
	if resp.IsError() {
		msg := gjson.Get(resp.String(), "error.message").String()
		return nil, fmt.Errorf("openrouter returned %d: %s", resp.StatusCode(), msg)
	}

	text := gjson.Get(resp.String(), "choices.0.message.content").String()
	if text == "" {
		return nil, fmt.Errorf("no response from LLM")
	}
	return parseConcepts(text, s.MaxConcepts), nil
}
