package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fadilmartias/aca-radar/internal/config"
	"github.com/fadilmartias/aca-radar/internal/logging"
	"github.com/fadilmartias/aca-radar/internal/metrics"
	"github.com/fadilmartias/aca-radar/internal/vector"
	gobreaker "github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

const maxEmbeddingInput = 10000

// geminiModels is the part of genai.Models the service uses.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type GeminiService struct {
	models         geminiModels
	ConceptModel   string
	EmbeddingModel string
	MaxConcepts    int
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	RequestTimeout time.Duration
	circuitBreaker *gobreaker.CircuitBreaker[any]
}

var (
	_ ConceptExtractor = (*GeminiService)(nil)
	_ Embedder         = (*GeminiService)(nil)
)

func NewGeminiService(ctx context.Context, cfg *config.GeminiConfig) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiService(client.Models, cfg), nil
}

func newGeminiService(models geminiModels, cfg *config.GeminiConfig) *GeminiService {
	const name = "gemini"
	return &GeminiService{
		models:         models,
		ConceptModel:   cfg.ConceptModel,
		EmbeddingModel: cfg.EmbeddingModel,
		MaxConcepts:    defaultMaxConcepts,
		MaxRetries:     3,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		RequestTimeout: 40 * time.Second,
		circuitBreaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.RecordCircuitBreakerState(name, int(to))
				logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		}),
	}
}

func (s *GeminiService) ExtractConcepts(ctx context.Context, term string) ([]string, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("term cannot be empty")
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.1)),
		ResponseMIMEType: "application/json",
	}
	resp, err := callWithRetry(ctx, s, "GenerateContent", func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return s.models.GenerateContent(ctx, s.ConceptModel, genai.Text(conceptPrompt(term, s.MaxConcepts)), genConfig)
	})
	if err != nil {
		return nil, err
	}
	if err := validateGenerateResponse(resp); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	return parseConcepts(resp.Text(), s.MaxConcepts), nil
}

func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("text for embedding cannot be empty")
	}
	if len(trimmed) > maxEmbeddingInput {
		logging.Ctx(ctx).Warn().Int("length", len(trimmed)).Msg("embedding input exceeds limit, truncating")
		trimmed = truncateUTF8(trimmed, maxEmbeddingInput)
	}

	content := []*genai.Content{genai.NewContentFromText(trimmed, genai.RoleUser)}
	resp, err := callWithRetry(ctx, s, "EmbedContent", func(ctx context.Context) (*genai.EmbedContentResponse, error) {
		return s.models.EmbedContent(ctx, s.EmbeddingModel, content, nil)
	})
	if err != nil {
		return nil, err
	}
	embedding, err := validateEmbeddingResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("invalid embedding response: %w", err)
	}
	return embedding, nil
}

// callWithRetry runs fn with exponential backoff for retryable API errors.
// The whole retry loop counts as one call for the circuit breaker.
func callWithRetry[T any](ctx context.Context, s *GeminiService, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	timeoutCtx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	out, err := s.circuitBreaker.Execute(func() (any, error) {
		var lastErr error
		for attempt := 0; attempt <= s.MaxRetries; attempt++ {
			if attempt > 0 {
				delay := s.calculateBackoff(attempt)
				logging.Ctx(ctx).Debug().Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("retrying gemini call")

				select {
				case <-time.After(delay):
				case <-timeoutCtx.Done():
					return nil, fmt.Errorf("context timeout during retry: %w", timeoutCtx.Err())
				}
			}

			result, err := fn(timeoutCtx)
			if err == nil {
				return result, nil
			}
			lastErr = err

			if !isRetryableError(err) {
				return nil, fmt.Errorf("%s failed: %w", op, err)
			}
			logging.Ctx(ctx).Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("retryable gemini error")
		}
		return nil, fmt.Errorf("max retries (%d) exceeded for %s: %w", s.MaxRetries, op, lastErr)
	})
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}

func (s *GeminiService) calculateBackoff(attempt int) time.Duration {
	delay := s.BaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > s.MaxDelay {
		delay = s.MaxDelay
	}
	return delay
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return retryableStatus(apiErrPtr.Code)
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "temporary failure") ||
		strings.Contains(errMsg, "EOF")
}

func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

func validateGenerateResponse(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return fmt.Errorf("response is nil")
	}
	if len(resp.Candidates) == 0 {
		return fmt.Errorf("no candidates in response")
	}
	if resp.Candidates[0].Content == nil {
		return fmt.Errorf("candidate content is nil")
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("no parts in content")
	}
	return nil
}

func validateEmbeddingResponse(resp *genai.EmbedContentResponse) ([]float32, error) {
	if resp == nil {
		return nil, fmt.Errorf("response is nil")
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embeddings returned")
	}
	values := resp.Embeddings[0].Values
	if len(values) == 0 {
		return nil, fmt.Errorf("embedding vector is empty")
	}
	if !vector.AllFinite(values) {
		return nil, fmt.Errorf("embedding contains non-finite values")
	}
	return values, nil
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
