package service

import (
	"context"
	"fmt"
	"io"

	"github.com/fadilmartias/aca-radar/internal/config"
)

// Pipeline bundles the collaborators of the embedding worker.
type Pipeline struct {
	Extractor ConceptExtractor
	Embedder  Embedder
	Projector Projector
	Notifier  Notifier
}

// NewPipeline builds the collaborators selected in cfg. A Gemini client is
// only created when a Gemini provider is selected.
func NewPipeline(ctx context.Context, cfg *config.ServicesConfig, gemini *config.GeminiConfig, openRouter *config.OpenRouterConfig) (*Pipeline, error) {
	var (
		p   Pipeline
		gem *GeminiService
	)
	geminiService := func() (*GeminiService, error) {
		if gem != nil {
			return gem, nil
		}
		var err error
		gem, err = NewGeminiService(ctx, gemini)
		if err == nil && cfg.MaxConcepts > 0 {
			gem.MaxConcepts = cfg.MaxConcepts
		}
		return gem, err
	}

	switch cfg.ConceptProvider {
	case "gemini":
		g, err := geminiService()
		if err != nil {
			return nil, err
		}
		p.Extractor = g
	case "openrouter":
		or := NewOpenRouterService(openRouter, cfg.RequestTimeout)
		if cfg.MaxConcepts > 0 {
			or.MaxConcepts = cfg.MaxConcepts
		}
		p.Extractor = or
	case "keywords":
		p.Extractor = KeywordExtractor{MaxConcepts: cfg.MaxConcepts}
	default:
		return nil, fmt.Errorf("unknown concept provider %q", cfg.ConceptProvider)
	}

	switch cfg.EmbedProvider {
	case "gemini":
		g, err := geminiService()
		if err != nil {
			return nil, err
		}
		p.Embedder = g
	case "http":
		p.Embedder = NewEmbedService(cfg.EmbedServiceURL, cfg.RequestTimeout)
	default:
		return nil, fmt.Errorf("unknown embed provider %q", cfg.EmbedProvider)
	}

	switch cfg.ProjectionProvider {
	case "http":
		p.Projector = NewProjectionService(cfg.ProjectionServiceURL, cfg.RequestTimeout)
	case "pca":
		pca, err := LoadPCAProjector(cfg.PCAMeanPath, cfg.PCAComponentsPath)
		if err != nil {
			return nil, err
		}
		p.Projector = pca
	default:
		return nil, fmt.Errorf("unknown projection provider %q", cfg.ProjectionProvider)
	}

	if cfg.NotifierURL != "" {
		p.Notifier = NewFayeNotifier(cfg.NotifierURL, cfg.NotifierTimeout)
	} else {
		p.Notifier = NopNotifier{}
	}
	return &p, nil
}

// Close releases collaborators that own background work.
func (p *Pipeline) Close() error {
	if c, ok := p.Notifier.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
