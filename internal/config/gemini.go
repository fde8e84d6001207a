package config

import (
	"os"
	"sync"
)

type GeminiConfig struct {
	APIKey         string
	ConceptModel   string
	EmbeddingModel string
}

var (
	geminiConfig *GeminiConfig
	geminiOnce   sync.Once
)

func LoadGeminiConfig() *GeminiConfig {
	geminiOnce.Do(func() {
		geminiConfig = &GeminiConfig{
			APIKey:         os.Getenv("GEMINI_API_KEY"),
			ConceptModel:   getEnv("GEMINI_CONCEPT_MODEL", "gemini-2.5-flash"),
			EmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "gemini-embedding-001"),
		}
	})
	return geminiConfig
}
