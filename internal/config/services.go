package config

import (
	"os"
	"sync"
	"time"
)

// ServicesConfig selects and locates the collaborators of the embedding
// pipeline.
type ServicesConfig struct {
	ConceptProvider    string // gemini | openrouter | keywords
	EmbedProvider      string // gemini | http
	ProjectionProvider string // http | pca

	EmbedServiceURL      string
	ProjectionServiceURL string
	PCAMeanPath          string
	PCAComponentsPath    string
	MaxConcepts          int

	// NotifierURL is the Faye endpoint progress events are posted to.
	// Empty disables notifications.
	NotifierURL     string
	NotifierTimeout time.Duration
	RequestTimeout  time.Duration
}

var (
	servicesConfig *ServicesConfig
	servicesOnce   sync.Once
)

func LoadServicesConfig() *ServicesConfig {
	servicesOnce.Do(func() {
		servicesConfig = readServicesConfig()
	})
	return servicesConfig
}

func readServicesConfig() *ServicesConfig {
	return &ServicesConfig{
		ConceptProvider:      getEnv("CONCEPT_PROVIDER", "gemini"),
		EmbedProvider:        getEnv("EMBED_PROVIDER", "gemini"),
		ProjectionProvider:   getEnv("PROJECTION_PROVIDER", "http"),
		EmbedServiceURL:      getEnv("EMBED_SERVICE_URL", "http://localhost:8001/embed"),
		ProjectionServiceURL: getEnv("PROJECTION_SERVICE_URL", "http://localhost:8001/project"),
		PCAMeanPath:          getEnv("PCA_MEAN_PATH", "data/pca_mean.json"),
		PCAComponentsPath:    getEnv("PCA_COMPONENTS_PATH", "data/pca_components.json"),
		MaxConcepts:          getEnvAsInt("MAX_CONCEPTS", 10),
		NotifierURL:          os.Getenv("NOTIFIER_URL"),
		NotifierTimeout:      getEnvAsDuration("NOTIFIER_TIMEOUT", 5*time.Second),
		RequestTimeout:       getEnvAsDuration("SERVICE_REQUEST_TIMEOUT", 30*time.Second),
	}
}
