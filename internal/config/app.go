package config

import (
	"log"
	"os"
	"sync"
)

type AppConfig struct {
	Name         string
	Env          string
	Port         string
	BaseURL      string
	LogLevel     string
	LogFormat    string
	JournalsFile string
}

var (
	appConfig *AppConfig
	appOnce   sync.Once
)

func LoadAppConfig() *AppConfig {
	appOnce.Do(func() {
		appConfig = readAppConfig()
		if os.Getenv("APP_ENV") == "" {
			log.Printf("Warning: APP_ENV not set, defaulting to %s", appConfig.Env)
		}
	})
	return appConfig
}

func readAppConfig() *AppConfig {
	env := getEnv("APP_ENV", "development")
	defaultFormat := "json"
	if env != "production" {
		defaultFormat = "console"
	}
	return &AppConfig{
		Name:         getEnv("APP_NAME", "aca-radar"),
		Env:          env,
		Port:         getEnv("APP_PORT", ":8080"),
		BaseURL:      os.Getenv("APP_URL"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", defaultFormat),
		JournalsFile: os.Getenv("JOURNALS_FILE"),
	}
}

func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}
