package config

import (
	"sync"
	"time"
)

type WorkerConfig struct {
	// LeaseDuration must exceed the worst-case pipeline latency, otherwise a
	// healthy job can be reclaimed by another worker.
	LeaseDuration    time.Duration
	PipelineTimeout  time.Duration
	FreshnessWindow  time.Duration
	StaleQueuedAfter time.Duration
	SweepInterval    time.Duration
	SweepBatchSize   int
}

var (
	workerConfig *WorkerConfig
	workerOnce   sync.Once
)

func LoadWorkerConfig() *WorkerConfig {
	workerOnce.Do(func() {
		workerConfig = readWorkerConfig()
	})
	return workerConfig
}

func readWorkerConfig() *WorkerConfig {
	cfg := &WorkerConfig{
		LeaseDuration:    getEnvAsDuration("LEASE_DURATION", 60*time.Second),
		PipelineTimeout:  getEnvAsDuration("PIPELINE_TIMEOUT", 45*time.Second),
		FreshnessWindow:  getEnvAsDuration("TERM_CACHE_TTL", 7*24*time.Hour),
		StaleQueuedAfter: getEnvAsDuration("STALE_QUEUED_AFTER", 2*time.Minute),
		SweepInterval:    getEnvAsDuration("SWEEP_INTERVAL", time.Minute),
		SweepBatchSize:   getEnvAsInt("SWEEP_BATCH_SIZE", 50),
	}
	if cfg.PipelineTimeout >= cfg.LeaseDuration {
		cfg.PipelineTimeout = cfg.LeaseDuration * 3 / 4
	}
	return cfg
}
