package config

import (
	"sync"
	"time"
)

type QueueConfig struct {
	Driver           string // nats | memory
	NATSURL          string
	Topic            string
	QueueGroup       string
	DurableName      string
	SubscribersCount int
	AckWait          time.Duration
	MaxDeliver       int
	NakDelay         time.Duration
	CloseTimeout     time.Duration
}

var (
	queueConfig *QueueConfig
	queueOnce   sync.Once
)

func LoadQueueConfig() *QueueConfig {
	queueOnce.Do(func() {
		queueConfig = readQueueConfig()
	})
	return queueConfig
}

func readQueueConfig() *QueueConfig {
	return &QueueConfig{
		Driver:           getEnv("QUEUE_DRIVER", "nats"),
		NATSURL:          getEnv("NATS_URL", "nats://localhost:4222"),
		Topic:            getEnv("QUEUE_TOPIC", "research_interest.embed"),
		QueueGroup:       getEnv("QUEUE_GROUP", "embedding-workers"),
		DurableName:      getEnv("QUEUE_DURABLE", "embedding-workers"),
		SubscribersCount: getEnvAsInt("QUEUE_SUBSCRIBERS", 2),
		AckWait:          getEnvAsDuration("QUEUE_ACK_WAIT", 2*time.Minute),
		MaxDeliver:       getEnvAsInt("QUEUE_MAX_DELIVER", 10),
		NakDelay:         getEnvAsDuration("QUEUE_NAK_DELAY", 5*time.Second),
		CloseTimeout:     getEnvAsDuration("QUEUE_CLOSE_TIMEOUT", 30*time.Second),
	}
}
