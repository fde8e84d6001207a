package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/fadilmartias/aca-radar/internal/metrics"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"
)

var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher sends embed requests through a watermill publisher guarded by a
// circuit breaker, so a dead broker fails submissions fast.
type Publisher struct {
	publisher      message.Publisher
	topic          string
	circuitBreaker *gobreaker.CircuitBreaker[any]
	mu             sync.RWMutex
	closed         bool
}

func NewPublisher(pub message.Publisher, topic string) *Publisher {
	const name = "queue-publisher"
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerState(name, int(to))
		},
	})
	metrics.RecordCircuitBreakerState(name, int(gobreaker.StateClosed))

	return &Publisher{
		publisher:      pub,
		topic:          topic,
		circuitBreaker: cb,
	}
}

// PublishEmbedRequest publishes req. Each call gets a fresh message id, so a
// republished job is not swallowed by JetStream deduplication.
func (p *Publisher) PublishEmbedRequest(ctx context.Context, req EmbedRequest) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	payload, err := req.Marshal()
	if err != nil {
		return fmt.Errorf("marshal embed request: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	msg.Metadata.Set("job_id", req.JobID)

	_, err = p.circuitBreaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(p.topic, msg)
	})
	metrics.RecordPublish(err)
	if err != nil {
		return fmt.Errorf("publish embed request %s: %w", req.JobID, err)
	}
	return nil
}

// Close stops further publishing. The underlying connection belongs to the
// PubSub that created it.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
