package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fadilmartias/aca-radar/internal/logging"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	notifyQueueSize      = 64
	defaultNotifyTimeout = 5 * time.Second
)

type fayeMessage struct {
	log     zerolog.Logger
	jobID   string
	message string
}

// FayeNotifier publishes progress events to a Faye server on the channel
// "/<jobID>". Notify only enqueues; one sender goroutine posts events in
// order, each bounded by its own timeout and detached from the caller's
// deadline. Events are dropped when the queue is full or delivery fails.
type FayeNotifier struct {
	client  *resty.Client
	url     string
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan fayeMessage
	done   chan struct{}
}

var _ Notifier = (*FayeNotifier)(nil)

func NewFayeNotifier(url string, timeout time.Duration) *FayeNotifier {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	n := &FayeNotifier{
		client:  resty.New(),
		url:     url,
		timeout: timeout,
		queue:   make(chan fayeMessage, notifyQueueSize),
		done:    make(chan struct{}),
	}
	go n.loop()
	return n
}

func (n *FayeNotifier) Notify(ctx context.Context, jobID string, ev ProgressEvent) {
	log := *logging.Ctx(ctx)

	data := map[string]any{
		"status":  ev.Status,
		"message": ev.Message,
		"percent": ev.Percent,
	}
	for k, v := range ev.Payload {
		data[k] = v
	}
	message, err := json.Marshal(map[string]any{
		"channel": "/" + jobID,
		"data":    data,
	})
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("encode progress event")
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- fayeMessage{log: log, jobID: jobID, message: string(message)}:
	default:
		log.Warn().Str("job_id", jobID).Int("percent", ev.Percent).Msg("progress queue full, event dropped")
	}
}

// Close stops accepting events and waits for queued ones to be sent.
func (n *FayeNotifier) Close() error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
	return nil
}

func (n *FayeNotifier) loop() {
	defer close(n.done)
	for msg := range n.queue {
		n.send(msg)
	}
}

func (n *FayeNotifier) send(msg fayeMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	resp, err := n.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"message": msg.message}).
		Post(n.url)
	if err != nil {
		msg.log.Warn().Err(err).Str("job_id", msg.jobID).Str("url", n.url).Msg("progress notification dropped")
		return
	}
	if resp.IsError() {
		msg.log.Warn().Int("status", resp.StatusCode()).Str("job_id", msg.jobID).Msg("progress notification rejected")
	}
}
