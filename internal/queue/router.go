package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

const embedHandlerName = "embed-request-worker"

// HandlerFunc processes one payload. A non-nil error nacks the message.
type HandlerFunc func(ctx context.Context, payload []byte) error

// NewRouter wires handle to topic. Panics are turned into errors. A handler
// error nacks the message at once; redelivery is left to the broker.
func NewRouter(topic string, sub message.Subscriber, handle HandlerFunc, closeTimeout time.Duration, logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: closeTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)

	router.AddConsumerHandler(embedHandlerName, topic, sub, func(msg *message.Message) error {
		return handle(msg.Context(), msg.Payload)
	})
	return router, nil
}
