package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/fadilmartias/aca-radar/internal/config"
	natsgo "github.com/nats-io/nats.go"
)

// PubSub holds the publisher and subscriber for the configured driver.
type PubSub struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	closers    []func() error
}

// NewPubSub builds a JetStream pubsub for QUEUE_DRIVER=nats or an in-process
// go channel for QUEUE_DRIVER=memory.
func NewPubSub(cfg *config.QueueConfig, logger watermill.LoggerAdapter) (*PubSub, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryPubSub(logger), nil
	case "nats", "":
		return newNATSPubSub(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}

func NewMemoryPubSub(logger watermill.LoggerAdapter) *PubSub {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
		Persistent:          true,
	}, logger)
	return &PubSub{Publisher: ch, Subscriber: ch, closers: []func() error{ch.Close}}
}

func newNATSPubSub(cfg *config.QueueConfig, logger watermill.LoggerAdapter) (*PubSub, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWait,
		NakDelay:         wmNats.NewStaticDelay(cfg.NakDelay),
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.MaxDeliver(cfg.MaxDeliver),
				natsgo.AckWait(cfg.AckWait),
				natsgo.DeliverAll(),
			},
			DurablePrefix: cfg.DurableName,
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &PubSub{Publisher: pub, Subscriber: sub, closers: []func() error{sub.Close, pub.Close}}, nil
}

func (ps *PubSub) Close() error {
	var errs []error
	for _, c := range ps.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
