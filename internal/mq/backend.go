package mq

import (
	"context"
	"fmt"

	"github.com/cloudpanel/authcore/config"
)

// NewBackend connects the broker named by cfg.Backend. It returns a nil
// Backend when events are disabled.
func NewBackend(ctx context.Context, cfg config.EventsConfig) (Backend, error) {
	switch cfg.Backend {
	case config.EventsNone:
		return nil, nil
	case config.EventsRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.EventsPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
