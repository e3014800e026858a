package mq

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/samber/oops"

	"github.com/cloudpanel/authcore/types"
)

// Attribute keys set on every auth event message.
const (
	AttrEventType   = "event_type"
	AttrContentType = "content_type"
)

// EventPublisher publishes auth events as JSON on one channel.
type EventPublisher struct {
	mq      *MQ
	channel string
}

// NewEventPublisher returns a publisher for channel.
func NewEventPublisher(m *MQ, channel string) (*EventPublisher, error) {
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("events channel is required")
	}
	return &EventPublisher{mq: m, channel: channel}, nil
}

// Channel returns the channel events are published on.
func (p *EventPublisher) Channel() string {
	return p.channel
}

// PublishAuthEvent encodes event and sends it.
func (p *EventPublisher) PublishAuthEvent(ctx context.Context, event types.AuthEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return oops.Code("EVENT_ENCODE_FAILED").With("event_type", event.Type).Wrap(err)
	}

	attrs := map[string]string{
		AttrEventType:   string(event.Type),
		AttrContentType: "application/json",
	}
	if _, err := p.mq.Publish(ctx, p.channel, data, attrs); err != nil {
		return oops.Code("EVENT_PUBLISH_FAILED").
			With("event_type", event.Type).
			With("channel", p.channel).
			Wrap(err)
	}
	return nil
}

// DecodeAuthEvent parses a message produced by PublishAuthEvent.
func DecodeAuthEvent(msg Message) (types.AuthEvent, error) {
	var event types.AuthEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return types.AuthEvent{}, oops.Code("EVENT_DECODE_FAILED").With("message_id", msg.ID).Wrap(err)
	}
	if event.Type == "" {
		return types.AuthEvent{}, oops.Code("EVENT_DECODE_FAILED").With("message_id", msg.ID).Errorf("event type is missing")
	}
	return event, nil
}
