// Package mq publishes auth events to a message broker.
package mq

import (
	"context"
	"log/slog"
	"sync"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with logging and an idempotent Close.
type MQ struct {
	backend Backend
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// New constructs an MQ wrapper for the provided backend.
// A nil logger uses slog.Default().
func New(backend Backend, logger *slog.Logger) *MQ {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQ{backend: backend, logger: logger.With("component", "mq")}
}

// Publish sends a message to the named channel and returns its broker id.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	id, err := m.backend.Publish(ctx, channel, data, attrs)
	if err != nil {
		return "", err
	}
	m.logger.DebugContext(ctx, "message published", "channel", channel, "message_id", id, "bytes", len(data))
	return id, nil
}

// Subscribe consumes messages from the named channel until ctx is done.
// Handler errors are logged before the backend nacks the message.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	m.logger.InfoContext(ctx, "subscribing", "channel", channel)
	return m.backend.Subscribe(ctx, channel, func(ctx context.Context, msg Message) error {
		if err := handler(ctx, msg); err != nil {
			m.logger.WarnContext(ctx, "message handler failed", "channel", channel, "message_id", msg.ID, "error", err)
			return err
		}
		return nil
	})
}

// Close closes the underlying backend once.
func (m *MQ) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.backend.Close()
	})
	return m.closeErr
}
