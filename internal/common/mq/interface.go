package mq

import (
	"context"
	"time"
)

// Producer publishes messages to a topic.
type Producer interface {
	// Publish publishes a message to the specified topic
	Publish(ctx context.Context, topic string, message *Message) error

	// PublishBatch publishes multiple messages in a batch
	PublishBatch(ctx context.Context, topic string, messages []*Message) error

	// Ping verifies the broker connection is alive
	Ping(ctx context.Context) error

	// Close flushes pending writes and releases the connection
	Close() error
}

// Message represents a message in the queue
type Message struct {
	// ID is the unique identifier for the message, also used as the partition key
	ID string `json:"id"`

	// Body is the message payload
	Body []byte `json:"body"`

	// Headers contains metadata about the message
	Headers map[string]string `json:"headers"`

	// Timestamp is when the message was created
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a new message with the given body
func NewMessage(body []byte) *Message {
	return &Message{
		Body:      body,
		Headers:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// SetHeader sets a header value
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// GetHeader retrieves a header value
func (m *Message) GetHeader(key string) (string, bool) {
	if m.Headers == nil {
		return "", false
	}
	val, ok := m.Headers[key]
	return val, ok
}

// NopProducer drops every message. Used when no brokers are configured.
type NopProducer struct{}

func (NopProducer) Publish(context.Context, string, *Message) error        { return nil }
func (NopProducer) PublishBatch(context.Context, string, []*Message) error { return nil }
func (NopProducer) Ping(context.Context) error                             { return nil }
func (NopProducer) Close() error                                           { return nil }
