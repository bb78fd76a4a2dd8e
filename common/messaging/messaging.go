// Package messaging defines the broker abstraction the relay services
// publish through. The NATS implementation lives in messaging/nats.
package messaging

import (
	"context"
	"time"
)

// Message is a message sent to or received from a broker.
type Message struct {
	Subject   string
	Data      []byte
	Reply     string
	Metadata  map[string]string
	Timestamp time.Time
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends data to subject, fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishMsg sends a Message including its metadata as headers.
	PublishMsg(ctx context.Context, msg *Message) error

	Close() error
}

// Client is a Publisher with request/reply and connection state.
type Client interface {
	Publisher

	// Request sends data and waits up to timeout for a reply.
	Request(ctx context.Context, subject string, data []byte, timeout time.Duration) (*Message, error)

	// Drain gracefully closes the connection, allowing in-flight messages to complete.
	Drain() error

	IsConnected() bool
}
