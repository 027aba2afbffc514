package eventbus

import "context"

// Publisher pushes outbox payloads to the message broker. Implementations
// must be safe for concurrent use by the outbox processor.
type Publisher interface {
	// Publish sends one payload under the given routing key.
	Publish(ctx context.Context, routingKey string, payload []byte) error

	// Close releases the broker connection.
	Close() error
}
