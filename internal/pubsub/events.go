// Package pubsub provides a generic publish/subscribe event system used to
// fan asynchronous sources (the SSE consumer, the drop-directory watcher)
// into the Bubble Tea update loop.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// MessageEvent carries a successfully parsed inbound payload.
	MessageEvent EventType = "message"
	// ErrorEvent signals a failure on the publishing source.
	ErrorEvent EventType = "error"
	// ClosedEvent signals the publishing source shut down cleanly.
	ClosedEvent EventType = "closed"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
