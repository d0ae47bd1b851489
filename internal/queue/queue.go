// Package queue publishes rendered report events to a message broker.
//
// Every backend implements both sides so that consumers (the report CLI's
// watch mode, tests) can read back what the scheduler publishes.
package queue

import (
	"context"
	"errors"
	"strings"
)

// ErrClosed is returned when publishing on a closed queue
var ErrClosed = errors.New("queue closed")

// Publisher publishes messages to a queue
type Publisher interface {
	// Publish publishes a message to a subject/topic
	Publish(ctx context.Context, subject string, data []byte) error

	// Close closes the connection
	Close() error
}

// Subscriber subscribes to messages from a queue
type Subscriber interface {
	// Subscribe subscribes to a subject/topic with a handler
	Subscribe(subject string, handler MessageHandler) error

	// Unsubscribe unsubscribes from a subject/topic
	Unsubscribe(subject string) error

	// Close closes the connection
	Close() error
}

// MessageHandler handles incoming messages. A non-nil error leaves the
// message unacknowledged where the backend supports redelivery.
type MessageHandler func(data []byte) error

// Queue combines Publisher and Subscriber interfaces
type Queue interface {
	Publisher
	Subscriber
}

// Subject returns the subject a report is published on: "{prefix}.{name}".
// An empty prefix yields the bare name.
func Subject(prefix, report string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return report
	}
	return prefix + "." + report
}
