package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

// Publisher publishes producer events to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg EventMessage) error
	Close() error
}

// EventHandler handles a consumed producer event.
type EventHandler func(ctx context.Context, msg EventMessage) error

// Consumer consumes producer events from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler EventHandler) error
	Close() error
}

const (
	DefaultEventsQueue = "ops.notification.events"
	DLXExchangeName    = "ops.notification.dlx"
)

// DLQName returns the dead-letter queue of a work queue, e.g.
// dlq.ops.notification.events.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

type disposition int

const (
	dispositionAck disposition = iota
	dispositionReject
	dispositionRequeue
)

// dispositionFor maps a handler error to what happens to the delivery.
// Input the engine refuses will never succeed and is dead-lettered;
// suppressed events are done; anything else is retried.
func dispositionFor(err error) disposition {
	switch {
	case err == nil:
		return dispositionAck
	case errors.Is(err, domain.ErrSuppressed):
		return dispositionAck
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrTemplate),
		errors.Is(err, domain.ErrNotFound):
		return dispositionReject
	default:
		return dispositionRequeue
	}
}
