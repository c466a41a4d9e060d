package notify

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when publishing to a closed publisher.
var ErrClosed = errors.New("publisher closed")

// ErrQueueFull is returned by AsyncPublisher when an event cannot be enqueued
// within the enqueue timeout.
var ErrQueueFull = errors.New("event queue full")

// PublishError wraps a delivery failure for one event.
type PublishError struct {
	EventID   string
	EventType string
	Backend   string
	Cause     error
}

// Error implements the error interface.
func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s event %s via %s: %v", e.EventType, e.EventID, e.Backend, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *PublishError) Unwrap() error {
	return e.Cause
}
