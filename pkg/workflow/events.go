package workflow

import (
	"context"
	"time"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventCreated      EventType = "workflow:created"
	EventTransitioned EventType = "workflow:transitioned"
	EventAssigned     EventType = "workflow:assigned"
	EventCommented    EventType = "workflow:commented"
	EventNotification EventType = "notification:send"
)

// Event is delivered to a Publisher after a successful mutation. Workflow is a
// snapshot taken after the change.
type Event struct {
	ID           string        `json:"id"`
	Type         EventType     `json:"type"`
	Timestamp    time.Time     `json:"timestamp"`
	WorkflowID   string        `json:"workflowId"`
	TenantID     string        `json:"tenantId"`
	Workflow     *Workflow     `json:"workflow,omitempty"`
	Transition   *Transition   `json:"transition,omitempty"`
	Assignment   *Assignment   `json:"assignment,omitempty"`
	Comment      *Comment      `json:"comment,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// Assignment describes a workflow:assigned event.
type Assignment struct {
	StepID     string `json:"stepId"`
	AssignedTo string `json:"assignedTo"`
	AssignedBy string `json:"assignedBy"`
	Previous   string `json:"previous,omitempty"`
}

// Notification is the payload of a notification:send event.
type Notification struct {
	TriggerID  string   `json:"triggerId"`
	Event      string   `json:"event"`
	Recipients []string `json:"recipients"`
	Channels   []string `json:"channels"`
	Template   string   `json:"template"`
}

// Publisher delivers events to downstream dispatchers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
