package events

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/fixmate-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated       EventType = "issue_created"
	EventIssueAssigned      EventType = "issue_assigned"
	EventIssueStatusChanged EventType = "issue_status_changed"
	EventMessageSent        EventType = "message_sent"
)

// Event represents a domain event emitted by the workflow.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	IssueID   string      `json:"issue_id,omitempty"`
	ActorID   string      `json:"actor_id"`
	ActorRole string      `json:"actor_role"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// IssueCreatedPayload carries the initial triage fields.
type IssueCreatedPayload struct {
	Category    domain.IssueCategory `json:"category"`
	Priority    domain.IssuePriority `json:"priority"`
	Description string               `json:"description"`
}

// IssueAssignedPayload carries the assignment change. A nil TechnicianID
// means the issue was unassigned.
type IssueAssignedPayload struct {
	TechnicianID   *string `json:"technician_id,omitempty"`
	TechnicianName *string `json:"technician_name,omitempty"`
}

// IssueStatusChangedPayload carries a lifecycle transition.
type IssueStatusChangedPayload struct {
	OldStatus domain.IssueStatus `json:"old_status"`
	NewStatus domain.IssueStatus `json:"new_status"`
	Notes     string             `json:"notes,omitempty"`
}

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{
		listeners: make(map[EventType][]EventHandler),
	}
}

// Publish synchronously invokes handlers for the given event. Handler errors
// do not stop the remaining handlers.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		_ = handler(ctx, event)
	}
	return nil
}

// Subscribe registers a handler for the given event type.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}
