package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "request.completed", "lock.created")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeRequestAccepted  = "request.accepted"
	TypeRequestCompleted = "request.completed"
	TypeLockCreated      = "lock.created"
	TypeLockEvicted      = "lock.evicted"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Request Lifecycle Events
// -----------------------------------------------------------------------------

// RequestAcceptedEvent is emitted once a command line has been audited and
// handed to a handler.
type RequestAcceptedEvent struct {
	baseEvent
	Seq  uint64 // Dispatcher sequence number, starting at 1
	Line string // Raw command line
}

// NewRequestAcceptedEvent creates a new RequestAcceptedEvent.
func NewRequestAcceptedEvent(seq uint64, line string) RequestAcceptedEvent {
	return RequestAcceptedEvent{
		baseEvent: newBaseEvent(TypeRequestAccepted),
		Seq:       seq,
		Line:      line,
	}
}

// RequestCompletedEvent is emitted when a handler finishes, successfully or not.
type RequestCompletedEvent struct {
	baseEvent
	Seq      uint64
	Line     string
	Op       string // Empty when the line never parsed
	Target   string
	Outcome  string
	Err      error
	Duration time.Duration
}

// NewRequestCompletedEvent creates a new RequestCompletedEvent.
func NewRequestCompletedEvent(seq uint64, line, op, target, outcome string, err error, d time.Duration) RequestCompletedEvent {
	return RequestCompletedEvent{
		baseEvent: newBaseEvent(TypeRequestCompleted),
		Seq:       seq,
		Line:      line,
		Op:        op,
		Target:    target,
		Outcome:   outcome,
		Err:       err,
		Duration:  d,
	}
}

// -----------------------------------------------------------------------------
// Lock Registry Events
// -----------------------------------------------------------------------------

// LockCreatedEvent is emitted when the registry creates a lock for a
// previously unseen identifier.
type LockCreatedEvent struct {
	baseEvent
	Resource string
}

// NewLockCreatedEvent creates a new LockCreatedEvent.
func NewLockCreatedEvent(resource string) LockCreatedEvent {
	return LockCreatedEvent{
		baseEvent: newBaseEvent(TypeLockCreated),
		Resource:  resource,
	}
}

// LockEvictedEvent is emitted when an idle lock leaves the registry.
type LockEvictedEvent struct {
	baseEvent
	Resource string
}

// NewLockEvictedEvent creates a new LockEvictedEvent.
func NewLockEvictedEvent(resource string) LockEvictedEvent {
	return LockEvictedEvent{
		baseEvent: newBaseEvent(TypeLockEvicted),
		Resource:  resource,
	}
}
