// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Batch lifecycle events
	BatchCreated         EventType = "batch.created"
	OwnershipTransferred EventType = "batch.ownership_transferred"
	BatchVerified        EventType = "batch.verified"

	// Submission outcome events
	SubmissionFailed   EventType = "submission.failed"
	SubmissionTimedOut EventType = "submission.timed_out"

	// Job events
	JobSucceeded EventType = "job.succeeded"
	JobFailed    EventType = "job.failed"

	// AllEvents subscribes a handler to every event type.
	AllEvents EventType = "*"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// Publisher is the sending side of the bus.
type Publisher interface {
	Publish(event Event) error
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// NewBase stamps an event with its type and the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now().UTC()}
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// BatchCreatedEvent is emitted after a CreateBatch transaction is confirmed.
type BatchCreatedEvent struct {
	BaseEvent
	BatchID      string
	BatchAccount string
	Manufacturer string
	Owner        string
	Signature    string
	Slot         uint64
}

// OwnershipTransferredEvent is emitted after a TransferOwnership transaction is confirmed.
type OwnershipTransferredEvent struct {
	BaseEvent
	BatchID       string
	BatchAccount  string
	PreviousOwner string
	NewOwner      string
	Signature     string
	Slot          uint64
}

// BatchVerifiedEvent is emitted for every verification, passive or on-chain.
type BatchVerifiedEvent struct {
	BaseEvent
	Reference string
	Verified  bool
	Signature string
}

// SubmissionFailedEvent is emitted when a submission ends with a definite failure.
type SubmissionFailedEvent struct {
	BaseEvent
	Operation string
	BatchID   string
	Kind      string
	Reason    string
	Signature string
}

// SubmissionTimedOutEvent is emitted when the outcome of a submission is unknown.
type SubmissionTimedOutEvent struct {
	BaseEvent
	Operation    string
	BatchID      string
	BatchAccount string
	Signature    string
}

// JobSucceededEvent is emitted by the worker when a job completes.
type JobSucceededEvent struct {
	BaseEvent
	JobID     string
	OrderID   string
	Signature string
}

// JobFailedEvent is emitted by the worker when a job attempt fails.
type JobFailedEvent struct {
	BaseEvent
	JobID     string
	OrderID   string
	Attempts  int
	Terminal  bool
	LastError string
}
