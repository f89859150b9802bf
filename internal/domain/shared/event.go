package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is something that happened to a document or a batch.
// SubjectID is a document slug or a batch job ID.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	SubjectID() string
	SubjectType() string
}

// BaseEvent implements DomainEvent; concrete events embed it and add
// their payload fields.
type BaseEvent struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	Subject     string    `json:"subject_id"`
	SubjectKind string    `json:"subject_type"`
}

func (e *BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e *BaseEvent) EventType() string     { return e.Type }
func (e *BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e *BaseEvent) SubjectID() string     { return e.Subject }
func (e *BaseEvent) SubjectType() string   { return e.SubjectKind }

// NewBaseEvent stamps a new event with a random ID and the current UTC time
func NewBaseEvent(eventType, subjectType, subjectID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		Subject:     subjectID,
		SubjectKind: subjectType,
	}
}
