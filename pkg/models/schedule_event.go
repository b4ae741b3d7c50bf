package models

import "time"

// Event kinds recorded by the scheduling service.
const (
	CascadeAppliedEvent      = "CASCADE_APPLIED"
	DependencyCreatedEvent   = "DEPENDENCY_CREATED"
	DependencyDeletedEvent   = "DEPENDENCY_DELETED"
	CompletionReversedEvent  = "COMPLETION_REVERSED"
)

// ScheduleEvent tracks scheduling mutations for auditing.
type ScheduleEvent struct {
	ID        int64     `json:"id" db:"id"`                     // Auto-incremented event ID
	TaskID    int64     `json:"task_id" db:"task_id"`           // Task the event refers to
	ProjectID int64     `json:"project_id" db:"project_id"`     // Parent project
	Kind      string    `json:"kind" db:"kind"`                 // One of the *Event constants
	Message   string    `json:"message,omitempty" db:"message"` // Details (e.g., which dates moved)
	LoggedAt  time.Time `json:"logged_at" db:"logged_at"`       // Timestamp of event entry
}
