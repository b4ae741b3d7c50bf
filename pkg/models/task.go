package models

import (
	"time"

	"github.com/pkg/errors"
)

type TaskStatus string

const (
	PendingTaskStatus    TaskStatus = "PENDING"
	InProgressTaskStatus TaskStatus = "IN_PROGRESS"
	CompletedTaskStatus  TaskStatus = "COMPLETED"
)

// StatusHealth is the coarse heuristic health flag carried on a task row.
// It is a fallback signal only; RiskState wins when present.
type StatusHealth string

const (
	OKStatusHealth   StatusHealth = "OK"
	WarnStatusHealth StatusHealth = "WARN"
	RiskStatusHealth StatusHealth = "RISK"
)

// RiskState is the canonical, upstream-computed schedule-risk signal.
type RiskState string

const (
	OnTrackRiskState RiskState = "ON_TRACK"
	AtRiskRiskState  RiskState = "AT_RISK"
	DelayedRiskState RiskState = "DELAYED"
)

// Task represents a unit of work inside a milestone. PlannedEnd and
// DurationDays are derived from the task's deliverable chains and must never
// be written directly outside a recalculation.
type Task struct {
	ID            int64        `json:"id" db:"id"`
	MilestoneID   int64        `json:"milestone_id" db:"milestone_id"`
	ProjectID     int64        `json:"project_id" db:"project_id"` // Denormalized for graph loads and locking
	Name          string       `json:"name" db:"name"`
	Weight        float64      `json:"weight" db:"weight"` // Raw, user-entered
	BaselineStart time.Time    `json:"baseline_start" db:"baseline_start"`
	PlannedStart  time.Time    `json:"planned_start" db:"planned_start"`
	PlannedEnd    time.Time    `json:"planned_end" db:"planned_end"`     // Derived
	DurationDays  int          `json:"duration_days" db:"duration_days"` // Derived
	OffsetDays    int          `json:"offset_days" db:"offset_days"`     // Buffer after predecessor finishes
	ActualStart   *time.Time   `json:"actual_start,omitempty" db:"actual_start"`
	ActualEnd     *time.Time   `json:"actual_end,omitempty" db:"actual_end"`
	Status        TaskStatus   `json:"status" db:"status"`
	StatusHealth  StatusHealth `json:"status_health" db:"status_health"`
	IsDelayed     bool         `json:"is_delayed" db:"is_delayed"`
	RiskState     *RiskState   `json:"risk_state,omitempty" db:"risk_state"` // Canonical signal, nullable
	Version       int64        `json:"version" db:"version"`                 // Optimistic concurrency
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// Validate checks row-level invariants before the task is persisted.
func (t Task) Validate() error {
	if t.Name == "" {
		return errors.New("task name cannot be empty")
	}
	if t.Weight < 0 {
		return errors.New("task weight cannot be negative")
	}
	if t.OffsetDays < 0 {
		return errors.New("task offset_days cannot be negative")
	}
	if t.DurationDays < 0 {
		return errors.New("task duration_days cannot be negative")
	}
	switch t.Status {
	case PendingTaskStatus, InProgressTaskStatus, CompletedTaskStatus:
	default:
		return errors.Errorf("invalid task status %q", t.Status)
	}
	return nil
}
