package models

import (
	"time"

	"github.com/pkg/errors"
)

// Deliverable is a unit of output under a task. Deliverables sharing a task
// are partitioned into chains by DependsOnDeliverableID: a deliverable with no
// predecessor heads an independent chain, and chains run in parallel while the
// members of one chain run end-to-end.
type Deliverable struct {
	ID                     int64      `json:"id" db:"id"`
	TaskID                 int64      `json:"task_id" db:"task_id"`
	Name                   string     `json:"name" db:"name"`
	Weight                 float64    `json:"weight" db:"weight"` // Raw, user-entered
	DurationDays           int        `json:"duration_days" db:"duration_days"`
	DependsOnDeliverableID *int64     `json:"depends_on_deliverable_id,omitempty" db:"depends_on_deliverable_id"`
	PlannedStart           *time.Time `json:"planned_start,omitempty" db:"planned_start"`
	PlannedEnd             *time.Time `json:"planned_end,omitempty" db:"planned_end"`
	IsDone                 bool       `json:"is_done" db:"is_done"`
	CompletedAt            *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at" db:"updated_at"`
}

// Validate checks row-level invariants before the deliverable is persisted.
func (d Deliverable) Validate() error {
	if d.Name == "" {
		return errors.New("deliverable name cannot be empty")
	}
	if d.Weight < 0 {
		return errors.New("deliverable weight cannot be negative")
	}
	if d.DurationDays < 0 {
		return errors.New("deliverable duration_days cannot be negative")
	}
	if d.DependsOnDeliverableID != nil && *d.DependsOnDeliverableID == d.ID {
		return errors.New("deliverable cannot depend on itself")
	}
	return nil
}
