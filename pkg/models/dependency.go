package models

import "time"

// TaskDependency is a directed edge meaning TaskID cannot start before
// DependsOnTaskID's planned end plus the successor's offset. The edge set of a
// project must stay acyclic at all times; insertion goes through the cycle
// guard before it reaches the store.
type TaskDependency struct {
	TaskID          int64     `json:"task_id" db:"task_id"`                     // Successor
	DependsOnTaskID int64     `json:"depends_on_task_id" db:"depends_on_task_id"` // Predecessor
	ProjectID       int64     `json:"project_id" db:"project_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
