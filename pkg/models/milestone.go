package models

import "time"

// Milestone groups tasks inside a project. Its weight participates in
// project-level progress rollups the same way task weights do inside it.
type Milestone struct {
	ID         int64     `json:"id" db:"id"`
	ProjectID  int64     `json:"project_id" db:"project_id"`
	Name       string    `json:"name" db:"name"`
	Weight     float64   `json:"weight" db:"weight"` // Raw, user-entered
	PhaseOrder int       `json:"phase_order" db:"phase_order"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
	Tasks      []Task    `json:"tasks,omitempty"` // Populated at runtime
}
