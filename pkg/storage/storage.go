package storage

import (
	"time"

	"github.com/aka1453/promin-sched/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when an optimistic write names a task
// version that is no longer current. Callers translate it into a stale
// computation failure.
var ErrVersionConflict = errors.New("version conflict")

// Store defines the persistence operations of the scheduling engine. Begin
// returns a Store bound to a transaction; every mutation of a cascade is
// applied through one such transactional Store so a cascade commits or rolls
// back as a unit.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Milestone operations
	GetMilestone(id int64) (models.Milestone, error)
	SaveMilestone(m models.Milestone) (int64, error)
	ListMilestoneTasks(milestoneID int64) ([]models.Task, error)

	// Task operations
	GetTask(id int64) (models.Task, error)
	SaveTask(t models.Task) (int64, error)
	ListProjectTasks(projectID int64) ([]models.Task, error)
	// UpdateTaskSchedule writes the derived date fields, guarded by the task
	// version the schedule was computed against; a mismatch returns
	// ErrVersionConflict and writes nothing.
	UpdateTaskSchedule(id int64, start, end time.Time, durationDays int, expectedVersion int64) error
	UpdateTaskStatus(id int64, status models.TaskStatus, actualStart, actualEnd *time.Time) error
	UpdateTaskWeight(id int64, weight float64) error

	// Deliverable operations
	GetDeliverable(id int64) (models.Deliverable, error)
	SaveDeliverable(d models.Deliverable) (int64, error)
	ListTaskDeliverables(taskID int64) ([]models.Deliverable, error)
	ListProjectDeliverables(projectID int64) ([]models.Deliverable, error)
	UpdateDeliverableWindow(id int64, start, end time.Time) error
	UpdateDeliverableDone(id int64, done bool, completedAt *time.Time) error
	UpdateDeliverableDuration(id int64, durationDays int) error

	// Dependency operations
	SaveDependency(d models.TaskDependency) error
	DeleteDependency(taskID, dependsOnTaskID int64) error
	ListProjectDependencies(projectID int64) ([]models.TaskDependency, error)

	// Schedule event operations
	SaveScheduleEvent(e models.ScheduleEvent) error
	ListTaskEvents(taskID int64) ([]models.ScheduleEvent, error)
}
