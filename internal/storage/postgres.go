package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aka1453/promin-sched/pkg/models"
	"github.com/aka1453/promin-sched/pkg/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// GetMilestone retrieves a milestone by ID
func (s *PostgresStore) GetMilestone(id int64) (models.Milestone, error) {
	var ms models.Milestone
	err := s.db.Get(&ms, "SELECT * FROM milestones WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Milestone{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Milestone{}, err
	}
	return ms, nil
}

// SaveMilestone creates a new milestone and returns its ID
func (s *PostgresStore) SaveMilestone(m models.Milestone) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO milestones (project_id, name, weight, phase_order)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		m.ProjectID, m.Name, m.Weight, m.PhaseOrder).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save milestone: %w", err)
	}
	return id, nil
}

// ListMilestoneTasks retrieves the tasks of a milestone ordered by ID
func (s *PostgresStore) ListMilestoneTasks(milestoneID int64) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.Select(&tasks, "SELECT * FROM tasks WHERE milestone_id = $1 ORDER BY id", milestoneID)
	if err != nil {
		return nil, fmt.Errorf("list tasks of milestone %d: %w", milestoneID, err)
	}
	return tasks, nil
}

// GetTask retrieves a task by ID
func (s *PostgresStore) GetTask(id int64) (models.Task, error) {
	var task models.Task
	err := s.db.Get(&task, "SELECT * FROM tasks WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// SaveTask creates a new task within a milestone and returns its ID
func (s *PostgresStore) SaveTask(t models.Task) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO tasks (milestone_id, project_id, name, weight, baseline_start, planned_start,
			planned_end, duration_days, offset_days, status, status_health, is_delayed, risk_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`,
		t.MilestoneID, t.ProjectID, t.Name, t.Weight, t.BaselineStart, t.PlannedStart,
		t.PlannedEnd, t.DurationDays, t.OffsetDays, t.Status, t.StatusHealth, t.IsDelayed, t.RiskState).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save task: %w", err)
	}
	return id, nil
}

// ListProjectTasks retrieves all tasks of a project ordered by ID
func (s *PostgresStore) ListProjectTasks(projectID int64) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.Select(&tasks, "SELECT * FROM tasks WHERE project_id = $1 ORDER BY id", projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks of project %d: %w", projectID, err)
	}
	return tasks, nil
}

// UpdateTaskSchedule writes the derived date fields of a task, guarded by the
// version the schedule was computed against
func (s *PostgresStore) UpdateTaskSchedule(id int64, start, end time.Time, durationDays int, expectedVersion int64) error {
	res, err := s.db.Exec(`
		UPDATE tasks
		SET planned_start = $1,
		planned_end = $2,
		duration_days = $3,
		version = version + 1,
		updated_at = CURRENT_TIMESTAMP
		WHERE id = $4 AND version = $5`,
		start, end, durationDays, id, expectedVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the row is gone or a racing writer bumped the version.
		if _, getErr := s.GetTask(id); getErr != nil {
			return getErr
		}
		return storage.ErrVersionConflict
	}
	return nil
}

// UpdateTaskStatus updates the lifecycle status and actual dates of a task
func (s *PostgresStore) UpdateTaskStatus(id int64, status models.TaskStatus, actualStart, actualEnd *time.Time) error {
	_, err := s.db.Exec(`
		UPDATE tasks
		SET status = $1,
		actual_start = COALESCE($2, actual_start),
		actual_end = COALESCE($3, actual_end),
		updated_at = CURRENT_TIMESTAMP
		WHERE id = $4`,
		status, actualStart, actualEnd, id)
	return err
}

// UpdateTaskWeight updates the raw weight of a task
func (s *PostgresStore) UpdateTaskWeight(id int64, weight float64) error {
	_, err := s.db.Exec("UPDATE tasks SET weight = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2", weight, id)
	return err
}

// GetDeliverable retrieves a deliverable by ID
func (s *PostgresStore) GetDeliverable(id int64) (models.Deliverable, error) {
	var d models.Deliverable
	err := s.db.Get(&d, "SELECT * FROM deliverables WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Deliverable{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Deliverable{}, err
	}
	return d, nil
}

// SaveDeliverable creates a new deliverable under a task and returns its ID
func (s *PostgresStore) SaveDeliverable(d models.Deliverable) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO deliverables (task_id, name, weight, duration_days, depends_on_deliverable_id, is_done)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		d.TaskID, d.Name, d.Weight, d.DurationDays, d.DependsOnDeliverableID, d.IsDone).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save deliverable: %w", err)
	}
	return id, nil
}

// ListTaskDeliverables retrieves the deliverables of a task ordered by ID
func (s *PostgresStore) ListTaskDeliverables(taskID int64) ([]models.Deliverable, error) {
	deliverables := []models.Deliverable{}
	err := s.db.Select(&deliverables, "SELECT * FROM deliverables WHERE task_id = $1 ORDER BY id", taskID)
	if err != nil {
		return nil, fmt.Errorf("list deliverables of task %d: %w", taskID, err)
	}
	return deliverables, nil
}

// ListProjectDeliverables retrieves every deliverable under a project's tasks
func (s *PostgresStore) ListProjectDeliverables(projectID int64) ([]models.Deliverable, error) {
	deliverables := []models.Deliverable{}
	err := s.db.Select(&deliverables, `
		SELECT d.* FROM deliverables d
		JOIN tasks t ON t.id = d.task_id
		WHERE t.project_id = $1
		ORDER BY d.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list deliverables of project %d: %w", projectID, err)
	}
	return deliverables, nil
}

// UpdateDeliverableWindow writes the derived date window of a deliverable
func (s *PostgresStore) UpdateDeliverableWindow(id int64, start, end time.Time) error {
	_, err := s.db.Exec(`
		UPDATE deliverables
		SET planned_start = $1, planned_end = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`,
		start, end, id)
	return err
}

// UpdateDeliverableDone toggles the completion flag of a deliverable
func (s *PostgresStore) UpdateDeliverableDone(id int64, done bool, completedAt *time.Time) error {
	_, err := s.db.Exec(`
		UPDATE deliverables
		SET is_done = $1, completed_at = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`,
		done, completedAt, id)
	return err
}

// UpdateDeliverableDuration updates the duration of a deliverable
func (s *PostgresStore) UpdateDeliverableDuration(id int64, durationDays int) error {
	_, err := s.db.Exec(`
		UPDATE deliverables
		SET duration_days = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`,
		durationDays, id)
	return err
}

// SaveDependency creates a new dependency edge between tasks
func (s *PostgresStore) SaveDependency(d models.TaskDependency) error {
	_, err := s.db.Exec(
		"INSERT INTO task_dependencies (task_id, depends_on_task_id, project_id) VALUES ($1, $2, $3)",
		d.TaskID, d.DependsOnTaskID, d.ProjectID)
	return err
}

// DeleteDependency removes a dependency edge
func (s *PostgresStore) DeleteDependency(taskID, dependsOnTaskID int64) error {
	res, err := s.db.Exec(
		"DELETE FROM task_dependencies WHERE task_id = $1 AND depends_on_task_id = $2",
		taskID, dependsOnTaskID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListProjectDependencies retrieves all dependency edges of a project
func (s *PostgresStore) ListProjectDependencies(projectID int64) ([]models.TaskDependency, error) {
	deps := []models.TaskDependency{}
	err := s.db.Select(&deps, `
		SELECT task_id, depends_on_task_id, project_id, created_at
		FROM task_dependencies WHERE project_id = $1
		ORDER BY task_id, depends_on_task_id`, projectID)
	if err != nil {
		return nil, err
	}
	return deps, nil
}

// SaveScheduleEvent records a scheduling mutation for auditing
func (s *PostgresStore) SaveScheduleEvent(e models.ScheduleEvent) error {
	_, err := s.db.Exec(
		"INSERT INTO schedule_events (task_id, project_id, kind, message) VALUES ($1, $2, $3, $4)",
		e.TaskID, e.ProjectID, e.Kind, e.Message)
	return err
}

// ListTaskEvents retrieves the schedule events of a task, newest first
func (s *PostgresStore) ListTaskEvents(taskID int64) ([]models.ScheduleEvent, error) {
	events := []models.ScheduleEvent{}
	err := s.db.Select(&events, "SELECT * FROM schedule_events WHERE task_id = $1 ORDER BY logged_at DESC, id DESC", taskID)
	if err != nil {
		return nil, err
	}
	return events, nil
}
