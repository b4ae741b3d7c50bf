package storage

import (
	"slices"
	"time"

	"github.com/aka1453/promin-sched/pkg/models"
	"github.com/pkg/errors"
)

// mockStore implements Store with in-memory slices, for unit tests.
type mockStore struct {
	milestones         []models.Milestone
	tasks              []models.Task
	deliverables       []models.Deliverable
	dependencies       []models.TaskDependency
	events             []models.ScheduleEvent
	nextMilestoneID    int64
	nextTaskID         int64
	nextDeliverableID  int64
	nextEventID        int64
	failTaskScheduleID int64 // When set, UpdateTaskSchedule fails for this task
}

// NewMockStore returns an empty in-memory Store.
func NewMockStore() Store {
	return &mockStore{}
}

// NewFailingMockStore returns a mock whose UpdateTaskSchedule fails for one
// task id, to exercise cascade failure reporting.
func NewFailingMockStore(taskID int64) Store {
	return &mockStore{failTaskScheduleID: taskID}
}

// Begin returns the store itself; the mock does not isolate transactions.
func (m *mockStore) Begin() (Store, error) { return m, nil }

func (m *mockStore) Commit() error   { return nil }
func (m *mockStore) Rollback() error { return nil }
func (m *mockStore) Close() error    { return nil }

func (m *mockStore) GetMilestone(id int64) (models.Milestone, error) {
	for _, ms := range m.milestones {
		if ms.ID == id {
			return ms, nil
		}
	}
	return models.Milestone{}, ErrNotFound
}

func (m *mockStore) SaveMilestone(ms models.Milestone) (int64, error) {
	if ms.ID == 0 {
		m.nextMilestoneID++
		ms.ID = m.nextMilestoneID
	} else if ms.ID > m.nextMilestoneID {
		m.nextMilestoneID = ms.ID
	}
	ms.CreatedAt = time.Now()
	ms.UpdatedAt = ms.CreatedAt
	m.milestones = append(m.milestones, ms)
	return ms.ID, nil
}

func (m *mockStore) ListMilestoneTasks(milestoneID int64) ([]models.Task, error) {
	var out []models.Task
	for _, t := range m.tasks {
		if t.MilestoneID == milestoneID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b models.Task) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *mockStore) GetTask(id int64) (models.Task, error) {
	for _, t := range m.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Task{}, ErrNotFound
}

func (m *mockStore) SaveTask(t models.Task) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	if t.ID == 0 {
		m.nextTaskID++
		t.ID = m.nextTaskID
	} else if t.ID > m.nextTaskID {
		m.nextTaskID = t.ID
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.tasks = append(m.tasks, t)
	return t.ID, nil
}

func (m *mockStore) ListProjectTasks(projectID int64) ([]models.Task, error) {
	var out []models.Task
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b models.Task) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *mockStore) UpdateTaskSchedule(id int64, start, end time.Time, durationDays int, expectedVersion int64) error {
	if id == m.failTaskScheduleID && m.failTaskScheduleID != 0 {
		return errors.Errorf("simulated write failure for task %d", id)
	}
	for i, t := range m.tasks {
		if t.ID != id {
			continue
		}
		if t.Version != expectedVersion {
			return ErrVersionConflict
		}
		m.tasks[i].PlannedStart = start
		m.tasks[i].PlannedEnd = end
		m.tasks[i].DurationDays = durationDays
		m.tasks[i].Version++
		m.tasks[i].UpdatedAt = time.Now()
		return nil
	}
	return ErrNotFound
}

func (m *mockStore) UpdateTaskStatus(id int64, status models.TaskStatus, actualStart, actualEnd *time.Time) error {
	for i, t := range m.tasks {
		if t.ID != id {
			continue
		}
		m.tasks[i].Status = status
		if actualStart != nil {
			m.tasks[i].ActualStart = actualStart
		}
		if actualEnd != nil {
			m.tasks[i].ActualEnd = actualEnd
		}
		m.tasks[i].UpdatedAt = time.Now()
		return nil
	}
	return ErrNotFound
}

func (m *mockStore) UpdateTaskWeight(id int64, weight float64) error {
	if weight < 0 {
		return errors.New("task weight cannot be negative")
	}
	for i, t := range m.tasks {
		if t.ID == id {
			m.tasks[i].Weight = weight
			m.tasks[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) GetDeliverable(id int64) (models.Deliverable, error) {
	for _, d := range m.deliverables {
		if d.ID == id {
			return d, nil
		}
	}
	return models.Deliverable{}, ErrNotFound
}

func (m *mockStore) SaveDeliverable(d models.Deliverable) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	if d.ID == 0 {
		m.nextDeliverableID++
		d.ID = m.nextDeliverableID
	} else if d.ID > m.nextDeliverableID {
		m.nextDeliverableID = d.ID
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	m.deliverables = append(m.deliverables, d)
	return d.ID, nil
}

func (m *mockStore) ListTaskDeliverables(taskID int64) ([]models.Deliverable, error) {
	var out []models.Deliverable
	for _, d := range m.deliverables {
		if d.TaskID == taskID {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b models.Deliverable) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *mockStore) ListProjectDeliverables(projectID int64) ([]models.Deliverable, error) {
	inProject := make(map[int64]bool)
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			inProject[t.ID] = true
		}
	}
	var out []models.Deliverable
	for _, d := range m.deliverables {
		if inProject[d.TaskID] {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b models.Deliverable) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *mockStore) UpdateDeliverableWindow(id int64, start, end time.Time) error {
	for i, d := range m.deliverables {
		if d.ID == id {
			m.deliverables[i].PlannedStart = &start
			m.deliverables[i].PlannedEnd = &end
			m.deliverables[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) UpdateDeliverableDone(id int64, done bool, completedAt *time.Time) error {
	for i, d := range m.deliverables {
		if d.ID == id {
			m.deliverables[i].IsDone = done
			m.deliverables[i].CompletedAt = completedAt
			m.deliverables[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) UpdateDeliverableDuration(id int64, durationDays int) error {
	if durationDays < 0 {
		return errors.New("deliverable duration_days cannot be negative")
	}
	for i, d := range m.deliverables {
		if d.ID == id {
			m.deliverables[i].DurationDays = durationDays
			m.deliverables[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) SaveDependency(d models.TaskDependency) error {
	for _, existing := range m.dependencies {
		if existing.TaskID == d.TaskID && existing.DependsOnTaskID == d.DependsOnTaskID {
			return errors.New("dependency already exists")
		}
	}
	d.CreatedAt = time.Now()
	m.dependencies = append(m.dependencies, d)
	return nil
}

func (m *mockStore) DeleteDependency(taskID, dependsOnTaskID int64) error {
	for i, d := range m.dependencies {
		if d.TaskID == taskID && d.DependsOnTaskID == dependsOnTaskID {
			m.dependencies = slices.Delete(m.dependencies, i, i+1)
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) ListProjectDependencies(projectID int64) ([]models.TaskDependency, error) {
	var out []models.TaskDependency
	for _, d := range m.dependencies {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockStore) SaveScheduleEvent(e models.ScheduleEvent) error {
	m.nextEventID++
	e.ID = m.nextEventID
	e.LoggedAt = time.Now()
	m.events = append(m.events, e)
	return nil
}

func (m *mockStore) ListTaskEvents(taskID int64) ([]models.ScheduleEvent, error) {
	var out []models.ScheduleEvent
	for _, e := range m.events {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}
