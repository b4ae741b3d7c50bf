package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aka1453/promin-sched/pkg/models"
	"github.com/aka1453/promin-sched/pkg/schedule"
	"github.com/aka1453/promin-sched/pkg/storage"
	"github.com/pkg/errors"
)

// Logger defines the logging interface for SchedulingService.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Notifier fans scheduling changes out to interested collaborators (real-time
// feeds, the narrative layer). The service only knows this interface; the
// concrete transport lives outside the engine.
type Notifier interface {
	TaskDatesChanged(ctx context.Context, projectID int64, taskIDs []int64) error
}

// ScheduleCache caches read-path classification and progress results. Every
// cascade invalidates the affected entries, so a populated entry is never
// older than the last applied date change.
type ScheduleCache interface {
	GetState(ctx context.Context, taskID int64) (schedule.ScheduleState, bool, error)
	SetState(ctx context.Context, taskID int64, state schedule.ScheduleState) error
	GetProgress(ctx context.Context, milestoneID int64) (float64, bool, error)
	SetProgress(ctx context.Context, milestoneID int64, progress float64) error
	InvalidateTasks(ctx context.Context, taskIDs ...int64) error
	InvalidateMilestones(ctx context.Context, milestoneIDs ...int64) error
}

// CascadeResult reports which tasks a cascade moved. When the transactional
// apply fails, Failed enumerates every task whose dates would have changed so
// the caller can retry or reconcile; nothing is left half-applied.
type CascadeResult struct {
	UpdatedTaskIDs []int64 `json:"updated_task_ids"`
	FailedTaskIDs  []int64 `json:"failed_task_ids"`
}

// SchedulingService owns the dependency-aware scheduling of tasks: edge
// creation behind the cycle guard, duration resolution from deliverable
// chains, and transactional date cascades. Cascades are serialized per
// project so concurrent edits of one graph cannot interleave.
type SchedulingService struct {
	store    storage.Store
	logger   Logger
	cache    ScheduleCache // optional
	notifier Notifier      // optional

	mu    sync.Mutex
	locks map[int64]*sync.Mutex // per-project
}

// Option configures optional collaborators of the service.
type Option func(*SchedulingService)

// WithCache attaches a read-path cache.
func WithCache(c ScheduleCache) Option {
	return func(s *SchedulingService) { s.cache = c }
}

// WithNotifier attaches a change-event publisher.
func WithNotifier(n Notifier) Option {
	return func(s *SchedulingService) { s.notifier = n }
}

func NewSchedulingService(store storage.Store, logger Logger, opts ...Option) *SchedulingService {
	s := &SchedulingService{
		store:  store,
		logger: logger,
		locks:  make(map[int64]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// projectLock returns the mutex serializing cascades for one project.
func (s *SchedulingService) projectLock(projectID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[projectID] = l
	}
	return l
}

// WouldCreateCycle reports whether the proposed edge would close a cycle,
// without mutating anything. Exposed for validation UIs.
func (s *SchedulingService) WouldCreateCycle(ctx context.Context, taskID, dependsOnTaskID int64) (bool, error) {
	if taskID == dependsOnTaskID {
		return true, nil
	}
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return false, errors.Wrapf(err, "task %d", taskID)
	}
	g, err := s.loadGraph(s.store, task.ProjectID)
	if err != nil {
		return false, err
	}
	return g.WouldCreateCycle(taskID, dependsOnTaskID), nil
}

// CreateDependency inserts the edge taskID -> dependsOnTaskID and cascades
// the successor's dates from its new predecessor. A rejected edge performs no
// mutation at all.
func (s *SchedulingService) CreateDependency(ctx context.Context, taskID, dependsOnTaskID int64) (err error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return errors.Wrapf(err, "task %d", taskID)
	}
	predecessor, err := s.store.GetTask(dependsOnTaskID)
	if err != nil {
		return errors.Wrapf(err, "task %d", dependsOnTaskID)
	}
	if task.ProjectID != predecessor.ProjectID {
		return errors.Errorf("tasks %d and %d belong to different projects", taskID, dependsOnTaskID)
	}

	lock := s.projectLock(task.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	txStore, err := s.store.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rollbackErr := txStore.Rollback(); rollbackErr != nil {
			s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
		}
	}()

	g, err := s.loadGraph(txStore, task.ProjectID)
	if err != nil {
		return err
	}
	if g.WouldCreateCycle(taskID, dependsOnTaskID) {
		return &schedule.CircularDependencyError{TaskID: taskID, DependsOnTaskID: dependsOnTaskID}
	}
	if err = txStore.SaveDependency(models.TaskDependency{
		TaskID:          taskID,
		DependsOnTaskID: dependsOnTaskID,
		ProjectID:       task.ProjectID,
	}); err != nil {
		return errors.Wrap(err, "save dependency")
	}
	if err = g.AddEdge(taskID, dependsOnTaskID); err != nil {
		return err
	}
	if err = txStore.SaveScheduleEvent(models.ScheduleEvent{
		TaskID:    taskID,
		ProjectID: task.ProjectID,
		Kind:      models.DependencyCreatedEvent,
		Message:   fmt.Sprintf("now depends on task %d", dependsOnTaskID),
	}); err != nil {
		return errors.Wrap(err, "save schedule event")
	}

	changed, err := s.cascadeAndApply(txStore, g, taskID)
	if err != nil {
		return err
	}
	if err = txStore.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit")
	}
	committed = true
	// Only a durable change is worth telling anyone about.
	s.afterCommit(ctx, task.ProjectID, changed)
	s.logger.Infof("Created dependency %d -> %d, rescheduled %d task(s)", taskID, dependsOnTaskID, len(changed))
	return nil
}

// DeleteDependency removes the edge. The successor becomes independent of
// that predecessor: its planned start falls back to its baseline (or its
// remaining predecessors) on the cascade that follows.
func (s *SchedulingService) DeleteDependency(ctx context.Context, taskID, dependsOnTaskID int64) (err error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return errors.Wrapf(err, "task %d", taskID)
	}

	lock := s.projectLock(task.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	txStore, err := s.store.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rollbackErr := txStore.Rollback(); rollbackErr != nil {
			s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
		}
	}()

	if err = txStore.DeleteDependency(taskID, dependsOnTaskID); err != nil {
		return errors.Wrapf(err, "delete dependency %d -> %d", taskID, dependsOnTaskID)
	}
	g, err := s.loadGraph(txStore, task.ProjectID)
	if err != nil {
		return err
	}
	if err = txStore.SaveScheduleEvent(models.ScheduleEvent{
		TaskID:    taskID,
		ProjectID: task.ProjectID,
		Kind:      models.DependencyDeletedEvent,
		Message:   fmt.Sprintf("no longer depends on task %d", dependsOnTaskID),
	}); err != nil {
		return errors.Wrap(err, "save schedule event")
	}

	changed, err := s.cascadeAndApply(txStore, g, taskID)
	if err != nil {
		return err
	}
	if err = txStore.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit")
	}
	committed = true
	s.afterCommit(ctx, task.ProjectID, changed)
	s.logger.Infof("Deleted dependency %d -> %d, rescheduled %d task(s)", taskID, dependsOnTaskID, len(changed))
	return nil
}

// RecalculateTaskDuration re-derives a task's duration and planned end from
// its deliverable chains and cascades the result to its successors. It is
// idempotent: with unchanged inputs it writes nothing.
func (s *SchedulingService) RecalculateTaskDuration(ctx context.Context, taskID int64) (schedule.TaskSchedule, error) {
	_, g, err := s.runCascade(ctx, taskID)
	if err != nil {
		return schedule.TaskSchedule{}, err
	}
	task, _ := g.Task(taskID)
	return schedule.TaskSchedule{
		DurationDays: task.DurationDays,
		PlannedStart: task.PlannedStart,
		PlannedEnd:   task.PlannedEnd,
	}, nil
}

// CascadeFrom recomputes the task and propagates date changes to every
// transitively affected successor, applying all writes in one transaction.
func (s *SchedulingService) CascadeFrom(ctx context.Context, taskID int64) (CascadeResult, error) {
	result, _, err := s.runCascade(ctx, taskID)
	return result, err
}

func (s *SchedulingService) runCascade(ctx context.Context, taskID int64) (result CascadeResult, g *schedule.Graph, err error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return CascadeResult{}, nil, errors.Wrapf(err, "task %d", taskID)
	}

	lock := s.projectLock(task.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	txStore, err := s.store.Begin()
	if err != nil {
		return CascadeResult{}, nil, errors.Wrap(err, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rollbackErr := txStore.Rollback(); rollbackErr != nil {
			s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
		}
	}()

	g, err = s.loadGraph(txStore, task.ProjectID)
	if err != nil {
		return CascadeResult{}, nil, err
	}
	changed, err := s.cascadeAndApply(txStore, g, taskID)
	if err != nil {
		var partial *schedule.PartialCascadeError
		if errors.As(err, &partial) {
			return CascadeResult{FailedTaskIDs: append(partial.Updated, partial.Failed...)}, g, err
		}
		return CascadeResult{}, g, err
	}
	if err = txStore.Commit(); err != nil {
		return CascadeResult{}, g, errors.Wrap(err, "failed to commit")
	}
	committed = true
	s.afterCommit(ctx, task.ProjectID, changed)
	return CascadeResult{UpdatedTaskIDs: changed}, g, nil
}

// cascadeAndApply computes the cascade over the snapshot and applies every
// change through the transactional store. Version checks catch snapshots
// gone stale under a racing writer.
func (s *SchedulingService) cascadeAndApply(txStore storage.Store, g *schedule.Graph, originID int64) ([]int64, error) {
	changes, err := schedule.Cascade(g, originID)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, nil
	}

	var applied []int64
	for i, c := range changes {
		if err := txStore.UpdateTaskSchedule(c.TaskID, c.PlannedStart, c.PlannedEnd, c.DurationDays, c.Version); err != nil {
			if errors.Is(err, storage.ErrVersionConflict) {
				return nil, &schedule.StaleComputationError{TaskID: c.TaskID}
			}
			return nil, &schedule.PartialCascadeError{
				Updated: applied,
				Failed:  changeIDs(changes[i:]),
				Cause:   err,
			}
		}
		for _, w := range c.Windows {
			if err := txStore.UpdateDeliverableWindow(w.DeliverableID, w.PlannedStart, w.PlannedEnd); err != nil {
				return nil, &schedule.PartialCascadeError{
					Updated: applied,
					Failed:  changeIDs(changes[i:]),
					Cause:   errors.Wrapf(err, "deliverable %d", w.DeliverableID),
				}
			}
		}
		applied = append(applied, c.TaskID)
	}

	origin, _ := g.Task(originID)
	if err := txStore.SaveScheduleEvent(models.ScheduleEvent{
		TaskID:    originID,
		ProjectID: origin.ProjectID,
		Kind:      models.CascadeAppliedEvent,
		Message:   fmt.Sprintf("rescheduled %d task(s)", len(applied)),
	}); err != nil {
		return nil, errors.Wrap(err, "save schedule event")
	}
	return applied, nil
}

// afterCommit performs the non-transactional follow-ups of a cascade: cache
// invalidation and change fan-out. Failures are logged, never surfaced; the
// durable state already committed.
func (s *SchedulingService) afterCommit(ctx context.Context, projectID int64, changedTaskIDs []int64) {
	if len(changedTaskIDs) == 0 {
		return
	}
	if s.cache != nil {
		if err := s.cache.InvalidateTasks(ctx, changedTaskIDs...); err != nil {
			s.logger.Errorf("Failed to invalidate schedule cache: %v", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.TaskDatesChanged(ctx, projectID, changedTaskIDs); err != nil {
			s.logger.Errorf("Failed to publish date-change event: %v", err)
		}
	}
}

// loadGraph builds one consistent snapshot of a project's scheduling state.
func (s *SchedulingService) loadGraph(store storage.Store, projectID int64) (*schedule.Graph, error) {
	tasks, err := store.ListProjectTasks(projectID)
	if err != nil {
		return nil, errors.Wrapf(err, "list tasks of project %d", projectID)
	}
	deliverables, err := store.ListProjectDeliverables(projectID)
	if err != nil {
		return nil, errors.Wrapf(err, "list deliverables of project %d", projectID)
	}
	edges, err := store.ListProjectDependencies(projectID)
	if err != nil {
		return nil, errors.Wrapf(err, "list dependencies of project %d", projectID)
	}
	return schedule.NewGraph(tasks, deliverables, edges)
}

// TaskScheduleState classifies a task's live schedule risk as of the given
// date, through the cache when one is attached.
func (s *SchedulingService) TaskScheduleState(ctx context.Context, taskID int64, asOf time.Time) (schedule.ScheduleState, error) {
	if s.cache != nil {
		if state, ok, err := s.cache.GetState(ctx, taskID); err != nil {
			s.logger.Errorf("Schedule cache read failed: %v", err)
		} else if ok {
			return state, nil
		}
	}
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return "", errors.Wrapf(err, "task %d", taskID)
	}
	state := schedule.StateOf(task, asOf)
	if s.cache != nil {
		if err := s.cache.SetState(ctx, taskID, state); err != nil {
			s.logger.Errorf("Schedule cache write failed: %v", err)
		}
	}
	return state, nil
}

// MilestoneProgress returns the weighted share of a milestone's work that is
// done, rolled up through normalized task and deliverable weights.
func (s *SchedulingService) MilestoneProgress(ctx context.Context, milestoneID int64) (float64, error) {
	if s.cache != nil {
		if progress, ok, err := s.cache.GetProgress(ctx, milestoneID); err != nil {
			s.logger.Errorf("Progress cache read failed: %v", err)
		} else if ok {
			return progress, nil
		}
	}
	if _, err := s.store.GetMilestone(milestoneID); err != nil {
		return 0, errors.Wrapf(err, "milestone %d", milestoneID)
	}
	tasks, err := s.store.ListMilestoneTasks(milestoneID)
	if err != nil {
		return 0, errors.Wrapf(err, "list tasks of milestone %d", milestoneID)
	}
	byTask := make(map[int64][]models.Deliverable, len(tasks))
	for _, t := range tasks {
		deliverables, err := s.store.ListTaskDeliverables(t.ID)
		if err != nil {
			return 0, errors.Wrapf(err, "list deliverables of task %d", t.ID)
		}
		byTask[t.ID] = deliverables
	}
	progress := schedule.MilestoneProgress(tasks, byTask)
	if s.cache != nil {
		if err := s.cache.SetProgress(ctx, milestoneID, progress); err != nil {
			s.logger.Errorf("Progress cache write failed: %v", err)
		}
	}
	return progress, nil
}

func changeIDs(changes []schedule.DateChange) []int64 {
	ids := make([]int64, len(changes))
	for i, c := range changes {
		ids[i] = c.TaskID
	}
	return ids
}
