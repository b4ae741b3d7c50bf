package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aka1453/promin-sched/pkg/models"
	"github.com/pkg/errors"
)

// StartTask marks a pending task as in progress, stamping its actual start.
// Actual dates are only ever set through these explicit transitions.
func (s *SchedulingService) StartTask(ctx context.Context, taskID int64) error {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return errors.Wrapf(err, "task %d", taskID)
	}
	if task.Status != models.PendingTaskStatus {
		return errors.Errorf("task %d cannot start from status %s", taskID, task.Status)
	}
	now := time.Now()
	if err := s.store.UpdateTaskStatus(taskID, models.InProgressTaskStatus, &now, nil); err != nil {
		return errors.Wrapf(err, "start task %d", taskID)
	}
	s.invalidateTaskReads(ctx, task)
	s.logger.Infof("Started task %d", taskID)
	return nil
}

// CompleteTask marks an in-progress task as completed, stamping its actual
// end. A completed task always classifies as ON_TRACK afterwards.
func (s *SchedulingService) CompleteTask(ctx context.Context, taskID int64) error {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return errors.Wrapf(err, "task %d", taskID)
	}
	if task.Status != models.InProgressTaskStatus {
		return errors.Errorf("task %d cannot complete from status %s", taskID, task.Status)
	}
	now := time.Now()
	if err := s.store.UpdateTaskStatus(taskID, models.CompletedTaskStatus, nil, &now); err != nil {
		return errors.Wrapf(err, "complete task %d", taskID)
	}
	s.invalidateTaskReads(ctx, task)
	s.logger.Infof("Completed task %d", taskID)
	return nil
}

// SetDeliverableDone toggles a deliverable's completion and re-derives the
// owning task's schedule, all in one transaction: a failed cascade rolls the
// toggle back too. Undoing a completion is recorded as a reversal event for
// the audit trail. Re-marking an already-done deliverable is a no-op, its
// original completion timestamp is kept.
func (s *SchedulingService) SetDeliverableDone(ctx context.Context, deliverableID int64, done bool) (err error) {
	deliverable, err := s.store.GetDeliverable(deliverableID)
	if err != nil {
		return errors.Wrapf(err, "deliverable %d", deliverableID)
	}
	task, err := s.store.GetTask(deliverable.TaskID)
	if err != nil {
		return errors.Wrapf(err, "task %d", deliverable.TaskID)
	}
	if deliverable.IsDone == done {
		return nil
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

	var completedAt *time.Time
	if done {
		now := time.Now()
		completedAt = &now
	}
	if err = txStore.UpdateDeliverableDone(deliverableID, done, completedAt); err != nil {
		return errors.Wrapf(err, "update deliverable %d", deliverableID)
	}
	if !done {
		if err = txStore.SaveScheduleEvent(models.ScheduleEvent{
			TaskID:    task.ID,
			ProjectID: task.ProjectID,
			Kind:      models.CompletionReversedEvent,
			Message:   fmt.Sprintf("deliverable %d marked not done", deliverableID),
		}); err != nil {
			return errors.Wrap(err, "save schedule event")
		}
	}

	g, err := s.loadGraph(txStore, task.ProjectID)
	if err != nil {
		return err
	}
	changed, err := s.cascadeAndApply(txStore, g, task.ID)
	if err != nil {
		return err
	}
	if err = txStore.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit")
	}
	committed = true
	s.invalidateTaskReads(ctx, task)
	s.afterCommit(ctx, task.ProjectID, changed)
	s.logger.Infof("Set deliverable %d done=%t", deliverableID, done)
	return nil
}

// UpdateTaskWeight changes a task's raw weight. Sibling shares are normalized
// on read, so only the rollup caches need to drop.
func (s *SchedulingService) UpdateTaskWeight(ctx context.Context, taskID int64, weight float64) error {
	if weight < 0 {
		return errors.New("task weight cannot be negative")
	}
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return errors.Wrapf(err, "task %d", taskID)
	}
	if err := s.store.UpdateTaskWeight(taskID, weight); err != nil {
		return errors.Wrapf(err, "update weight of task %d", taskID)
	}
	s.invalidateTaskReads(ctx, task)
	s.logger.Infof("Updated weight of task %d to %g", taskID, weight)
	return nil
}

// UpdateDeliverableDuration changes a deliverable's duration and cascades the
// owning task's dates.
func (s *SchedulingService) UpdateDeliverableDuration(ctx context.Context, deliverableID int64, durationDays int) error {
	if durationDays < 0 {
		return errors.New("deliverable duration_days cannot be negative")
	}
	deliverable, err := s.store.GetDeliverable(deliverableID)
	if err != nil {
		return errors.Wrapf(err, "deliverable %d", deliverableID)
	}
	if err := s.store.UpdateDeliverableDuration(deliverableID, durationDays); err != nil {
		return errors.Wrapf(err, "update duration of deliverable %d", deliverableID)
	}
	if _, err := s.CascadeFrom(ctx, deliverable.TaskID); err != nil {
		return errors.Wrapf(err, "recalculate task %d", deliverable.TaskID)
	}
	s.logger.Infof("Updated duration of deliverable %d to %d day(s)", deliverableID, durationDays)
	return nil
}

// invalidateTaskReads drops the cached classification for a task and the
// cached progress of its milestone.
func (s *SchedulingService) invalidateTaskReads(ctx context.Context, task models.Task) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTasks(ctx, task.ID); err != nil {
		s.logger.Errorf("Failed to invalidate schedule cache: %v", err)
	}
	if err := s.cache.InvalidateMilestones(ctx, task.MilestoneID); err != nil {
		s.logger.Errorf("Failed to invalidate progress cache: %v", err)
	}
}
