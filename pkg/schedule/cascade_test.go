package schedule_test

import (
	"testing"
	"time"

	"github.com/aka1453/promin-sched/pkg/models"
	"github.com/aka1453/promin-sched/pkg/schedule"
	"github.com/stretchr/testify/assert"
)

// newTask returns a task whose current planned dates are already consistent
// with its baseline and duration, as rows look after a previous recalculation.
func newTask(id int64, baseline time.Time, durationDays, offsetDays int) models.Task {
	return models.Task{
		ID:            id,
		Name:          "task",
		Status:        models.PendingTaskStatus,
		BaselineStart: baseline,
		PlannedStart:  baseline,
		PlannedEnd:    baseline.AddDate(0, 0, durationDays),
		DurationDays:  durationDays,
		OffsetDays:    offsetDays,
	}
}

func singleDeliverable(id, taskID int64, durationDays int) models.Deliverable {
	return models.Deliverable{ID: id, TaskID: taskID, Name: "d", DurationDays: durationDays}
}

func TestCascade(t *testing.T) {
	t.Run("OffsetArithmetic", func(t *testing.T) {
		// Predecessor ends 2026-01-10; successor keeps a 2-day buffer, so it
		// starts 2026-01-12. Calendar days, no business-day skipping.
		pred := newTask(1, date(2026, 1, 1), 9, 0)
		succ := newTask(2, date(2026, 1, 1), 3, 2)
		g, err := schedule.NewGraph(
			[]models.Task{pred, succ},
			[]models.Deliverable{singleDeliverable(10, 1, 9), singleDeliverable(11, 2, 3)},
			[]models.TaskDependency{{TaskID: 2, DependsOnTaskID: 1}},
		)
		assert.NoError(t, err)

		changes, err := schedule.Cascade(g, 1)
		assert.NoError(t, err)
		assert.Len(t, changes, 1)
		assert.Equal(t, int64(2), changes[0].TaskID)
		assert.Equal(t, date(2026, 1, 12), changes[0].PlannedStart)
		assert.Equal(t, date(2026, 1, 15), changes[0].PlannedEnd)
		assert.Equal(t, 3, changes[0].DurationDays)
	})

	t.Run("Idempotent", func(t *testing.T) {
		pred := newTask(1, date(2026, 1, 1), 9, 0)
		succ := newTask(2, date(2026, 1, 1), 3, 2)
		g, err := schedule.NewGraph(
			[]models.Task{pred, succ},
			[]models.Deliverable{singleDeliverable(10, 1, 9), singleDeliverable(11, 2, 3)},
			[]models.TaskDependency{{TaskID: 2, DependsOnTaskID: 1}},
		)
		assert.NoError(t, err)

		first, err := schedule.Cascade(g, 1)
		assert.NoError(t, err)
		assert.NotEmpty(t, first)

		// The snapshot now carries the applied dates; nothing moves again.
		second, err := schedule.Cascade(g, 1)
		assert.NoError(t, err)
		assert.Empty(t, second)
	})

	t.Run("PropagationStopsWhenDatesUnchanged", func(t *testing.T) {
		// The chain is already consistent: 2 starts exactly at 1's end, 3 at
		// 2's end. Cascading from 1 recomputes it to the same dates, so
		// nothing downstream is touched.
		t1 := newTask(1, date(2026, 1, 1), 4, 0)
		t2 := newTask(2, date(2026, 1, 5), 3, 0)
		t2.PlannedStart = date(2026, 1, 5)
		t3 := newTask(3, date(2026, 1, 8), 2, 0)
		g, err := schedule.NewGraph(
			[]models.Task{t1, t2, t3},
			[]models.Deliverable{singleDeliverable(10, 1, 4), singleDeliverable(11, 2, 3), singleDeliverable(12, 3, 2)},
			[]models.TaskDependency{{TaskID: 2, DependsOnTaskID: 1}, {TaskID: 3, DependsOnTaskID: 2}},
		)
		assert.NoError(t, err)

		changes, err := schedule.Cascade(g, 1)
		assert.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("DiamondUsesUpdatedPredecessors", func(t *testing.T) {
		// 2 and 3 depend on 1; 4 depends on both. 4 must read the shifted
		// ends of 2 and 3, never their pre-cascade values.
		// Rows still hold dates derived from task 1's old baseline of
		// 2026-01-01; the baseline has since moved to 2026-01-05.
		t1 := newTask(1, date(2026, 1, 5), 2, 0)
		t2 := newTask(2, date(2026, 1, 3), 5, 0)
		t3 := newTask(3, date(2026, 1, 3), 1, 0)
		t4 := newTask(4, date(2026, 1, 9), 2, 1)
		g, err := schedule.NewGraph(
			[]models.Task{t1, t2, t3, t4},
			[]models.Deliverable{
				singleDeliverable(10, 1, 2), singleDeliverable(11, 2, 5),
				singleDeliverable(12, 3, 1), singleDeliverable(13, 4, 2),
			},
			[]models.TaskDependency{
				{TaskID: 2, DependsOnTaskID: 1},
				{TaskID: 3, DependsOnTaskID: 1},
				{TaskID: 4, DependsOnTaskID: 2},
				{TaskID: 4, DependsOnTaskID: 3},
			},
		)
		assert.NoError(t, err)

		changes, err := schedule.Cascade(g, 1)
		assert.NoError(t, err)

		byID := make(map[int64]schedule.DateChange)
		for _, c := range changes {
			byID[c.TaskID] = c
		}
		// 1 ends 01-07; 2 runs 01-07..01-12; 3 runs 01-07..01-08.
		assert.Equal(t, date(2026, 1, 12), byID[2].PlannedEnd)
		assert.Equal(t, date(2026, 1, 8), byID[3].PlannedEnd)
		// 4 starts after the later of its predecessors plus its 1-day offset,
		// reading 2's shifted end, never the pre-cascade 01-08.
		assert.Equal(t, date(2026, 1, 13), byID[4].PlannedStart)
		assert.Equal(t, date(2026, 1, 15), byID[4].PlannedEnd)
	})

	t.Run("EdgeRemovalRevertsToBaseline", func(t *testing.T) {
		pred := newTask(1, date(2026, 1, 1), 9, 0)
		succ := newTask(2, date(2026, 2, 1), 3, 2)
		succ.PlannedStart = date(2026, 1, 12) // Currently derived from pred
		succ.PlannedEnd = date(2026, 1, 15)
		g, err := schedule.NewGraph(
			[]models.Task{pred, succ},
			[]models.Deliverable{singleDeliverable(10, 1, 9), singleDeliverable(11, 2, 3)},
			[]models.TaskDependency{{TaskID: 2, DependsOnTaskID: 1}},
		)
		assert.NoError(t, err)

		g.RemoveEdge(2, 1)
		changes, err := schedule.Cascade(g, 2)
		assert.NoError(t, err)
		assert.Len(t, changes, 1)
		assert.Equal(t, date(2026, 2, 1), changes[0].PlannedStart)
		assert.Equal(t, date(2026, 2, 4), changes[0].PlannedEnd)
	})

	t.Run("RefusesCyclicGraph", func(t *testing.T) {
		// The guard prevents this state, but the traversal defends anyway.
		t1 := newTask(1, date(2026, 1, 1), 1, 0)
		t2 := newTask(2, date(2026, 1, 1), 1, 0)
		g, err := schedule.NewGraph(
			[]models.Task{t1, t2},
			nil,
			[]models.TaskDependency{{TaskID: 2, DependsOnTaskID: 1}, {TaskID: 1, DependsOnTaskID: 2}},
		)
		assert.NoError(t, err)

		_, err = schedule.Cascade(g, 1)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
	})
}
