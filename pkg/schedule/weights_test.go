package schedule_test

import (
	"testing"

	"github.com/aka1453/promin-sched/pkg/models"
	"github.com/aka1453/promin-sched/pkg/schedule"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeWeights(t *testing.T) {
	t.Run("RatiosSumToOne", func(t *testing.T) {
		out := schedule.NormalizeWeights([]schedule.SiblingWeight{
			{ID: 1, Raw: 25}, {ID: 2, Raw: 25}, {ID: 3, Raw: 50},
		})
		assert.Equal(t, 0.25, out[0].Normalized)
		assert.Equal(t, 0.25, out[1].Normalized)
		assert.Equal(t, 0.50, out[2].Normalized)

		sum := 0.0
		for _, w := range out {
			sum += w.Normalized
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	})

	t.Run("UnevenRawWeights", func(t *testing.T) {
		out := schedule.NormalizeWeights([]schedule.SiblingWeight{
			{ID: 1, Raw: 1}, {ID: 2, Raw: 2}, {ID: 3, Raw: 4},
		})
		sum := 0.0
		for _, w := range out {
			sum += w.Normalized
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
		assert.InDelta(t, 1.0/7.0, out[0].Normalized, 1e-9)
	})

	t.Run("AllZeroSplitsEqually", func(t *testing.T) {
		out := schedule.NormalizeWeights([]schedule.SiblingWeight{
			{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4},
		})
		for _, w := range out {
			assert.InDelta(t, 0.25, w.Normalized, 1e-9)
		}
	})

	t.Run("EmptySet", func(t *testing.T) {
		assert.Nil(t, schedule.NormalizeWeights(nil))
	})
}

func TestProgressRollups(t *testing.T) {
	t.Run("TaskProgress", func(t *testing.T) {
		deliverables := []models.Deliverable{
			{ID: 1, TaskID: 7, Weight: 25, IsDone: true},
			{ID: 2, TaskID: 7, Weight: 25},
			{ID: 3, TaskID: 7, Weight: 50, IsDone: true},
		}
		assert.InDelta(t, 0.75, schedule.TaskProgress(deliverables), 1e-9)
	})

	t.Run("NoDeliverables", func(t *testing.T) {
		assert.Zero(t, schedule.TaskProgress(nil))
	})

	t.Run("MilestoneProgress", func(t *testing.T) {
		tasks := []models.Task{
			{ID: 1, Weight: 1, Status: models.InProgressTaskStatus},
			{ID: 2, Weight: 3, Status: models.PendingTaskStatus},
		}
		byTask := map[int64][]models.Deliverable{
			1: {{ID: 10, TaskID: 1, Weight: 1, IsDone: true}},
			2: {{ID: 11, TaskID: 2, Weight: 1, IsDone: true}, {ID: 12, TaskID: 2, Weight: 1}},
		}
		// 0.25*1.0 + 0.75*0.5
		assert.InDelta(t, 0.625, schedule.MilestoneProgress(tasks, byTask), 1e-9)
	})
}
