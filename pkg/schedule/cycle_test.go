package schedule_test

import (
	"testing"

	"github.com/aka1453/promin-sched/pkg/models"
	"github.com/aka1453/promin-sched/pkg/schedule"
	"github.com/stretchr/testify/assert"
)

func buildGraph(t *testing.T, taskIDs []int64, edges ...[2]int64) *schedule.Graph {
	t.Helper()
	tasks := make([]models.Task, len(taskIDs))
	for i, id := range taskIDs {
		tasks[i] = models.Task{ID: id, Name: "task", Status: models.PendingTaskStatus}
	}
	deps := make([]models.TaskDependency, len(edges))
	for i, e := range edges {
		deps[i] = models.TaskDependency{TaskID: e[0], DependsOnTaskID: e[1]}
	}
	g, err := schedule.NewGraph(tasks, nil, deps)
	assert.NoError(t, err)
	return g
}

func TestWouldCreateCycle(t *testing.T) {
	t.Run("SelfDependency", func(t *testing.T) {
		g := buildGraph(t, []int64{1})
		assert.True(t, g.WouldCreateCycle(1, 1))
	})

	t.Run("DirectBackEdge", func(t *testing.T) {
		// 2 depends on 1; proposing 1 -> 2 closes the loop.
		g := buildGraph(t, []int64{1, 2}, [2]int64{2, 1})
		assert.True(t, g.WouldCreateCycle(1, 2))
	})

	t.Run("TransitiveBackEdge", func(t *testing.T) {
		// 3 -> 2 -> 1; proposing 1 -> 3 closes a three-node loop.
		g := buildGraph(t, []int64{1, 2, 3}, [2]int64{2, 1}, [2]int64{3, 2})
		assert.True(t, g.WouldCreateCycle(1, 3))
	})

	t.Run("ForwardEdgeAllowed", func(t *testing.T) {
		g := buildGraph(t, []int64{1, 2, 3}, [2]int64{2, 1})
		assert.False(t, g.WouldCreateCycle(3, 2))
	})

	t.Run("DisconnectedComponents", func(t *testing.T) {
		g := buildGraph(t, []int64{1, 2, 3, 4}, [2]int64{2, 1}, [2]int64{4, 3})
		assert.False(t, g.WouldCreateCycle(2, 3))
		assert.False(t, g.WouldCreateCycle(3, 2))
	})

	t.Run("DiamondIsNotACycle", func(t *testing.T) {
		// 2 and 3 both depend on 1; 4 may depend on both.
		g := buildGraph(t, []int64{1, 2, 3, 4}, [2]int64{2, 1}, [2]int64{3, 1}, [2]int64{4, 2})
		assert.False(t, g.WouldCreateCycle(4, 3))
	})
}
