package schedule

import (
	"slices"

	"github.com/aka1453/promin-sched/pkg/models"
	"github.com/pkg/errors"
)

// Graph is an in-memory snapshot of one project's tasks, deliverables and
// dependency edges. All engine operations (cycle checks, duration resolution,
// cascades) run against a single Graph so they see one consistent state
// instead of re-fetching rows mid-traversal. Adjacency lists are kept sorted
// by task id so traversal order is deterministic.
type Graph struct {
	tasks        map[int64]*models.Task
	deliverables map[int64][]models.Deliverable // keyed by task id
	preds        map[int64][]int64              // task id -> tasks it depends on
	succs        map[int64][]int64              // task id -> tasks depending on it
}

// NewGraph builds a snapshot from loaded rows. Edges referencing tasks not in
// the snapshot are rejected rather than silently dropped.
func NewGraph(tasks []models.Task, deliverables []models.Deliverable, edges []models.TaskDependency) (*Graph, error) {
	g := &Graph{
		tasks:        make(map[int64]*models.Task, len(tasks)),
		deliverables: make(map[int64][]models.Deliverable),
		preds:        make(map[int64][]int64),
		succs:        make(map[int64][]int64),
	}
	for i := range tasks {
		t := tasks[i]
		g.tasks[t.ID] = &t
	}
	for _, d := range deliverables {
		if _, ok := g.tasks[d.TaskID]; !ok {
			return nil, errors.Errorf("deliverable %d references unknown task %d", d.ID, d.TaskID)
		}
		g.deliverables[d.TaskID] = append(g.deliverables[d.TaskID], d)
	}
	for _, e := range edges {
		if _, ok := g.tasks[e.TaskID]; !ok {
			return nil, errors.Errorf("dependency references unknown task %d", e.TaskID)
		}
		if _, ok := g.tasks[e.DependsOnTaskID]; !ok {
			return nil, errors.Errorf("dependency references unknown task %d", e.DependsOnTaskID)
		}
		g.preds[e.TaskID] = append(g.preds[e.TaskID], e.DependsOnTaskID)
		g.succs[e.DependsOnTaskID] = append(g.succs[e.DependsOnTaskID], e.TaskID)
	}
	for id := range g.preds {
		slices.Sort(g.preds[id])
	}
	for id := range g.succs {
		slices.Sort(g.succs[id])
	}
	return g, nil
}

// Task returns a copy of the task row in the snapshot.
func (g *Graph) Task(id int64) (models.Task, bool) {
	t, ok := g.tasks[id]
	if !ok {
		return models.Task{}, false
	}
	return *t, true
}

// Deliverables returns the deliverables under a task.
func (g *Graph) Deliverables(taskID int64) []models.Deliverable {
	return g.deliverables[taskID]
}

// Predecessors returns the task ids the given task depends on, sorted.
func (g *Graph) Predecessors(id int64) []int64 {
	return g.preds[id]
}

// Successors returns the task ids depending on the given task, sorted.
func (g *Graph) Successors(id int64) []int64 {
	return g.succs[id]
}

// AddEdge inserts an edge into the snapshot. Callers must run
// WouldCreateCycle first; AddEdge does not re-check.
func (g *Graph) AddEdge(taskID, dependsOnTaskID int64) error {
	if _, ok := g.tasks[taskID]; !ok {
		return errors.Errorf("unknown task %d", taskID)
	}
	if _, ok := g.tasks[dependsOnTaskID]; !ok {
		return errors.Errorf("unknown task %d", dependsOnTaskID)
	}
	if slices.Contains(g.preds[taskID], dependsOnTaskID) {
		return errors.Errorf("dependency %d -> %d already exists", taskID, dependsOnTaskID)
	}
	g.preds[taskID] = append(g.preds[taskID], dependsOnTaskID)
	g.succs[dependsOnTaskID] = append(g.succs[dependsOnTaskID], taskID)
	slices.Sort(g.preds[taskID])
	slices.Sort(g.succs[dependsOnTaskID])
	return nil
}

// RemoveEdge deletes an edge from the snapshot. Removing a task's last
// predecessor makes it independent again: its planned start reverts to its
// baseline on the next cascade.
func (g *Graph) RemoveEdge(taskID, dependsOnTaskID int64) {
	g.preds[taskID] = slices.DeleteFunc(g.preds[taskID], func(id int64) bool {
		return id == dependsOnTaskID
	})
	g.succs[dependsOnTaskID] = slices.DeleteFunc(g.succs[dependsOnTaskID], func(id int64) bool {
		return id == taskID
	})
}

func (g *Graph) setSchedule(id int64, c DateChange) {
	t := g.tasks[id]
	t.PlannedStart = c.PlannedStart
	t.PlannedEnd = c.PlannedEnd
	t.DurationDays = c.DurationDays
}
