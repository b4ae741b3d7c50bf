package schedule

import (
	"slices"
	"time"

	"github.com/pkg/errors"
)

// DateChange is one task whose derived dates moved during a cascade. Windows
// carries the matching per-deliverable date shifts, and Version the task
// version the change was computed against, for optimistic application.
type DateChange struct {
	TaskID       int64
	PlannedStart time.Time
	PlannedEnd   time.Time
	DurationDays int
	PrevStart    time.Time
	PrevEnd      time.Time
	Windows      []DeliverableWindow
	Version      int64
}

// Cascade recomputes the origin task's schedule and propagates the result to
// every transitively affected successor, purely in memory over the snapshot.
// Tasks are processed in topological order of the affected subgraph so no
// task is ever recomputed against a predecessor's stale end date, and a task
// whose inputs did not move is not recomputed at all. Repeating a cascade
// over an already-applied result yields no changes.
//
// The graph is acyclic by construction (every edge passes WouldCreateCycle),
// but the traversal still refuses to run on a cyclic subgraph instead of
// looping.
func Cascade(g *Graph, originID int64) ([]DateChange, error) {
	if _, ok := g.tasks[originID]; !ok {
		return nil, errors.Errorf("task %d not in graph", originID)
	}

	affected := reachableFrom(g, originID)
	order, err := topoOrder(g, affected)
	if err != nil {
		return nil, err
	}

	var changes []DateChange
	// The origin is always dirty: its direct successors get re-derived even
	// when the origin's own dates end up unchanged (the trigger may have been
	// an edge edit rather than a date move). Deeper tasks are re-derived only
	// while their predecessors keep moving.
	dirty := map[int64]struct{}{originID: {}}
	for _, id := range order {
		if id != originID && !anyDirty(g.preds[id], dirty) {
			continue
		}
		task := *g.tasks[id]
		task.PlannedStart = derivedStart(g, id)
		sched, windows, err := ResolveTask(task, g.deliverables[id])
		if err != nil {
			return nil, err
		}
		curr := g.tasks[id]
		if sched.PlannedStart.Equal(curr.PlannedStart) &&
			sched.PlannedEnd.Equal(curr.PlannedEnd) &&
			sched.DurationDays == curr.DurationDays {
			continue
		}
		change := DateChange{
			TaskID:       id,
			PlannedStart: sched.PlannedStart,
			PlannedEnd:   sched.PlannedEnd,
			DurationDays: sched.DurationDays,
			PrevStart:    curr.PlannedStart,
			PrevEnd:      curr.PlannedEnd,
			Windows:      windows,
			Version:      curr.Version,
		}
		changes = append(changes, change)
		dirty[id] = struct{}{}
		g.setSchedule(id, change)
	}
	return changes, nil
}

// derivedStart computes where a task may start: after the latest predecessor
// end plus its own offset, or at its baseline when it has no predecessors.
func derivedStart(g *Graph, id int64) time.Time {
	preds := g.preds[id]
	if len(preds) == 0 {
		return g.tasks[id].BaselineStart
	}
	latest := g.tasks[preds[0]].PlannedEnd
	for _, p := range preds[1:] {
		if end := g.tasks[p].PlannedEnd; end.After(latest) {
			latest = end
		}
	}
	return latest.AddDate(0, 0, g.tasks[id].OffsetDays)
}

func anyDirty(ids []int64, dirty map[int64]struct{}) bool {
	for _, id := range ids {
		if _, ok := dirty[id]; ok {
			return true
		}
	}
	return false
}

// reachableFrom collects the origin plus every transitive successor.
func reachableFrom(g *Graph, originID int64) map[int64]struct{} {
	reachable := map[int64]struct{}{originID: {}}
	queue := []int64{originID}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, succ := range g.succs[curr] {
			if _, ok := reachable[succ]; ok {
				continue
			}
			reachable[succ] = struct{}{}
			queue = append(queue, succ)
		}
	}
	return reachable
}

// topoOrder sorts the affected subgraph so every task comes after all of its
// predecessors within the subgraph. Ties break by task id to keep cascades
// deterministic.
func topoOrder(g *Graph, nodes map[int64]struct{}) ([]int64, error) {
	inDegree := make(map[int64]int, len(nodes))
	for id := range nodes {
		inDegree[id] = 0
	}
	for id := range nodes {
		for _, pred := range g.preds[id] {
			if _, ok := nodes[pred]; ok {
				inDegree[id]++
			}
		}
	}

	var queue []int64
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	slices.Sort(queue)

	sorted := make([]int64, 0, len(nodes))
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		sorted = append(sorted, curr)
		for _, succ := range g.succs[curr] {
			if _, ok := nodes[succ]; !ok {
				continue
			}
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
				slices.Sort(queue)
			}
		}
	}
	if len(sorted) != len(nodes) {
		return nil, errors.New("cycle detected in task dependencies")
	}
	return sorted, nil
}
