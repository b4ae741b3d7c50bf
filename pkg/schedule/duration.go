package schedule

import (
	"fmt"
	"slices"
	"time"

	"github.com/aka1453/promin-sched/pkg/models"
)

// TaskSchedule is the derived date window of a task.
type TaskSchedule struct {
	DurationDays int       `json:"duration_days"`
	PlannedStart time.Time `json:"planned_start"`
	PlannedEnd   time.Time `json:"planned_end"`
}

// DeliverableWindow is the derived date window of one deliverable inside its
// chain.
type DeliverableWindow struct {
	DeliverableID int64     `json:"deliverable_id"`
	PlannedStart  time.Time `json:"planned_start"`
	PlannedEnd    time.Time `json:"planned_end"`
}

// PartitionChains splits a task's deliverables into ordered chains following
// DependsOnDeliverableID. A deliverable with no predecessor heads a chain;
// chains are returned sorted by head id. Anything that is not a set of simple
// linear chains (a pointer cycle, two deliverables sharing a predecessor, or
// a pointer leaving the task) fails with MalformedChainError.
func PartitionChains(taskID int64, deliverables []models.Deliverable) ([][]models.Deliverable, error) {
	byID := make(map[int64]models.Deliverable, len(deliverables))
	for _, d := range deliverables {
		byID[d.ID] = d
	}
	succ := make(map[int64]int64, len(deliverables))
	for _, d := range deliverables {
		if d.DependsOnDeliverableID == nil {
			continue
		}
		pred := *d.DependsOnDeliverableID
		if pred == d.ID {
			return nil, &MalformedChainError{TaskID: taskID, Reason: fmt.Sprintf("deliverable %d depends on itself", d.ID)}
		}
		if _, ok := byID[pred]; !ok {
			return nil, &MalformedChainError{TaskID: taskID, Reason: fmt.Sprintf("deliverable %d depends on %d outside the task", d.ID, pred)}
		}
		if other, taken := succ[pred]; taken {
			return nil, &MalformedChainError{TaskID: taskID, Reason: fmt.Sprintf("deliverables %d and %d both depend on %d", other, d.ID, pred)}
		}
		succ[pred] = d.ID
	}

	var heads []int64
	for _, d := range deliverables {
		if d.DependsOnDeliverableID == nil {
			heads = append(heads, d.ID)
		}
	}
	slices.Sort(heads)

	chains := make([][]models.Deliverable, 0, len(heads))
	seen := make(map[int64]struct{}, len(deliverables))
	for _, head := range heads {
		var chain []models.Deliverable
		for id, ok := head, true; ok; id, ok = succ[id] {
			chain = append(chain, byID[id])
			seen[id] = struct{}{}
		}
		chains = append(chains, chain)
	}
	// Every deliverable not reachable from a head sits on a pointer cycle.
	if len(seen) != len(deliverables) {
		return nil, &MalformedChainError{TaskID: taskID, Reason: "deliverable pointers form a cycle"}
	}
	return chains, nil
}

// ResolveTask derives a task's duration and planned end from its deliverable
// chains: members of a chain compose sequentially (durations sum), chains run
// in parallel (task duration is the max chain duration), and planned end is
// planned start plus the duration in calendar days. A task with no
// deliverables resolves to duration 0 and end == start. The per-deliverable
// windows inside each chain are returned alongside so callers can persist
// them in the same write.
//
// The computation is idempotent: unchanged inputs always yield the same
// output.
func ResolveTask(task models.Task, deliverables []models.Deliverable) (TaskSchedule, []DeliverableWindow, error) {
	chains, err := PartitionChains(task.ID, deliverables)
	if err != nil {
		return TaskSchedule{}, nil, err
	}

	duration := 0
	windows := make([]DeliverableWindow, 0, len(deliverables))
	for _, chain := range chains {
		chainDuration := 0
		cursor := task.PlannedStart
		for _, d := range chain {
			end := cursor.AddDate(0, 0, d.DurationDays)
			windows = append(windows, DeliverableWindow{
				DeliverableID: d.ID,
				PlannedStart:  cursor,
				PlannedEnd:    end,
			})
			cursor = end
			chainDuration += d.DurationDays
		}
		duration = max(duration, chainDuration)
	}

	return TaskSchedule{
		DurationDays: duration,
		PlannedStart: task.PlannedStart,
		PlannedEnd:   task.PlannedStart.AddDate(0, 0, duration),
	}, windows, nil
}
