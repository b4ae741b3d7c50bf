package schedule

import "github.com/aka1453/promin-sched/pkg/models"

// SiblingWeight is one raw, user-entered weight inside a sibling set
// (deliverables of a task, tasks of a milestone, milestones of a project).
type SiblingWeight struct {
	ID  int64
	Raw float64
}

// NormalizedWeight is a sibling's share of its set, summing to 1.0 across the
// set within floating-point tolerance.
type NormalizedWeight struct {
	ID         int64
	Normalized float64
}

// NormalizeWeights divides each raw weight by the sibling sum. When every raw
// weight in a non-empty set is zero the set is split equally; siblings the
// user never weighted still have to contribute to rollups, and a zero share
// would silently erase their subtree from progress.
func NormalizeWeights(siblings []SiblingWeight) []NormalizedWeight {
	if len(siblings) == 0 {
		return nil
	}
	sum := 0.0
	for _, s := range siblings {
		sum += s.Raw
	}
	out := make([]NormalizedWeight, len(siblings))
	for i, s := range siblings {
		share := 1.0 / float64(len(siblings))
		if sum > 0 {
			share = s.Raw / sum
		}
		out[i] = NormalizedWeight{ID: s.ID, Normalized: share}
	}
	return out
}

// TaskProgress is the weighted share of a task's deliverables that are done.
// An empty deliverable set reports zero progress.
func TaskProgress(deliverables []models.Deliverable) float64 {
	if len(deliverables) == 0 {
		return 0
	}
	siblings := make([]SiblingWeight, len(deliverables))
	for i, d := range deliverables {
		siblings[i] = SiblingWeight{ID: d.ID, Raw: d.Weight}
	}
	shares := NormalizeWeights(siblings)
	done := make(map[int64]bool, len(deliverables))
	for _, d := range deliverables {
		done[d.ID] = d.IsDone
	}
	progress := 0.0
	for _, s := range shares {
		if done[s.ID] {
			progress += s.Normalized
		}
	}
	return progress
}

// MilestoneProgress rolls task progress up through normalized task weights.
func MilestoneProgress(tasks []models.Task, deliverablesByTask map[int64][]models.Deliverable) float64 {
	if len(tasks) == 0 {
		return 0
	}
	siblings := make([]SiblingWeight, len(tasks))
	for i, t := range tasks {
		siblings[i] = SiblingWeight{ID: t.ID, Raw: t.Weight}
	}
	progress := 0.0
	for _, s := range NormalizeWeights(siblings) {
		progress += s.Normalized * TaskProgress(deliverablesByTask[s.ID])
	}
	return progress
}
