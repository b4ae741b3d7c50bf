package schedule

import (
	"time"

	"github.com/aka1453/promin-sched/pkg/models"
)

// ScheduleState is the live schedule risk of a task as shown on cards and
// diagrams.
type ScheduleState string

const (
	OnTrackState ScheduleState = "ON_TRACK"
	BehindState  ScheduleState = "BEHIND"
	DelayedState ScheduleState = "DELAYED"
)

// StateOf classifies a task's schedule risk as of a given date. Pure; first
// match wins:
//
//  1. A completed task is always ON_TRACK, however late it finished.
//  2. The canonical RiskState, when present, is authoritative and overrides
//     every local heuristic field.
//  3. Otherwise fall back to the heuristics: the delayed flag, a RISK health,
//     or an expired planned end mean DELAYED; a WARN health means BEHIND.
func StateOf(t models.Task, asOf time.Time) ScheduleState {
	if t.Status == models.CompletedTaskStatus {
		return OnTrackState
	}
	if t.RiskState != nil {
		switch *t.RiskState {
		case models.DelayedRiskState:
			return DelayedState
		case models.AtRiskRiskState:
			return BehindState
		default:
			return OnTrackState
		}
	}
	if t.IsDelayed {
		return DelayedState
	}
	if t.StatusHealth == models.RiskStatusHealth {
		return DelayedState
	}
	if t.PlannedEnd.Before(asOf) {
		return DelayedState
	}
	if t.StatusHealth == models.WarnStatusHealth {
		return BehindState
	}
	return OnTrackState
}
