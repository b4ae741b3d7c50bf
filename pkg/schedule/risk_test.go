package schedule_test

import (
	"testing"

	"github.com/aka1453/promin-sched/pkg/models"
	"github.com/aka1453/promin-sched/pkg/schedule"
	"github.com/stretchr/testify/assert"
)

func riskPtr(r models.RiskState) *models.RiskState { return &r }

func TestStateOf(t *testing.T) {
	asOf := date(2026, 6, 15)

	t.Run("CompletedOverridesEverything", func(t *testing.T) {
		task := models.Task{
			Status:     models.CompletedTaskStatus,
			PlannedEnd: date(2026, 6, 1), // Long expired
			IsDelayed:  true,
			RiskState:  riskPtr(models.DelayedRiskState),
		}
		assert.Equal(t, schedule.OnTrackState, schedule.StateOf(task, asOf))
	})

	t.Run("CanonicalSignalIsAuthoritative", func(t *testing.T) {
		task := models.Task{
			Status:     models.InProgressTaskStatus,
			PlannedEnd: date(2026, 7, 1),
			IsDelayed:  true, // Fallback says DELAYED; canonical wins
			RiskState:  riskPtr(models.OnTrackRiskState),
		}
		assert.Equal(t, schedule.OnTrackState, schedule.StateOf(task, asOf))

		task.RiskState = riskPtr(models.AtRiskRiskState)
		assert.Equal(t, schedule.BehindState, schedule.StateOf(task, asOf))

		task.RiskState = riskPtr(models.DelayedRiskState)
		assert.Equal(t, schedule.DelayedState, schedule.StateOf(task, asOf))
	})

	t.Run("FallbackDelayedFlag", func(t *testing.T) {
		task := models.Task{
			Status:     models.InProgressTaskStatus,
			PlannedEnd: date(2026, 7, 1),
			IsDelayed:  true,
		}
		assert.Equal(t, schedule.DelayedState, schedule.StateOf(task, asOf))
	})

	t.Run("FallbackRiskHealth", func(t *testing.T) {
		task := models.Task{
			Status:       models.PendingTaskStatus,
			PlannedEnd:   date(2026, 7, 1),
			StatusHealth: models.RiskStatusHealth,
		}
		assert.Equal(t, schedule.DelayedState, schedule.StateOf(task, asOf))
	})

	t.Run("FallbackExpiredPlannedEnd", func(t *testing.T) {
		task := models.Task{
			Status:     models.InProgressTaskStatus,
			PlannedEnd: date(2026, 6, 14),
		}
		assert.Equal(t, schedule.DelayedState, schedule.StateOf(task, asOf))
	})

	t.Run("FallbackWarnHealth", func(t *testing.T) {
		task := models.Task{
			Status:       models.InProgressTaskStatus,
			PlannedEnd:   date(2026, 7, 1),
			StatusHealth: models.WarnStatusHealth,
		}
		assert.Equal(t, schedule.BehindState, schedule.StateOf(task, asOf))
	})

	t.Run("DefaultOnTrack", func(t *testing.T) {
		task := models.Task{
			Status:       models.InProgressTaskStatus,
			PlannedEnd:   date(2026, 7, 1),
			StatusHealth: models.OKStatusHealth,
		}
		assert.Equal(t, schedule.OnTrackState, schedule.StateOf(task, asOf))
	})
}
