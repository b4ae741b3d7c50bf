package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	internal_http "github.com/aka1453/promin-sched/internal/http"
	"github.com/aka1453/promin-sched/internal/log"
	"github.com/aka1453/promin-sched/pkg/models"
	"github.com/aka1453/promin-sched/pkg/service"
	"github.com/aka1453/promin-sched/pkg/storage"
	"github.com/stretchr/testify/assert"
)

func TestServer(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	seedTask := func(t *testing.T, store storage.Store, name string, baseline time.Time) int64 {
		t.Helper()
		id, err := store.SaveTask(models.Task{
			MilestoneID:   1,
			ProjectID:     1,
			Name:          name,
			Weight:        1,
			BaselineStart: baseline,
			PlannedStart:  baseline,
			PlannedEnd:    baseline,
			Status:        models.PendingTaskStatus,
			StatusHealth:  models.OKStatusHealth,
		})
		assert.NoError(t, err)
		return id
	}

	newServer := func(t *testing.T) (*httptest.Server, storage.Store) {
		store := storage.NewMockStore()
		_, err := store.SaveMilestone(models.Milestone{ProjectID: 1, Name: "phase 1", Weight: 1})
		assert.NoError(t, err)
		svc := service.NewSchedulingService(store, log.GetLogger())
		srv := httptest.NewServer(internal_http.NewHandler(svc))
		t.Cleanup(srv.Close)
		return srv, store
	}

	postJSON := func(t *testing.T, srv *httptest.Server, path string, payload string) *http.Response {
		t.Helper()
		req, err := http.NewRequest("POST", srv.URL+path, bytes.NewBufferString(payload))
		assert.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := srv.Client().Do(req)
		assert.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("HealthCheck", func(t *testing.T) {
		srv, _ := newServer(t)

		resp, err := srv.Client().Get(srv.URL + "/health")
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "Scheduling server is running", string(body))
	})

	t.Run("Metrics", func(t *testing.T) {
		srv, _ := newServer(t)

		resp, err := srv.Client().Get(srv.URL + "/metrics")
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("CreateDependency", func(t *testing.T) {
		srv, store := newServer(t)
		pred := seedTask(t, store, "wireframes", date(2026, time.January, 5))
		succ := seedTask(t, store, "mockups", date(2026, time.January, 1))

		resp := postJSON(t, srv, "/dependencies",
			fmt.Sprintf(`{"task_id": %d, "depends_on_task_id": %d}`, succ, pred))
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("CreateDependencyCycleConflict", func(t *testing.T) {
		srv, store := newServer(t)
		pred := seedTask(t, store, "wireframes", date(2026, time.January, 5))
		succ := seedTask(t, store, "mockups", date(2026, time.January, 1))

		resp := postJSON(t, srv, "/dependencies",
			fmt.Sprintf(`{"task_id": %d, "depends_on_task_id": %d}`, succ, pred))
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		// The reverse edge closes a cycle
		resp = postJSON(t, srv, "/dependencies",
			fmt.Sprintf(`{"task_id": %d, "depends_on_task_id": %d}`, pred, succ))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		body, _ := io.ReadAll(resp.Body)
		var errResp struct {
			Error string `json:"error"`
		}
		assert.NoError(t, json.Unmarshal(body, &errResp))
		assert.NotEmpty(t, errResp.Error)
	})

	t.Run("CreateDependencyBadBody", func(t *testing.T) {
		srv, _ := newServer(t)

		resp := postJSON(t, srv, "/dependencies", `{not json`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("DeleteDependency", func(t *testing.T) {
		srv, store := newServer(t)
		pred := seedTask(t, store, "wireframes", date(2026, time.January, 5))
		succ := seedTask(t, store, "mockups", date(2026, time.January, 1))

		resp := postJSON(t, srv, "/dependencies",
			fmt.Sprintf(`{"task_id": %d, "depends_on_task_id": %d}`, succ, pred))
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		req, err := http.NewRequest("DELETE", srv.URL+"/dependencies",
			bytes.NewBufferString(fmt.Sprintf(`{"task_id": %d, "depends_on_task_id": %d}`, succ, pred)))
		assert.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		delResp, err := srv.Client().Do(req)
		assert.NoError(t, err)
		defer delResp.Body.Close()
		assert.Equal(t, http.StatusNoContent, delResp.StatusCode)
	})

	t.Run("RecalculateReturnsSchedule", func(t *testing.T) {
		srv, store := newServer(t)
		taskID := seedTask(t, store, "wireframes", date(2026, time.January, 5))
		_, err := store.SaveDeliverable(models.Deliverable{
			TaskID:       taskID,
			Name:         "draft",
			Weight:       1,
			DurationDays: 5,
		})
		assert.NoError(t, err)

		resp := postJSON(t, srv, fmt.Sprintf("/tasks/%d/recalculate", taskID), "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, _ := io.ReadAll(resp.Body)
		var sched struct {
			DurationDays int       `json:"duration_days"`
			PlannedStart time.Time `json:"planned_start"`
			PlannedEnd   time.Time `json:"planned_end"`
		}
		assert.NoError(t, json.Unmarshal(body, &sched))
		assert.Equal(t, 5, sched.DurationDays)
		assert.True(t, sched.PlannedEnd.Equal(date(2026, time.January, 10)))
	})

	t.Run("CascadeReturnsResult", func(t *testing.T) {
		srv, store := newServer(t)
		taskID := seedTask(t, store, "wireframes", date(2026, time.January, 5))

		resp := postJSON(t, srv, fmt.Sprintf("/tasks/%d/cascade", taskID), "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, _ := io.ReadAll(resp.Body)
		var result service.CascadeResult
		assert.NoError(t, json.Unmarshal(body, &result))
		assert.Empty(t, result.FailedTaskIDs)
	})

	t.Run("CascadeUnknownTask", func(t *testing.T) {
		srv, _ := newServer(t)

		resp := postJSON(t, srv, "/tasks/12345/cascade", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("ScheduleState", func(t *testing.T) {
		srv, store := newServer(t)
		taskID := seedTask(t, store, "wireframes", date(2026, time.January, 5))

		resp, err := srv.Client().Get(fmt.Sprintf("%s/tasks/%d/schedule-state?as_of=%s",
			srv.URL, taskID, date(2026, time.January, 3).Format(time.RFC3339)))
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		var state struct {
			TaskID int64  `json:"task_id"`
			State  string `json:"state"`
		}
		assert.NoError(t, json.Unmarshal(body, &state))
		assert.Equal(t, taskID, state.TaskID)
		assert.Equal(t, "ON_TRACK", state.State)
	})

	t.Run("ScheduleStateBadAsOf", func(t *testing.T) {
		srv, store := newServer(t)
		taskID := seedTask(t, store, "wireframes", date(2026, time.January, 5))

		resp, err := srv.Client().Get(fmt.Sprintf("%s/tasks/%d/schedule-state?as_of=yesterday", srv.URL, taskID))
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("TaskLifecycle", func(t *testing.T) {
		srv, store := newServer(t)
		taskID := seedTask(t, store, "wireframes", date(2026, time.January, 5))

		resp := postJSON(t, srv, fmt.Sprintf("/tasks/%d/start", taskID), "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = postJSON(t, srv, fmt.Sprintf("/tasks/%d/complete", taskID), "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		task, err := store.GetTask(taskID)
		assert.NoError(t, err)
		assert.Equal(t, models.CompletedTaskStatus, task.Status)
	})

	t.Run("MilestoneProgress", func(t *testing.T) {
		srv, store := newServer(t)
		taskID := seedTask(t, store, "wireframes", date(2026, time.January, 5))
		_, err := store.SaveDeliverable(models.Deliverable{
			TaskID: taskID,
			Name:   "draft",
			Weight: 1,
			IsDone: true,
		})
		assert.NoError(t, err)

		resp, err := srv.Client().Get(srv.URL + "/milestones/1/progress")
		assert.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		var progress struct {
			MilestoneID int64   `json:"milestone_id"`
			Progress    float64 `json:"progress"`
		}
		assert.NoError(t, json.Unmarshal(body, &progress))
		assert.Equal(t, 1.0, progress.Progress)
	})

	t.Run("DeliverableDoneToggle", func(t *testing.T) {
		srv, store := newServer(t)
		taskID := seedTask(t, store, "wireframes", date(2026, time.January, 5))
		dID, err := store.SaveDeliverable(models.Deliverable{
			TaskID:       taskID,
			Name:         "draft",
			Weight:       1,
			DurationDays: 3,
		})
		assert.NoError(t, err)

		resp := postJSON(t, srv, fmt.Sprintf("/deliverables/%d/done", dID), "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		d, err := store.GetDeliverable(dID)
		assert.NoError(t, err)
		assert.True(t, d.IsDone)

		resp = postJSON(t, srv, fmt.Sprintf("/deliverables/%d/undone", dID), "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		d, err = store.GetDeliverable(dID)
		assert.NoError(t, err)
		assert.False(t, d.IsDone)
	})

	t.Run("InvalidTaskID", func(t *testing.T) {
		srv, _ := newServer(t)

		resp := postJSON(t, srv, "/tasks/not-a-number/cascade", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
