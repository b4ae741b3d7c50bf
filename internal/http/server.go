package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aka1453/promin-sched/internal/log"
	"github.com/aka1453/promin-sched/internal/metrics"
	"github.com/aka1453/promin-sched/pkg/schedule"
	"github.com/aka1453/promin-sched/pkg/service"
	"github.com/aka1453/promin-sched/pkg/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHandler wires every route of the scheduling API onto a fresh mux.
func NewHandler(svc *service.SchedulingService) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /dependencies", createDependencyHandler(svc))
	mux.HandleFunc("DELETE /dependencies", deleteDependencyHandler(svc))
	mux.HandleFunc("POST /tasks/{id}/recalculate", recalculateHandler(svc))
	mux.HandleFunc("POST /tasks/{id}/cascade", cascadeHandler(svc))
	mux.HandleFunc("GET /tasks/{id}/schedule-state", scheduleStateHandler(svc))
	mux.HandleFunc("POST /tasks/{id}/start", startTaskHandler(svc))
	mux.HandleFunc("POST /tasks/{id}/complete", completeTaskHandler(svc))
	mux.HandleFunc("GET /milestones/{id}/progress", milestoneProgressHandler(svc))
	mux.HandleFunc("POST /deliverables/{id}/done", deliverableDoneHandler(svc, true))
	mux.HandleFunc("POST /deliverables/{id}/undone", deliverableDoneHandler(svc, false))
	return withRequestMetrics(mux)
}

// StartServer runs the scheduling API on the given port until the listener
// fails.
func StartServer(port int, svc *service.SchedulingService) error {
	log.GetLogger().Infof("Starting scheduling server on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), NewHandler(svc))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Scheduling server is running")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

type dependencyRequest struct {
	TaskID          int64 `json:"task_id"`
	DependsOnTaskID int64 `json:"depends_on_task_id"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeServiceError maps the engine's error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var circular *schedule.CircularDependencyError
	var malformed *schedule.MalformedChainError
	var stale *schedule.StaleComputationError
	switch {
	case errors.As(err, &circular):
		metrics.CycleRejections.Inc()
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &stale):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &malformed):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		log.GetLogger().Errorf("Request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func createDependencyHandler(svc *service.SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dependencyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if err := svc.CreateDependency(r.Context(), req.TaskID, req.DependsOnTaskID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func deleteDependencyHandler(svc *service.SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dependencyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if err := svc.DeleteDependency(r.Context(), req.TaskID, req.DependsOnTaskID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func recalculateHandler(svc *service.SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := pathID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid task id"})
			return
		}
		sched, err := svc.RecalculateTaskDuration(r.Context(), taskID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sched)
	}
}

func cascadeHandler(svc *service.SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := pathID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid task id"})
			return
		}
		start := time.Now()
		result, err := svc.CascadeFrom(r.Context(), taskID)
		if err != nil {
			metrics.ObserveCascade("failed", 0, time.Since(start))
			var partial *schedule.PartialCascadeError
			if errors.As(err, &partial) {
				// Nothing was persisted, report which tasks would have moved.
				writeJSON(w, http.StatusInternalServerError, result)
				return
			}
			writeServiceError(w, err)
			return
		}
		status := "noop"
		if len(result.UpdatedTaskIDs) > 0 {
			status = "applied"
		}
		metrics.ObserveCascade(status, len(result.UpdatedTaskIDs), time.Since(start))
		writeJSON(w, http.StatusOK, result)
	}
}

type scheduleStateResponse struct {
	TaskID int64                  `json:"task_id"`
	State  schedule.ScheduleState `json:"state"`
}

func scheduleStateHandler(svc *service.SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := pathID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid task id"})
			return
		}
		asOf := time.Now().UTC()
		if raw := r.URL.Query().Get("as_of"); raw != "" {
			asOf, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "as_of must be RFC3339"})
				return
			}
		}
		state, err := svc.TaskScheduleState(r.Context(), taskID, asOf)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, scheduleStateResponse{TaskID: taskID, State: state})
	}
}

func startTaskHandler(svc *service.SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := pathID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid task id"})
			return
		}
		if err := svc.StartTask(r.Context(), taskID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func completeTaskHandler(svc *service.SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := pathID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid task id"})
			return
		}
		if err := svc.CompleteTask(r.Context(), taskID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type progressResponse struct {
	MilestoneID int64   `json:"milestone_id"`
	Progress    float64 `json:"progress"`
}

func milestoneProgressHandler(svc *service.SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		milestoneID, err := pathID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid milestone id"})
			return
		}
		progress, err := svc.MilestoneProgress(r.Context(), milestoneID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, progressResponse{MilestoneID: milestoneID, Progress: progress})
	}
}

func deliverableDoneHandler(svc *service.SchedulingService, done bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deliverableID, err := pathID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid deliverable id"})
			return
		}
		if err := svc.SetDeliverableDone(r.Context(), deliverableID, done); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
