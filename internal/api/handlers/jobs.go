package handlers

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/wonny/quorum/backend/internal/scheduler"
	"github.com/wonny/quorum/backend/pkg/logger"
)

// JobScheduler is the scheduler surface the job handlers need.
type JobScheduler interface {
	GetAllJobs() []string
	GetJobHistory(jobName string) (*scheduler.JobHistory, error)
	RunJob(jobName string) error
}

// JobStatus summarizes one scheduled job.
type JobStatus struct {
	Name        string               `json:"name"`
	SuccessRate float64              `json:"success_rate"`
	FailedRuns  int                  `json:"failed_runs"`
	LastResult  *scheduler.JobResult `json:"last_result,omitempty"`
}

// JobHandler handles scheduler endpoints
type JobHandler struct {
	sched  JobScheduler
	logger *logger.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(sched JobScheduler, log *logger.Logger) *JobHandler {
	return &JobHandler{
		sched:  sched,
		logger: log,
	}
}

// List returns the status of every scheduled job.
// GET /api/jobs
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	names := h.sched.GetAllJobs()
	sort.Strings(names)

	statuses := make([]JobStatus, 0, len(names))
	for _, name := range names {
		history, err := h.sched.GetJobHistory(name)
		if err != nil {
			continue
		}

		status := JobStatus{
			Name:        name,
			SuccessRate: history.GetSuccessRate(),
			FailedRuns:  len(history.GetFailedResults()),
		}
		if latest := history.GetLatestResults(1); len(latest) == 1 {
			status.LastResult = &latest[0]
		}
		statuses = append(statuses, status)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    statuses,
	})
}

// Run triggers a job immediately, outside its schedule.
// POST /api/jobs/{name}/run
func (h *JobHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.sched.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}

	h.logger.WithField("job", name).Info("Job triggered manually")
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"data":    name,
	})
}
