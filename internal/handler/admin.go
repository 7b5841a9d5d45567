package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/nudge/internal/scheduler"
)

// JobRunner is the scheduler surface exposed to admins.
type JobRunner interface {
	Status() []scheduler.Status
	RunNow(name string) (string, error)
}

type AdminHandler struct {
	jobs   JobRunner
	logger *slog.Logger
}

func NewAdminHandler(jobs JobRunner, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{jobs: jobs, logger: logger}
}

// ListJobs handles GET /api/admin/jobs
func (h *AdminHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.Status())
}

// RunJob handles POST /api/admin/jobs/{name}/run
func (h *AdminHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	runID, err := h.jobs.RunNow(name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		writeError(w, http.StatusNotFound, "unknown job")
		return
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "job already running")
		return
	case errors.Is(err, scheduler.ErrNotRunning):
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	case err != nil:
		h.logger.Error("run job", "job", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to run job")
		return
	}

	h.logger.Info("job triggered by admin", "job", name, "run_id", runID)
	writeJSON(w, http.StatusAccepted, map[string]string{"job": name, "run_id": runID})
}
