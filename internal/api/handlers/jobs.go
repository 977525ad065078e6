package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikhilbhutani/paperledger/internal/audit"
	"github.com/nikhilbhutani/paperledger/internal/jobs"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/queue"
)

type JobHandler struct {
	jobs       *jobs.Store
	dispatcher *queue.Dispatcher
	audit      *audit.Service
}

func NewJobHandler(js *jobs.Store, d *queue.Dispatcher, auditSvc *audit.Service) *JobHandler {
	return &JobHandler{jobs: js, dispatcher: d, audit: auditSvc}
}

func (h *JobHandler) Dead(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantKey(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}

	dead, err := h.jobs.DeadJobs(r.Context(), key, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": dead, "count": len(dead)})
}

// Retry resets a dead job to pending and re-dispatches it. Attempt
// accounting starts over.
func (h *JobHandler) Retry(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantKey(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid job ID"})
		return
	}

	job, err := h.jobs.Retry(r.Context(), key, id)
	if errors.Is(err, jobs.ErrNotClaimable) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "job is not dead"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}

	switch job.JobType {
	case models.JobTypeIndex:
		err = h.dispatcher.EnqueueIndex(job.DocumentID, key, 0)
	case models.JobTypeSync:
		err = h.dispatcher.EnqueueSync(key, 0)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "job reset but dispatch failed"})
		return
	}

	if h.audit != nil {
		_ = h.audit.Log(r.Context(), key, audit.LogEntry{
			Action:       "job.retried",
			ResourceType: "document_job",
			ResourceID:   &job.ID,
			Details:      map[string]interface{}{"job_type": job.JobType, "document_id": job.DocumentID},
			IPAddress:    r.RemoteAddr,
		})
	}

	writeJSON(w, http.StatusOK, job)
}
