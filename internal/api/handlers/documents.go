package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikhilbhutani/paperledger/internal/audit"
	"github.com/nikhilbhutani/paperledger/internal/document"
	"github.com/nikhilbhutani/paperledger/internal/jobs"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/pipeline"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
)

type DocumentHandler struct {
	pipeline *pipeline.Pipeline
	docs     *document.Service
	jobs     *jobs.Store
	audit    *audit.Service
}

func NewDocumentHandler(p *pipeline.Pipeline, docs *document.Service, js *jobs.Store, auditSvc *audit.Service) *DocumentHandler {
	return &DocumentHandler{pipeline: p, docs: docs, jobs: js, audit: auditSvc}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantKey(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32MB max
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read file"})
		return
	}

	doc, err := h.pipeline.Ingest(r.Context(), key, pipeline.Upload{
		Filename: header.Filename,
		Data:     data,
	})
	if errors.Is(err, pipeline.ErrExtractionFailed) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "could not extract any text from the upload"})
		return
	}
	if errors.Is(err, pipeline.ErrStructuringFailed) {
		// Partial success: the raw text is stored and searchable, but the
		// document produced no structured fields.
		h.logUpload(r, key, doc)
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"document": doc,
			"warning":  "text was extracted but could not be structured",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.logUpload(r, key, doc)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"document": doc})
}

func (h *DocumentHandler) logUpload(r *http.Request, key tenant.Key, doc *models.Document) {
	if h.audit == nil || doc == nil {
		return
	}
	_ = h.audit.Log(r.Context(), key, audit.LogEntry{
		Action:       "document.uploaded",
		ResourceType: "document",
		ResourceID:   &doc.ID,
		Details:      map[string]interface{}{"status": doc.Status, "category": doc.Category},
		IPAddress:    r.RemoteAddr,
	})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantKey(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 20
	}

	docs, err := h.docs.List(r.Context(), key, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantKey(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document ID"})
		return
	}

	doc, err := h.docs.GetByID(r.Context(), key, id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Status reports the document status together with each follow-up job's
// own state, so a stuck sync is visible even while indexing succeeded.
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantKey(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document ID"})
		return
	}

	doc, err := h.docs.GetByID(r.Context(), key, id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		return
	}

	jobRows, err := h.jobs.ForDocument(r.Context(), key, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	type jobStatus struct {
		JobType   string `json:"job_type"`
		Status    string `json:"status"`
		Attempts  int    `json:"attempts"`
		LastError string `json:"last_error,omitempty"`
	}
	jobStatuses := make([]jobStatus, len(jobRows))
	for i, j := range jobRows {
		jobStatuses[i] = jobStatus{
			JobType:   j.JobType,
			Status:    j.Status,
			Attempts:  j.AttemptCount,
			LastError: j.LastError,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":            doc.ID,
		"status":        doc.Status,
		"terminal":      document.IsTerminal(doc.Status),
		"next_statuses": document.NextStatuses(doc.Status),
		"jobs":          jobStatuses,
	})
}

// tenantKey pulls the resolved tenant from the request. The auth
// middleware guarantees it on every authenticated route.
func tenantKey(w http.ResponseWriter, r *http.Request) (tenant.Key, bool) {
	key, ok := tenant.KeyFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing tenant"})
		return tenant.Key{}, false
	}
	return key, true
}
