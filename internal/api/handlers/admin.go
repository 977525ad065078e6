package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nikhilbhutani/paperledger/internal/audit"
)

type AdminHandler struct {
	audit *audit.Service
}

func NewAdminHandler(auditSvc *audit.Service) *AdminHandler {
	return &AdminHandler{audit: auditSvc}
}

func (h *AdminHandler) Usage(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantKey(w, r)
	if !ok {
		return
	}

	startDate, endDate := parseDateRange(r)
	summaries, err := h.audit.GetUsageSummary(r.Context(), key, startDate, endDate)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"usage": summaries})
}

func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantKey(w, r)
	if !ok {
		return
	}

	startDate, endDate := parseDateRange(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	logs, err := h.audit.GetAuditLogs(r.Context(), key, audit.AuditQuery{
		StartDate: startDate,
		EndDate:   endDate,
		Action:    r.URL.Query().Get("action"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": logs, "count": len(logs)})
}

func parseDateRange(r *http.Request) (*time.Time, *time.Time) {
	var start, end *time.Time
	if s := r.URL.Query().Get("start_date"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			start = &t
		}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			end = &t
		}
	}
	return start, end
}
