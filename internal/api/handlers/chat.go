package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/nikhilbhutani/paperledger/internal/audit"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/rag"
)

type ChatHandler struct {
	orchestrator *rag.Orchestrator
	audit        *audit.Service
}

func NewChatHandler(o *rag.Orchestrator, auditSvc *audit.Service) *ChatHandler {
	return &ChatHandler{orchestrator: o, audit: auditSvc}
}

type chatRequest struct {
	Query string `json:"query"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantKey(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query required"})
		return
	}

	answer, err := h.orchestrator.Answer(r.Context(), key, req.Query)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if answer.Usage != nil {
		_ = h.audit.LogLLMUsage(r.Context(), key, models.LLMUsageLog{
			Provider:     answer.Usage.Provider,
			Model:        answer.Usage.Model,
			InputTokens:  answer.Usage.InputTokens,
			OutputTokens: answer.Usage.OutputTokens,
			TotalTokens:  answer.Usage.TotalTokens,
			CostUSD:      answer.Usage.CostUSD,
			LatencyMs:    answer.Usage.LatencyMs,
			Endpoint:     "/api/v1/chat",
		})
	}

	writeJSON(w, http.StatusOK, answer)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantKey(w, r)
	if !ok {
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query required"})
		return
	}

	matches, err := h.orchestrator.Search(r.Context(), key, req.Query, req.TopK)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": matches, "count": len(matches)})
}
