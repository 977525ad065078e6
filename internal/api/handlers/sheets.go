package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/nikhilbhutani/paperledger/internal/audit"
	"github.com/nikhilbhutani/paperledger/internal/cache"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/sheets"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
	"github.com/nikhilbhutani/paperledger/internal/vault"
)

const oauthStateTTL = 10 * time.Minute

type SheetHandler struct {
	vault  *vault.Service
	writer sheets.RowWriter
	cache  *cache.Cache
	audit  *audit.Service
}

func NewSheetHandler(v *vault.Service, writer sheets.RowWriter, c *cache.Cache, auditSvc *audit.Service) *SheetHandler {
	return &SheetHandler{vault: v, writer: writer, cache: c, audit: auditSvc}
}

func (h *SheetHandler) Status(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantKey(w, r)
	if !ok {
		return
	}

	conn, err := h.vault.Status(r.Context(), key)
	if errors.Is(err, vault.ErrNotConnected) {
		writeJSON(w, http.StatusOK, map[string]string{"status": models.ConnStatusDisconnected})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           conn.Status,
		"spreadsheet_id":   conn.SpreadsheetID,
		"spreadsheet_name": conn.SpreadsheetName,
		"connected_at":     conn.CreatedAt,
	})
}

// Connect starts the OAuth flow. The state token round-trips through the
// provider and maps back to the tenant on callback, since the provider's
// redirect carries no authorization header.
func (h *SheetHandler) Connect(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantKey(w, r)
	if !ok {
		return
	}

	state, err := randomState()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate state"})
		return
	}

	if err := h.cache.Set(r.Context(), "oauth_state:"+state, key, oauthStateTTL); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to persist state"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"auth_url": h.vault.AuthURL(state)})
}

// Callback completes the OAuth flow: code exchange, workbook creation if
// the tenant has none, and encrypted token storage.
func (h *SheetHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code and state required"})
		return
	}

	var key tenant.Key
	if err := h.cache.Get(r.Context(), "oauth_state:"+state, &key); err != nil || !key.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown or expired state"})
		return
	}
	_ = h.cache.Delete(r.Context(), "oauth_state:"+state)

	tokens, err := h.vault.Exchange(r.Context(), code)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "code exchange failed"})
		return
	}

	// Reuse the existing workbook across reconnects; create one only for
	// first-time connections.
	spreadsheetID, spreadsheetName := "", ""
	if conn, err := h.vault.Status(r.Context(), key); err == nil && conn.SpreadsheetID != "" {
		spreadsheetID, spreadsheetName = conn.SpreadsheetID, conn.SpreadsheetName
	}
	if spreadsheetID == "" {
		spreadsheetName = "Document Ledger"
		spreadsheetID, err = h.writer.CreateSpreadsheet(r.Context(), tokens.AccessToken, spreadsheetName)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "spreadsheet creation failed"})
			return
		}
	}

	if err := h.vault.Store(r.Context(), key, tokens, spreadsheetID, spreadsheetName); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if h.audit != nil {
		_ = h.audit.Log(r.Context(), key, audit.LogEntry{
			Action:       "sheets.connected",
			ResourceType: "sheet_connection",
			Details:      map[string]interface{}{"spreadsheet_id": spreadsheetID},
			IPAddress:    r.RemoteAddr,
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":         models.ConnStatusConnected,
		"spreadsheet_id": spreadsheetID,
	})
}

func (h *SheetHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	key, ok := tenantKey(w, r)
	if !ok {
		return
	}

	if err := h.vault.Disconnect(r.Context(), key); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if h.audit != nil {
		_ = h.audit.Log(r.Context(), key, audit.LogEntry{
			Action:       "sheets.disconnected",
			ResourceType: "sheet_connection",
			IPAddress:    r.RemoteAddr,
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": models.ConnStatusDisconnected})
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
