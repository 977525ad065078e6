package models

import (
	"time"

	"github.com/google/uuid"
)

// SheetConnection links a tenant to their Google spreadsheet. At most one
// row exists per (user_id, company_id). Token columns hold AEAD ciphertext,
// never plaintext.
type SheetConnection struct {
	ID                    uuid.UUID `json:"id" db:"id"`
	UserID                string    `json:"user_id" db:"user_id"`
	CompanyID             string    `json:"company_id" db:"company_id"`
	EncryptedAccessToken  []byte    `json:"-" db:"encrypted_access_token"`
	EncryptedRefreshToken []byte    `json:"-" db:"encrypted_refresh_token"`
	AccessTokenExpiry     time.Time `json:"access_token_expiry" db:"access_token_expiry"`
	SpreadsheetID         string    `json:"spreadsheet_id" db:"spreadsheet_id"`
	SpreadsheetName       string    `json:"spreadsheet_name,omitempty" db:"spreadsheet_name"`
	Status                string    `json:"status" db:"status"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

const (
	ConnStatusConnected    = "connected"
	ConnStatusDisconnected = "disconnected"
	// ConnStatusError means the refresh token was rejected by the provider.
	// The tenant must re-authorize; no automatic recovery.
	ConnStatusError = "error"
)
