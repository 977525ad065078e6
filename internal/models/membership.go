package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership records that a user belongs to a company. Every request must
// resolve to an active membership before any tenant-scoped work happens.
type Membership struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	CompanyID   string    `json:"company_id" db:"company_id"`
	CompanyName string    `json:"company_name" db:"company_name"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
