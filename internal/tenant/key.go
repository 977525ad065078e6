package tenant

import (
	"errors"
	"fmt"
)

// ErrUnauthorizedTenant means the caller's claims did not resolve to an
// active membership. Rejected before any side effect.
var ErrUnauthorizedTenant = errors.New("unauthorized tenant")

// Key is the unit of data isolation: every store filters by it and every
// service takes it as an explicit parameter.
type Key struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
}

func (k Key) Valid() bool {
	return k.UserID != "" && k.CompanyID != ""
}

// String is stable and unique per tenant; used as the lock and
// single-flight key for per-tenant serialization.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.UserID, k.CompanyID)
}
