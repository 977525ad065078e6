package queue

const (
	TypeIndexDocument = "document:index"
	TypeSyncTenant    = "sheet:sync"
)

type IndexDocumentPayload struct {
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
	CompanyID  string `json:"company_id"`
}

// SyncTenantPayload addresses a tenant, not a single document: the sync
// worker drains that tenant's pending jobs in order under one lease, which
// is how same-tenant writes stay sequential.
type SyncTenantPayload struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
}
