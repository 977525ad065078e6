package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
)

// Dispatcher adapts Client to the tenant-keyed shapes the pipeline and
// workers consume.
type Dispatcher struct {
	client *Client
}

func NewDispatcher(c *Client) *Dispatcher {
	return &Dispatcher{client: c}
}

func (d *Dispatcher) EnqueueIndex(documentID uuid.UUID, key tenant.Key, delay time.Duration) error {
	return d.client.EnqueueIndexDocument(IndexDocumentPayload{
		DocumentID: documentID.String(),
		UserID:     key.UserID,
		CompanyID:  key.CompanyID,
	}, delay)
}

func (d *Dispatcher) EnqueueSync(key tenant.Key, delay time.Duration) error {
	return d.client.EnqueueSyncTenant(SyncTenantPayload{
		UserID:    key.UserID,
		CompanyID: key.CompanyID,
	}, delay)
}
