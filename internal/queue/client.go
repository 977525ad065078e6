package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/paperledger/internal/config"
)

// Client dispatches work to the asynq server. Task retry is disabled at the
// queue level: attempt accounting lives on the durable job rows, and handlers
// re-enqueue delayed tasks themselves.
type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueueIndexDocument(payload IndexDocumentPayload, delay time.Duration) error {
	return c.enqueue(TypeIndexDocument, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
		asynq.ProcessIn(delay),
	)
}

func (c *Client) EnqueueSyncTenant(payload SyncTenantPayload, delay time.Duration) error {
	// TaskID collapses duplicate sync dispatches for a tenant within the
	// same second; the drain loop picks up whatever rows are pending.
	err := c.enqueue(TypeSyncTenant, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
		asynq.ProcessIn(delay),
		asynq.TaskID(fmt.Sprintf("sync:%s:%s:%d", payload.UserID, payload.CompanyID, time.Now().Add(delay).Unix())),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func (c *Client) enqueue(taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.Enqueue(task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
