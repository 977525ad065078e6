package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
)

const (
	EventJobDead          = "job.dead"
	EventDocumentComplete = "document.complete"
	EventReauthRequired   = "sheets.reauth_required"
)

type Service struct {
	db         *pgxpool.Pool
	dispatcher *Dispatcher
}

func NewService(db *pgxpool.Pool, dispatcher *Dispatcher) *Service {
	return &Service{db: db, dispatcher: dispatcher}
}

type CreateRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func (s *Service) Create(ctx context.Context, key tenant.Key, req CreateRequest) (*models.WebhookEndpoint, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	eventsJSON, _ := json.Marshal(req.Events)

	var ep models.WebhookEndpoint
	err = s.db.QueryRow(ctx,
		`INSERT INTO webhook_endpoints (user_id, company_id, url, events, secret, active)
		 VALUES ($1, $2, $3, $4, $5, true)
		 RETURNING id, user_id, company_id, url, active, created_at`,
		key.UserID, key.CompanyID, req.URL, eventsJSON, secret,
	).Scan(&ep.ID, &ep.UserID, &ep.CompanyID, &ep.URL, &ep.Active, &ep.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert webhook endpoint: %w", err)
	}

	ep.Events = req.Events
	// Secret is returned once, on creation only.
	ep.Secret = secret
	return &ep, nil
}

func (s *Service) List(ctx context.Context, key tenant.Key) ([]models.WebhookEndpoint, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, company_id, url, events, active, created_at
		 FROM webhook_endpoints WHERE user_id = $1 AND company_id = $2
		 ORDER BY created_at DESC`,
		key.UserID, key.CompanyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhook endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []models.WebhookEndpoint
	for rows.Next() {
		var ep models.WebhookEndpoint
		var eventsJSON []byte
		if err := rows.Scan(&ep.ID, &ep.UserID, &ep.CompanyID, &ep.URL, &eventsJSON, &ep.Active, &ep.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook endpoint: %w", err)
		}
		_ = json.Unmarshal(eventsJSON, &ep.Events)
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

func (s *Service) Delete(ctx context.Context, key tenant.Key, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM webhook_endpoints WHERE id = $1 AND user_id = $2 AND company_id = $3",
		id, key.UserID, key.CompanyID)
	return err
}

// Emit sends an event to every active endpoint of the tenant subscribed
// to it. Delivery is asynchronous and best-effort.
func (s *Service) Emit(ctx context.Context, key tenant.Key, event string, payload interface{}) {
	rows, err := s.db.Query(ctx,
		`SELECT id, url, secret FROM webhook_endpoints
		 WHERE user_id = $1 AND company_id = $2 AND active = true AND events @> $3::jsonb`,
		key.UserID, key.CompanyID, fmt.Sprintf(`["%s"]`, event),
	)
	if err != nil {
		return
	}
	defer rows.Close()

	body, _ := json.Marshal(map[string]interface{}{
		"event":      event,
		"user_id":    key.UserID,
		"company_id": key.CompanyID,
		"data":       payload,
		"emitted_at": time.Now().UTC(),
	})

	for rows.Next() {
		var id uuid.UUID
		var url, secret string
		if err := rows.Scan(&id, &url, &secret); err != nil {
			continue
		}
		if s.dispatcher != nil {
			s.dispatcher.Enqueue(DeliveryRequest{
				EndpointID: id,
				URL:        url,
				Secret:     secret,
				Event:      event,
				Payload:    body,
			})
		}
	}
}

// JobDead, ReauthRequired and DocumentComplete adapt the service to the
// worker notification hooks.

func (s *Service) JobDead(ctx context.Context, key tenant.Key, job *models.DocumentJob) {
	s.Emit(ctx, key, EventJobDead, map[string]interface{}{
		"job_id":      job.ID,
		"document_id": job.DocumentID,
		"job_type":    job.JobType,
		"attempts":    job.AttemptCount,
		"last_error":  job.LastError,
	})
}

func (s *Service) ReauthRequired(ctx context.Context, key tenant.Key) {
	s.Emit(ctx, key, EventReauthRequired, map[string]interface{}{
		"message": "spreadsheet connection requires reauthorization",
	})
}

func (s *Service) DocumentComplete(ctx context.Context, key tenant.Key, documentID uuid.UUID) {
	s.Emit(ctx, key, EventDocumentComplete, map[string]interface{}{
		"document_id": documentID,
	})
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(b), nil
}
