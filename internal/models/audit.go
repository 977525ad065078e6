package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	UserID       string          `json:"user_id" db:"user_id"`
	CompanyID    string          `json:"company_id" db:"company_id"`
	Action       string          `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage `json:"details" db:"details"`
	IPAddress    string          `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

type LLMUsageLog struct {
	ID           uuid.UUID              `json:"id" db:"id"`
	UserID       string                 `json:"user_id" db:"user_id"`
	CompanyID    string                 `json:"company_id" db:"company_id"`
	Provider     string                 `json:"provider" db:"provider"`
	Model        string                 `json:"model" db:"model"`
	InputTokens  int                    `json:"input_tokens" db:"input_tokens"`
	OutputTokens int                    `json:"output_tokens" db:"output_tokens"`
	TotalTokens  int                    `json:"total_tokens" db:"total_tokens"`
	CostUSD      float64                `json:"cost_usd" db:"cost_usd"`
	LatencyMs    int64                  `json:"latency_ms" db:"latency_ms"`
	Endpoint     string                 `json:"endpoint" db:"endpoint"`
	Metadata     map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"`
}

type WebhookEndpoint struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CompanyID string    `json:"company_id" db:"company_id"`
	URL       string    `json:"url" db:"url"`
	Secret    string    `json:"-" db:"secret"`
	Events    []string  `json:"events" db:"events"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
