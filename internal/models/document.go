package models

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	CompanyID  string    `json:"company_id" db:"company_id"`
	RawText    string    `json:"raw_text,omitempty" db:"raw_text"`
	Fields     FieldMap  `json:"fields" db:"fields"`
	Category   string    `json:"category,omitempty" db:"category"`
	Confidence float64   `json:"confidence" db:"confidence"`
	ImageRef   string    `json:"image_ref,omitempty" db:"image_ref"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

const (
	DocStatusReceived          = "received"
	DocStatusExtracted         = "extracted"
	DocStatusStructured        = "structured"
	DocStatusCategorized       = "categorized"
	DocStatusParsed            = "parsed"
	DocStatusComplete          = "complete"
	DocStatusFailedExtraction  = "failed_extraction"
	DocStatusFailedStructuring = "failed_structuring"
)

const (
	CategoryPurchase = "purchase"
	CategorySale     = "sale"
	CategoryOthers   = "others"
)
