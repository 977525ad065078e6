package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
)

// ConnectionStore persists tenant spreadsheet connections. The unique
// (user_id, company_id) constraint keeps at most one row per tenant.
type ConnectionStore interface {
	Get(ctx context.Context, key tenant.Key) (*models.SheetConnection, error)
	Upsert(ctx context.Context, conn *models.SheetConnection) error
	UpdateTokens(ctx context.Context, key tenant.Key, encAccess, encRefresh []byte, expiry time.Time) error
	UpdateStatus(ctx context.Context, key tenant.Key, status string) error
}

type pgConnectionStore struct {
	db *pgxpool.Pool
}

func NewConnectionStore(db *pgxpool.Pool) ConnectionStore {
	return &pgConnectionStore{db: db}
}

const connColumns = `id, user_id, company_id, encrypted_access_token, encrypted_refresh_token,
	access_token_expiry, spreadsheet_id, spreadsheet_name, status, created_at, updated_at`

func (s *pgConnectionStore) Get(ctx context.Context, key tenant.Key) (*models.SheetConnection, error) {
	var c models.SheetConnection
	err := s.db.QueryRow(ctx,
		`SELECT `+connColumns+` FROM sheet_connections WHERE user_id = $1 AND company_id = $2`,
		key.UserID, key.CompanyID,
	).Scan(&c.ID, &c.UserID, &c.CompanyID, &c.EncryptedAccessToken, &c.EncryptedRefreshToken,
		&c.AccessTokenExpiry, &c.SpreadsheetID, &c.SpreadsheetName, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return &c, nil
}

func (s *pgConnectionStore) Upsert(ctx context.Context, conn *models.SheetConnection) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO sheet_connections
		   (user_id, company_id, encrypted_access_token, encrypted_refresh_token,
		    access_token_expiry, spreadsheet_id, spreadsheet_name, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, company_id) DO UPDATE SET
		   encrypted_access_token = $3, encrypted_refresh_token = $4,
		   access_token_expiry = $5, spreadsheet_id = $6, spreadsheet_name = $7,
		   status = $8, updated_at = now()`,
		conn.UserID, conn.CompanyID, conn.EncryptedAccessToken, conn.EncryptedRefreshToken,
		conn.AccessTokenExpiry, conn.SpreadsheetID, conn.SpreadsheetName, conn.Status,
	)
	if err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}
	return nil
}

func (s *pgConnectionStore) UpdateTokens(ctx context.Context, key tenant.Key, encAccess, encRefresh []byte, expiry time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE sheet_connections
		 SET encrypted_access_token = $1, encrypted_refresh_token = $2,
		     access_token_expiry = $3, updated_at = now()
		 WHERE user_id = $4 AND company_id = $5`,
		encAccess, encRefresh, expiry, key.UserID, key.CompanyID,
	)
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotConnected
	}
	return nil
}

func (s *pgConnectionStore) UpdateStatus(ctx context.Context, key tenant.Key, status string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE sheet_connections SET status = $1, updated_at = now()
		 WHERE user_id = $2 AND company_id = $3`,
		status, key.UserID, key.CompanyID,
	)
	if err != nil {
		return fmt.Errorf("update connection status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotConnected
	}
	return nil
}
