package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/paperledger/internal/models"
)

// Resolver validates (userID, companyID) pairs against the memberships
// table. This is the only component allowed to mint a Key.
type Resolver struct {
	db *pgxpool.Pool
}

func NewResolver(db *pgxpool.Pool) *Resolver {
	return &Resolver{db: db}
}

func (r *Resolver) Resolve(ctx context.Context, userID, companyID string) (Key, error) {
	if userID == "" || companyID == "" {
		return Key{}, ErrUnauthorizedTenant
	}

	var active bool
	err := r.db.QueryRow(ctx,
		"SELECT active FROM memberships WHERE user_id = $1 AND company_id = $2",
		userID, companyID,
	).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Key{}, ErrUnauthorizedTenant
	}
	if err != nil {
		return Key{}, fmt.Errorf("resolve membership: %w", err)
	}
	if !active {
		return Key{}, ErrUnauthorizedTenant
	}

	return Key{UserID: userID, CompanyID: companyID}, nil
}

func (r *Resolver) Membership(ctx context.Context, key Key) (*models.Membership, error) {
	var m models.Membership
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, company_id, company_name, active, created_at
		 FROM memberships WHERE user_id = $1 AND company_id = $2`,
		key.UserID, key.CompanyID,
	).Scan(&m.ID, &m.UserID, &m.CompanyID, &m.CompanyName, &m.Active, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnauthorizedTenant
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return &m, nil
}

func (r *Resolver) ListCompanies(ctx context.Context, userID string) ([]models.Membership, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, company_id, company_name, active, created_at
		 FROM memberships WHERE user_id = $1 AND active ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var ms []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.CompanyID, &m.CompanyName, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		ms = append(ms, m)
	}
	return ms, nil
}
