package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
)

var (
	// ErrNotConnected means the tenant has no usable spreadsheet connection.
	ErrNotConnected = errors.New("no spreadsheet connection")

	// ErrReauthorizationRequired means the provider rejected the refresh
	// token. Terminal until the user re-links; never retried automatically.
	ErrReauthorizationRequired = errors.New("spreadsheet reauthorization required")
)

// Service owns the OAuth credential lifecycle for tenant spreadsheet
// connections: encrypted storage, expiry-aware access, single-flight refresh.
type Service struct {
	store        ConnectionStore
	endpoint     TokenEndpoint
	cipher       *Cipher
	safetyMargin time.Duration
	refresh      singleflight.Group
	now          func() time.Time
}

func NewService(store ConnectionStore, endpoint TokenEndpoint, cipher *Cipher, safetyMargin time.Duration) *Service {
	if safetyMargin <= 0 {
		safetyMargin = 2 * time.Minute
	}
	return &Service{
		store:        store,
		endpoint:     endpoint,
		cipher:       cipher,
		safetyMargin: safetyMargin,
		now:          time.Now,
	}
}

// Store encrypts both tokens and upserts the tenant's connection row with
// status connected.
func (s *Service) Store(ctx context.Context, key tenant.Key, tokens Tokens, spreadsheetID, spreadsheetName string) error {
	encAccess, err := s.cipher.Seal(tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	encRefresh, err := s.cipher.Seal(tokens.RefreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}

	conn := &models.SheetConnection{
		UserID:                key.UserID,
		CompanyID:             key.CompanyID,
		EncryptedAccessToken:  encAccess,
		EncryptedRefreshToken: encRefresh,
		AccessTokenExpiry:     tokens.Expiry,
		SpreadsheetID:         spreadsheetID,
		SpreadsheetName:       spreadsheetName,
		Status:                models.ConnStatusConnected,
	}
	if err := s.store.Upsert(ctx, conn); err != nil {
		return err
	}

	slog.Info("spreadsheet connected", "tenant", key.String(), "spreadsheet_id", spreadsheetID)
	return nil
}

// GetValidAccessToken returns a decrypted access token, refreshing it first
// when it is within the safety margin of expiry. Refreshes for a tenant are
// collapsed into a single provider call; concurrent callers share the result.
func (s *Service) GetValidAccessToken(ctx context.Context, key tenant.Key) (string, error) {
	conn, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}

	switch conn.Status {
	case models.ConnStatusConnected:
	case models.ConnStatusError:
		return "", ErrReauthorizationRequired
	default:
		return "", ErrNotConnected
	}

	if s.now().Before(conn.AccessTokenExpiry.Add(-s.safetyMargin)) {
		return s.cipher.Open(conn.EncryptedAccessToken)
	}

	token, err, _ := s.refresh.Do(key.String(), func() (interface{}, error) {
		return s.doRefresh(ctx, key)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (s *Service) doRefresh(ctx context.Context, key tenant.Key) (string, error) {
	// Re-read inside the flight: a concurrent caller may have refreshed
	// between our expiry check and acquiring the flight.
	conn, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if s.now().Before(conn.AccessTokenExpiry.Add(-s.safetyMargin)) {
		return s.cipher.Open(conn.EncryptedAccessToken)
	}

	refreshToken, err := s.cipher.Open(conn.EncryptedRefreshToken)
	if err != nil {
		return "", fmt.Errorf("open refresh token: %w", err)
	}

	tokens, err := s.endpoint.Refresh(ctx, refreshToken)
	if errors.Is(err, ErrReauthorizationRequired) {
		if stErr := s.store.UpdateStatus(ctx, key, models.ConnStatusError); stErr != nil {
			slog.Error("failed to mark connection errored", "tenant", key.String(), "error", stErr)
		}
		slog.Warn("refresh token rejected, reauthorization required", "tenant", key.String())
		return "", ErrReauthorizationRequired
	}
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	encAccess, err := s.cipher.Seal(tokens.AccessToken)
	if err != nil {
		return "", fmt.Errorf("seal access token: %w", err)
	}
	encRefresh, err := s.cipher.Seal(tokens.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("seal refresh token: %w", err)
	}

	if err := s.store.UpdateTokens(ctx, key, encAccess, encRefresh, tokens.Expiry); err != nil {
		return "", err
	}

	slog.Info("access token refreshed", "tenant", key.String(), "expiry", tokens.Expiry)
	return tokens.AccessToken, nil
}

// Disconnect marks the connection disconnected. The row and its history are
// retained for a later re-link.
func (s *Service) Disconnect(ctx context.Context, key tenant.Key) error {
	if err := s.store.UpdateStatus(ctx, key, models.ConnStatusDisconnected); err != nil {
		return err
	}
	slog.Info("spreadsheet disconnected", "tenant", key.String())
	return nil
}

// Status returns the tenant's connection for inspection. Token ciphertext is
// never exposed through the JSON shape.
func (s *Service) Status(ctx context.Context, key tenant.Key) (*models.SheetConnection, error) {
	return s.store.Get(ctx, key)
}

// Connected reports whether the tenant currently has a usable connection.
func (s *Service) Connected(ctx context.Context, key tenant.Key) (bool, error) {
	conn, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrNotConnected) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return conn.Status == models.ConnStatusConnected, nil
}

// AuthURL builds the provider consent URL for the connect flow.
func (s *Service) AuthURL(state string) string {
	return s.endpoint.AuthURL(state)
}

// Exchange trades an authorization code for tokens via the provider.
func (s *Service) Exchange(ctx context.Context, code string) (Tokens, error) {
	return s.endpoint.Exchange(ctx, code)
}
