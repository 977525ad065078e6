package vault

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memConnStore struct {
	mu    sync.Mutex
	conns map[string]*models.SheetConnection
}

func newMemConnStore() *memConnStore {
	return &memConnStore{conns: make(map[string]*models.SheetConnection)}
}

func (s *memConnStore) Get(_ context.Context, key tenant.Key) (*models.SheetConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[key.String()]
	if !ok {
		return nil, ErrNotConnected
	}
	copied := *conn
	return &copied, nil
}

func (s *memConnStore) Upsert(_ context.Context, conn *models.SheetConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *conn
	s.conns[tenant.Key{UserID: conn.UserID, CompanyID: conn.CompanyID}.String()] = &copied
	return nil
}

func (s *memConnStore) UpdateTokens(_ context.Context, key tenant.Key, encAccess, encRefresh []byte, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[key.String()]
	if !ok {
		return ErrNotConnected
	}
	conn.EncryptedAccessToken = encAccess
	conn.EncryptedRefreshToken = encRefresh
	conn.AccessTokenExpiry = expiry
	return nil
}

func (s *memConnStore) UpdateStatus(_ context.Context, key tenant.Key, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[key.String()]
	if !ok {
		return ErrNotConnected
	}
	conn.Status = status
	return nil
}

type mockEndpoint struct {
	refreshCalls atomic.Int64
	refreshDelay time.Duration
	refreshErr   error
	tokens       Tokens
}

func (e *mockEndpoint) AuthURL(state string) string { return "https://example.test/auth?state=" + state }

func (e *mockEndpoint) Exchange(context.Context, string) (Tokens, error) {
	return e.tokens, nil
}

func (e *mockEndpoint) Refresh(context.Context, string) (Tokens, error) {
	e.refreshCalls.Add(1)
	if e.refreshDelay > 0 {
		time.Sleep(e.refreshDelay)
	}
	if e.refreshErr != nil {
		return Tokens{}, e.refreshErr
	}
	return e.tokens, nil
}

func newTestService(t *testing.T, endpoint TokenEndpoint) (*Service, *memConnStore) {
	t.Helper()
	cipher, err := NewCipher(testKey())
	require.NoError(t, err)
	store := newMemConnStore()
	return NewService(store, endpoint, cipher, 2*time.Minute), store
}

func seedConnection(t *testing.T, svc *Service, key tenant.Key, expiry time.Time) {
	t.Helper()
	require.NoError(t, svc.Store(context.Background(), key,
		Tokens{AccessToken: "old-access", RefreshToken: "refresh-1", Expiry: expiry},
		"sheet-1", "Ledger"))
}

func TestGetValidAccessTokenFreshTokenNoRefresh(t *testing.T) {
	endpoint := &mockEndpoint{}
	svc, _ := newTestService(t, endpoint)
	key := tenant.Key{UserID: "u1", CompanyID: "c1"}
	seedConnection(t, svc, key, time.Now().Add(time.Hour))

	token, err := svc.GetValidAccessToken(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "old-access", token)
	assert.EqualValues(t, 0, endpoint.refreshCalls.Load())
}

func TestGetValidAccessTokenRefreshesNearExpiry(t *testing.T) {
	endpoint := &mockEndpoint{
		tokens: Tokens{AccessToken: "new-access", RefreshToken: "refresh-2", Expiry: time.Now().Add(time.Hour)},
	}
	svc, _ := newTestService(t, endpoint)
	key := tenant.Key{UserID: "u1", CompanyID: "c1"}
	seedConnection(t, svc, key, time.Now().Add(30*time.Second)) // inside safety margin

	token, err := svc.GetValidAccessToken(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)
	assert.EqualValues(t, 1, endpoint.refreshCalls.Load())

	// The stored tokens rotated; the next call uses them without refreshing.
	token, err = svc.GetValidAccessToken(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)
	assert.EqualValues(t, 1, endpoint.refreshCalls.Load())
}

func TestConcurrentRefreshIsSingleFlight(t *testing.T) {
	endpoint := &mockEndpoint{
		refreshDelay: 50 * time.Millisecond,
		tokens:       Tokens{AccessToken: "new-access", RefreshToken: "refresh-2", Expiry: time.Now().Add(time.Hour)},
	}
	svc, _ := newTestService(t, endpoint)
	key := tenant.Key{UserID: "u1", CompanyID: "c1"}
	seedConnection(t, svc, key, time.Now().Add(-time.Minute))

	const callers = 20
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GetValidAccessToken(context.Background(), key)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "new-access", results[i])
	}
	assert.EqualValues(t, 1, endpoint.refreshCalls.Load(), "refresh must hit the provider once per tenant")
}

func TestRefreshRejectionMarksConnectionErrored(t *testing.T) {
	endpoint := &mockEndpoint{refreshErr: ErrReauthorizationRequired}
	svc, store := newTestService(t, endpoint)
	key := tenant.Key{UserID: "u1", CompanyID: "c1"}
	seedConnection(t, svc, key, time.Now().Add(-time.Minute))

	_, err := svc.GetValidAccessToken(context.Background(), key)
	assert.ErrorIs(t, err, ErrReauthorizationRequired)

	conn, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, models.ConnStatusError, conn.Status)

	// Subsequent calls fail fast on the errored status, no provider call.
	calls := endpoint.refreshCalls.Load()
	_, err = svc.GetValidAccessToken(context.Background(), key)
	assert.ErrorIs(t, err, ErrReauthorizationRequired)
	assert.Equal(t, calls, endpoint.refreshCalls.Load())
}

func TestGetValidAccessTokenStatuses(t *testing.T) {
	endpoint := &mockEndpoint{}
	svc, store := newTestService(t, endpoint)
	key := tenant.Key{UserID: "u1", CompanyID: "c1"}

	_, err := svc.GetValidAccessToken(context.Background(), key)
	assert.ErrorIs(t, err, ErrNotConnected)

	seedConnection(t, svc, key, time.Now().Add(time.Hour))
	require.NoError(t, store.UpdateStatus(context.Background(), key, models.ConnStatusDisconnected))

	_, err = svc.GetValidAccessToken(context.Background(), key)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnected(t *testing.T) {
	endpoint := &mockEndpoint{}
	svc, store := newTestService(t, endpoint)
	key := tenant.Key{UserID: "u1", CompanyID: "c1"}

	connected, err := svc.Connected(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, connected)

	seedConnection(t, svc, key, time.Now().Add(time.Hour))
	connected, err = svc.Connected(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, connected)

	require.NoError(t, store.UpdateStatus(context.Background(), key, models.ConnStatusError))
	connected, err = svc.Connected(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, connected)
}
