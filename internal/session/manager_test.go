package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/fincli/internal/authclient"
	"github.com/florianilch/fincli/internal/claims"
	"github.com/florianilch/fincli/internal/credstore"
	"github.com/florianilch/fincli/internal/session"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeAuth satisfies session.Authenticator and counts network calls.
type fakeAuth struct {
	mu sync.Mutex

	loginResp   *authclient.TokenResponse
	loginErr    error
	refreshResp *authclient.TokenResponse
	refreshErr  error
	revokeErr   error

	loginCalls       int
	refreshCalls     int
	revokeCalls      int
	lastRefreshToken string
	lastRevokedToken string
}

func (f *fakeAuth) Login(_ context.Context, _, _ string) (*authclient.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	resp := *f.loginResp
	return &resp, nil
}

func (f *fakeAuth) Refresh(_ context.Context, refreshToken string) (*authclient.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	f.lastRefreshToken = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	resp := *f.refreshResp
	return &resp, nil
}

func (f *fakeAuth) Revoke(_ context.Context, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokeCalls++
	f.lastRevokedToken = refreshToken
	return f.revokeErr
}

func (f *fakeAuth) counts() (login, refresh, revoke int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.refreshCalls, f.revokeCalls
}

func tokenResponse(access, refresh string, expiresIn int64) *authclient.TokenResponse {
	tenant := int64(1)
	return &authclient.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    expiresIn,
		TenantID:     &tenant,
		Role:         "owner",
	}
}

func newManager(t *testing.T, auth session.Authenticator, clk *fakeClock, opts ...session.Option) *session.Manager {
	t.Helper()

	path := filepath.Join(t.TempDir(), "credentials.json")
	backend, err := credstore.NewFileBackend(path)
	require.NoError(t, err)

	store, err := credstore.New(backend, path+".lock")
	require.NoError(t, err)

	opts = append([]session.Option{session.WithClock(clk.Now)}, opts...)
	m, err := session.NewManager(store, auth, opts...)
	require.NoError(t, err)
	return m
}

func TestLoginPersistsSession(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{loginResp: tokenResponse("access-1", "refresh-1", 3600)}
	m := newManager(t, auth, clk)

	info, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", info.Identity)
	require.NotNil(t, info.TenantID)
	require.Equal(t, int64(1), *info.TenantID)
	require.NotNil(t, info.Role)
	require.Equal(t, claims.RoleOwner, *info.Role)
	require.True(t, info.ExpiresAt.Equal(clk.Now().Add(time.Hour)))
	require.Nil(t, info.PendingTenantSwitch)

	token, err := m.ActiveToken(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "access-1", token)

	_, refresh, _ := auth.counts()
	require.Zero(t, refresh, "a fresh token must not trigger a refresh")
}

func TestActiveTokenWithoutSession(t *testing.T) {
	m := newManager(t, &fakeAuth{}, newFakeClock())

	_, err := m.ActiveToken(context.Background(), true)
	require.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestActiveTokenRefreshesExpired(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{
		loginResp:   tokenResponse("access-1", "refresh-1", 3600),
		refreshResp: tokenResponse("access-2", "refresh-2", 3600),
	}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	token, err := m.ActiveToken(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "access-2", token)
	require.Equal(t, "refresh-1", auth.lastRefreshToken)

	_, refresh, _ := auth.counts()
	require.Equal(t, 1, refresh)

	// Now fresh again: further reads perform no network calls.
	token, err = m.ActiveToken(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "access-2", token)

	_, refresh, _ = auth.counts()
	require.Equal(t, 1, refresh)

	// The rotated refresh token was persisted and is used next time.
	clk.Advance(2 * time.Hour)
	_, err = m.ActiveToken(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "refresh-2", auth.lastRefreshToken)
}

func TestActiveTokenSkewMargin(t *testing.T) {
	tests := []struct {
		name        string
		advance     time.Duration
		wantRefresh bool
	}{
		{name: "well before margin", advance: 30 * time.Minute, wantRefresh: false},
		{name: "just before margin", advance: time.Hour - 31*time.Second, wantRefresh: false},
		{name: "at margin boundary", advance: time.Hour - 30*time.Second, wantRefresh: true},
		{name: "exactly at expiry", advance: time.Hour, wantRefresh: true},
		{name: "past expiry", advance: 2 * time.Hour, wantRefresh: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			clk := newFakeClock()
			auth := &fakeAuth{
				loginResp:   tokenResponse("access-1", "refresh-1", 3600),
				refreshResp: tokenResponse("access-2", "refresh-2", 3600),
			}
			m := newManager(t, auth, clk)

			_, err := m.Login(ctx, "a@x.com", "pw")
			require.NoError(t, err)

			clk.Advance(tt.advance)

			_, err = m.ActiveToken(ctx, true)
			require.NoError(t, err)

			_, refresh, _ := auth.counts()
			if tt.wantRefresh {
				require.Equal(t, 1, refresh)
			} else {
				require.Zero(t, refresh)
			}
		})
	}
}

func TestActiveTokenAutoRefreshDisabled(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{loginResp: tokenResponse("access-1", "refresh-1", 3600)}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	token, err := m.ActiveToken(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "access-1", token, "stale token is returned as-is when auto-refresh is off")

	_, refresh, _ := auth.counts()
	require.Zero(t, refresh)
}

func TestRefreshRejectionLeavesRecordIntact(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{
		loginResp: tokenResponse("access-1", "refresh-1", 3600),
		refreshErr: &authclient.RefreshError{
			Reason: "refresh token rejected",
			Err:    authclient.ErrAuthRejected,
		},
	}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	loginExpiry := clk.Now().Add(time.Hour)

	clk.Advance(2 * time.Hour)

	_, err = m.ActiveToken(ctx, true)
	require.ErrorIs(t, err, session.ErrSessionExpired)

	// The stored record is untouched by the failed refresh.
	info, err := m.Context(ctx)
	require.NoError(t, err)
	require.True(t, info.ExpiresAt.Equal(loginExpiry))

	token, err := m.ActiveToken(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "access-1", token)
}

func TestRefreshNetworkFailurePropagates(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{
		loginResp: tokenResponse("access-1", "refresh-1", 3600),
		refreshErr: &authclient.RefreshError{
			Reason: "authentication service unreachable",
			Err:    authclient.ErrNetworkUnavailable,
		},
	}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	_, err = m.ActiveToken(ctx, true)
	require.ErrorIs(t, err, authclient.ErrNetworkUnavailable)
	require.NotErrorIs(t, err, session.ErrSessionExpired,
		"an unreachable service must not be reported as an expired session")
}

func TestRefreshWithoutRotationKeepsToken(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{
		loginResp:   tokenResponse("access-1", "refresh-1", 3600),
		refreshResp: tokenResponse("access-2", "", 3600), // server did not rotate
	}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = m.ActiveToken(ctx, true)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = m.ActiveToken(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "refresh-1", auth.lastRefreshToken)
}

func TestConcurrentRefreshSingleNetworkCall(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{
		loginResp:   tokenResponse("access-1", "refresh-1", 3600),
		refreshResp: tokenResponse("access-2", "refresh-2", 3600),
	}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	const workers = 10
	tokens := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], errs[i] = m.ActiveToken(ctx, true)
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		require.Equal(t, "access-2", tokens[i])
	}

	_, refresh, _ := auth.counts()
	require.Equal(t, 1, refresh, "concurrent callers must coalesce into one refresh")
}

func TestForceRefreshIgnoresLocalExpiry(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{
		loginResp:   tokenResponse("access-1", "refresh-1", 3600),
		refreshResp: tokenResponse("access-2", "refresh-2", 3600),
	}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	// Token is locally fresh; force anyway.
	token, err := m.ForceRefresh(ctx)
	require.NoError(t, err)
	require.Equal(t, "access-2", token)

	_, refresh, _ := auth.counts()
	require.Equal(t, 1, refresh)
}

func TestSwitchIdentity(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{loginResp: tokenResponse("access-a", "refresh-a", 3600)}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	auth.loginResp = tokenResponse("access-b", "refresh-b", 3600)
	_, err = m.Login(ctx, "b@x.com", "pw")
	require.NoError(t, err)

	token, err := m.ActiveToken(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "access-b", token)

	require.NoError(t, m.SwitchIdentity(ctx, "a@x.com"))

	token, err = m.ActiveToken(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "access-a", token)
}

func TestSwitchIdentityUnknown(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{loginResp: tokenResponse("access-1", "refresh-1", 3600)}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	err = m.SwitchIdentity(ctx, "nobody@x.com")
	require.ErrorIs(t, err, session.ErrUnknownIdentity)

	// The current identity is unchanged.
	token, err := m.ActiveToken(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "access-1", token)
}

func TestLogoutCurrentIdentity(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{loginResp: tokenResponse("access-1", "refresh-1", 3600)}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx, ""))
	require.Equal(t, "refresh-1", auth.lastRevokedToken)

	_, _, revoke := auth.counts()
	require.Equal(t, 1, revoke)

	_, err = m.ActiveToken(ctx, true)
	require.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestLogoutRevocationFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{
		loginResp: tokenResponse("access-1", "refresh-1", 3600),
		revokeErr: errors.New("service down"),
	}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx, ""), "failed revocation must not fail the logout")

	_, err = m.ActiveToken(ctx, true)
	require.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestLogoutNamedIdentityKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{loginResp: tokenResponse("access-a", "refresh-a", 3600)}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	auth.loginResp = tokenResponse("access-b", "refresh-b", 3600)
	_, err = m.Login(ctx, "b@x.com", "pw")
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx, "a@x.com"))
	require.Equal(t, "refresh-a", auth.lastRevokedToken)

	token, err := m.ActiveToken(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "access-b", token)
}

func TestLogoutUnknownIdentity(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{loginResp: tokenResponse("access-1", "refresh-1", 3600)}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	err = m.Logout(ctx, "nobody@x.com")
	require.ErrorIs(t, err, session.ErrUnknownIdentity)
}

func TestListIdentitiesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{loginResp: tokenResponse("access", "refresh", 3600)}
	m := newManager(t, auth, clk)

	for _, email := range []string{"c@x.com", "a@x.com", "b@x.com"} {
		_, err := m.Login(ctx, email, "pw")
		require.NoError(t, err)
	}
	require.NoError(t, m.SwitchIdentity(ctx, "a@x.com"))

	ids, err := m.ListIdentities(ctx)
	require.NoError(t, err)
	require.Equal(t, []session.Identity{
		{Name: "c@x.com"},
		{Name: "a@x.com", Current: true},
		{Name: "b@x.com"},
	}, ids)
}

func TestRecordTenantSwitch(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	auth := &fakeAuth{
		loginResp:   tokenResponse("access-1", "refresh-1", 3600),
		refreshResp: tokenResponse("access-2", "refresh-2", 3600),
	}
	m := newManager(t, auth, clk)

	_, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	loginExpiry := clk.Now().Add(time.Hour)

	require.NoError(t, m.RecordTenantSwitch(ctx, 7))

	// The switch is recorded; the token and its expiry are untouched.
	info, err := m.Context(ctx)
	require.NoError(t, err)
	require.NotNil(t, info.PendingTenantSwitch)
	require.Equal(t, int64(7), *info.PendingTenantSwitch)
	require.True(t, info.ExpiresAt.Equal(loginExpiry))

	token, err := m.ActiveToken(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "access-1", token)

	// A refresh carries the pending switch forward.
	clk.Advance(2 * time.Hour)
	_, err = m.ActiveToken(ctx, true)
	require.NoError(t, err)

	info, err = m.Context(ctx)
	require.NoError(t, err)
	require.NotNil(t, info.PendingTenantSwitch)
	require.Equal(t, int64(7), *info.PendingTenantSwitch)

	// Only a real login resolves it.
	_, err = m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	info, err = m.Context(ctx)
	require.NoError(t, err)
	require.Nil(t, info.PendingTenantSwitch)
}

func TestRecordTenantSwitchWithoutSession(t *testing.T) {
	m := newManager(t, &fakeAuth{}, newFakeClock())

	err := m.RecordTenantSwitch(context.Background(), 7)
	require.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestClaimsFallBackToToken(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()

	// The response omits tenant and role; the access token carries them.
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tenant_id": 42,
		"role":      "admin",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	auth := &fakeAuth{
		loginResp: &authclient.TokenResponse{
			AccessToken:  access,
			RefreshToken: "refresh-1",
			TokenType:    "bearer",
			ExpiresIn:    3600,
		},
	}
	m := newManager(t, auth, clk)

	info, err := m.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	require.NotNil(t, info.TenantID)
	require.Equal(t, int64(42), *info.TenantID)
	require.NotNil(t, info.Role)
	require.Equal(t, claims.RoleAdmin, *info.Role)
}
