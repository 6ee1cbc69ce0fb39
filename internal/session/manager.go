package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/florianilch/fincli/internal/authclient"
	"github.com/florianilch/fincli/internal/claims"
	"github.com/florianilch/fincli/internal/credstore"
)

// DefaultSkewMargin is subtracted from a token's expiry before the
// staleness check. The exact acceptable clock skew between client and
// services is unknowable, so it is a conservative configurable value
// rather than a hard-coded assumption.
const DefaultSkewMargin = 30 * time.Second

// Authenticator performs the network operations against the
// authentication service. Satisfied by *authclient.Client.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*authclient.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*authclient.TokenResponse, error)
	Revoke(ctx context.Context, refreshToken string) error
}

// Manager drives the session state machine over the credential store.
type Manager struct {
	store *credstore.CredentialStore
	auth  Authenticator

	skew time.Duration
	now  func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithSkewMargin sets the clock-skew margin applied to expiry checks.
func WithSkewMargin(d time.Duration) Option {
	return func(m *Manager) {
		m.skew = d
	}
}

// WithClock replaces the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager over the given store and authenticator.
func NewManager(store *credstore.CredentialStore, auth Authenticator, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	if auth == nil {
		return nil, fmt.Errorf("missing authenticator")
	}

	m := &Manager{
		store: store,
		auth:  auth,
		skew:  DefaultSkewMargin,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// ActiveToken returns a bearer token for the current identity.
//
// A stale token is refreshed transparently when autoRefresh is set: the
// load→refresh→save sequence runs under the store lock, the rotated
// refresh token is persisted before anyone can observe it, and a second
// caller arriving behind the lock finds the fresh record and performs no
// network call. When the refresh token itself is rejected the stored
// record is left untouched and ErrSessionExpired is returned.
//
// Without autoRefresh the stored token is returned as-is, stale or not.
func (m *Manager) ActiveToken(ctx context.Context, autoRefresh bool) (string, error) {
	var token string
	err := m.store.Update(ctx, func(st *credstore.Store) (bool, error) {
		current, rec, err := currentRecord(st)
		if err != nil {
			return false, err
		}

		if !m.stale(rec) || !autoRefresh {
			token = rec.AccessToken
			return false, nil
		}

		slog.DebugContext(ctx, "access token stale, refreshing", "identity", current)
		fresh, err := m.refreshRecord(ctx, rec)
		if err != nil {
			return false, err
		}

		st.Set(current, fresh)
		token = fresh.AccessToken
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ForceRefresh refreshes the current identity's token regardless of its
// local expiry. It backs the single sanctioned retry after a 401 from
// the resource service, which knows better than the cached expiry does.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	var token string
	err := m.store.Update(ctx, func(st *credstore.Store) (bool, error) {
		current, rec, err := currentRecord(st)
		if err != nil {
			return false, err
		}

		fresh, err := m.refreshRecord(ctx, rec)
		if err != nil {
			return false, err
		}

		st.Set(current, fresh)
		token = fresh.AccessToken
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Login authenticates against the authentication service and stores the
// resulting record as the current identity. A pending tenant switch on a
// previous record is cleared: the new token's claims are now the truth.
func (m *Manager) Login(ctx context.Context, email, password string) (*TenantInfo, error) {
	resp, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	rec := m.recordFromResponse(resp, nil)

	var info *TenantInfo
	err = m.store.Update(ctx, func(st *credstore.Store) (bool, error) {
		st.Set(email, rec)
		if err := st.SetCurrent(email); err != nil {
			return false, err
		}
		info = projectRecord(email, rec)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// SwitchIdentity makes a previously authenticated identity current.
func (m *Manager) SwitchIdentity(ctx context.Context, identity string) error {
	return m.store.Update(ctx, func(st *credstore.Store) (bool, error) {
		if _, ok := st.Get(identity); !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownIdentity, identity)
		}
		if err := st.SetCurrent(identity); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Logout removes an identity's record, defaulting to the current one,
// and clears the current pointer when it named that identity. The
// refresh token is revoked server-side on a best-effort basis.
func (m *Manager) Logout(ctx context.Context, identity string) error {
	var refreshToken string
	err := m.store.Update(ctx, func(st *credstore.Store) (bool, error) {
		target := identity
		if target == "" {
			current, ok := st.CurrentIdentity()
			if !ok {
				return false, ErrNoActiveSession
			}
			target = current
		}

		rec, ok := st.Get(target)
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownIdentity, target)
		}
		refreshToken = rec.RefreshToken

		st.Delete(target)
		return true, nil
	})
	if err != nil {
		return err
	}

	// Revocation happens outside the lock: it is a network call and its
	// failure must not resurrect the local record.
	if err := m.auth.Revoke(ctx, refreshToken); err != nil {
		slog.WarnContext(ctx, "server-side token revocation failed", "error", err)
	}
	return nil
}

// Identity pairs a stored identity with whether it is current.
type Identity struct {
	Name    string
	Current bool
}

// ListIdentities returns all stored identities in insertion order.
func (m *Manager) ListIdentities(ctx context.Context) ([]Identity, error) {
	var out []Identity
	err := m.store.Update(ctx, func(st *credstore.Store) (bool, error) {
		current, _ := st.CurrentIdentity()
		for _, id := range st.Identities() {
			out = append(out, Identity{Name: id, Current: id == current})
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordTenantSwitch marks the current identity as wanting a different
// tenant. No network call is made and the active token is untouched: the
// client cannot mint a token for another tenant, so the switch takes
// effect at the next login.
func (m *Manager) RecordTenantSwitch(ctx context.Context, tenantID int64) error {
	return m.store.Update(ctx, func(st *credstore.Store) (bool, error) {
		_, rec, err := currentRecord(st)
		if err != nil {
			return false, err
		}
		rec.PendingTenantSwitch = &tenantID
		return true, nil
	})
}

// TenantInfo is the display-only projection of a record's cached claims.
// It is never consulted to grant or deny an operation; authorization is
// enforced by the resource service.
type TenantInfo struct {
	Identity            string
	TenantID            *int64
	Role                *claims.Role
	ExpiresAt           time.Time
	PendingTenantSwitch *int64
}

// Context returns the TenantInfo for the current identity.
func (m *Manager) Context(ctx context.Context) (*TenantInfo, error) {
	var info *TenantInfo
	err := m.store.Update(ctx, func(st *credstore.Store) (bool, error) {
		current, rec, err := currentRecord(st)
		if err != nil {
			return false, err
		}
		info = projectRecord(current, rec)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// stale reports whether the record's access token is inside the skew
// margin of its expiry. The boundary is inclusive: now == expires_at is
// expired.
func (m *Manager) stale(rec *credstore.TokenRecord) bool {
	return !m.now().Before(rec.ExpiresAt.Add(-m.skew))
}

// refreshRecord performs the network refresh and builds the successor
// record. Credential rejection becomes ErrSessionExpired; transient
// network failures propagate as-is so callers can retry later.
func (m *Manager) refreshRecord(ctx context.Context, rec *credstore.TokenRecord) (*credstore.TokenRecord, error) {
	resp, err := m.auth.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		if errors.Is(err, authclient.ErrNetworkUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	return m.recordFromResponse(resp, rec), nil
}

// recordFromResponse maps a token response onto a TokenRecord. prev is
// the record being refreshed, nil on login. The refresh token is only
// replaced when the server rotated it, and cached claims survive a
// response that omits them.
func (m *Manager) recordFromResponse(resp *authclient.TokenResponse, prev *credstore.TokenRecord) *credstore.TokenRecord {
	rec := &credstore.TokenRecord{
		AccessToken:   resp.AccessToken,
		RefreshToken:  resp.RefreshToken,
		ExpiresAt:     m.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		TenantID:      resp.TenantID,
		SchemaVersion: credstore.CurrentSchemaVersion,
	}

	if role, err := claims.ParseRole(resp.Role); err == nil {
		rec.Role = &role
	}

	// Fall back to the token's own claims, then to the previous record.
	if rec.TenantID == nil || rec.Role == nil {
		if c, err := claims.ParseToken(resp.AccessToken); err == nil {
			if rec.TenantID == nil {
				rec.TenantID = c.TenantID
			}
			if rec.Role == nil {
				rec.Role = c.Role
			}
		}
	}

	if prev != nil {
		if rec.RefreshToken == "" {
			rec.RefreshToken = prev.RefreshToken
		}
		if rec.TenantID == nil {
			rec.TenantID = prev.TenantID
		}
		if rec.Role == nil {
			rec.Role = prev.Role
		}
		// A refresh never resolves a pending tenant switch, only a real
		// login does.
		rec.PendingTenantSwitch = prev.PendingTenantSwitch
	}

	return rec
}

// currentRecord resolves the current identity and its record inside a
// critical section.
func currentRecord(st *credstore.Store) (string, *credstore.TokenRecord, error) {
	current, ok := st.CurrentIdentity()
	if !ok {
		return "", nil, ErrNoActiveSession
	}
	rec, ok := st.Get(current)
	if !ok {
		return "", nil, ErrNoActiveSession
	}
	return current, rec, nil
}

// projectRecord builds the display projection for an identity.
func projectRecord(identity string, rec *credstore.TokenRecord) *TenantInfo {
	clone := rec.Clone()
	return &TenantInfo{
		Identity:            identity,
		TenantID:            clone.TenantID,
		Role:                clone.Role,
		ExpiresAt:           clone.ExpiresAt,
		PendingTenantSwitch: clone.PendingTenantSwitch,
	}
}
