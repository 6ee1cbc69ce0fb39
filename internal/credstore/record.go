package credstore

import (
	"time"

	"github.com/florianilch/fincli/internal/claims"
)

// CurrentSchemaVersion is stamped on every record written by this
// release. Records carrying an older (or missing) version are upgraded
// on load, see migrate.go.
const CurrentSchemaVersion = 2

// TokenRecord is the stored access/refresh token pair plus cached claims
// for one identity. Records are created by login, mutated in place by
// refresh and tenant-switch requests, and destroyed by logout.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`

	// Claims cached at issuance time for display. The server is the only
	// party that can mint them; they are never derived locally.
	TenantID *int64       `json:"tenant_id"`
	Role     *claims.Role `json:"role"`

	// PendingTenantSwitch records a requested tenant change that only a
	// subsequent login can enforce. It never alters the token itself.
	PendingTenantSwitch *int64 `json:"pending_tenant_switch"`

	SchemaVersion int `json:"schema_version"`
}

// Clone returns a deep copy so callers outside the store's critical
// section never alias a stored record.
func (r *TokenRecord) Clone() *TokenRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.TenantID = cloneInt64(r.TenantID)
	c.PendingTenantSwitch = cloneInt64(r.PendingTenantSwitch)
	if r.Role != nil {
		role := *r.Role
		c.Role = &role
	}
	return &c
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
