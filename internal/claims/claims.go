// Package claims decodes the tenant and role claims the authentication
// service embeds in access tokens.
//
// Decoding is deliberately unverified: the authentication service is the
// trust boundary and signature validation happens server-side. Claims are
// cached for display only and never consulted to grant or deny anything.
package claims

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is a permission level minted into the token by the authentication
// service and enforced by the resource service.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// ParseRole validates a role string from a token or API response.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Claims holds the token claims this client cares about. Unknown claims
// in the token are ignored for forward compatibility.
type Claims struct {
	TenantID  *int64
	Role      *Role
	ExpiresAt time.Time // zero if the token carries no exp claim
}

// ParseToken extracts claims from an access token without verifying its
// signature. Returns an error only when the payload cannot be decoded at
// all; individual missing claims are left nil.
func ParseToken(raw string) (*Claims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("decoding token claims: %w", err)
	}

	payload, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	c := &Claims{}

	if v, ok := payload["tenant_id"]; ok {
		if n, ok := asInt64(v); ok {
			c.TenantID = &n
		}
	}

	if v, ok := payload["role"].(string); ok {
		if role, err := ParseRole(v); err == nil {
			c.Role = &role
		}
	}

	if exp, err := payload.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}

	return c, nil
}

// asInt64 normalizes the numeric representations encoding/json may
// produce for an integer claim.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
