package session

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource adapts the manager to oauth2.TokenSource so the resource
// client can inject bearer tokens through oauth2.Transport.
//
// oauth2.TokenSource.Token has no context parameter (legacy interface),
// so the context is captured at construction time per oauth2's
// documented pattern.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, manager: m}
}

type managerTokenSource struct {
	ctx     context.Context
	manager *Manager
}

// Compile-time check to ensure managerTokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*managerTokenSource)(nil)

// Token returns a valid bearer token, refreshing transparently.
// Expiry is left zero: staleness is the manager's concern, oauth2 only
// carries the token to the wire.
func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.manager.ActiveToken(s.ctx, true)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
