package service

import (
	"context"
	"fmt"

	"github.com/pots-hq/pots/internal/auth"
)

// sessionTokenProvider serves the bearer token most recently presented for a
// session. There is no server-side token cache: the UI owns token refresh
// and replaces the session token on every request, so skipCache has nothing
// extra to invalidate here.
type sessionTokenProvider struct {
	session *Session
}

// NewSessionTokenProvider adapts a session's stored bearer token to the
// TokenProvider interface.
func NewSessionTokenProvider(session *Session) auth.TokenProvider {
	return sessionTokenProvider{session: session}
}

// GetToken implements auth.TokenProvider.
func (p sessionTokenProvider) GetToken(ctx context.Context, skipCache bool) (string, error) {
	token := p.session.Token()
	if token == "" {
		return "", fmt.Errorf("session %s has no bearer token", p.session.ID)
	}
	return token, nil
}
