package auth

import "context"

// TokenProvider supplies bearer tokens for calls to the core platform.
// skipCache forces a fresh token even when a cached one has not expired;
// callers use it right after the identity mapping changes, since cached
// tokens carry stale claims until reissued.
type TokenProvider interface {
	GetToken(ctx context.Context, skipCache bool) (string, error)
}

// StaticTokenProvider returns a fixed token. Used for service credentials
// and in tests.
type StaticTokenProvider string

// GetToken implements TokenProvider.
func (p StaticTokenProvider) GetToken(ctx context.Context, skipCache bool) (string, error) {
	return string(p), nil
}
