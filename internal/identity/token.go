package identity

import (
	"context"
	"fmt"

	"clubattend/internal/auth"
)

// TokenResolver verifies HS256 identity tokens locally.
type TokenResolver struct {
	key        string
	issuer     string
	membership Membership
}

// NewTokenResolver creates a resolver for tokens signed with key by issuer.
func NewTokenResolver(key, issuer string, m Membership) *TokenResolver {
	return &TokenResolver{key: key, issuer: issuer, membership: m}
}

func (r *TokenResolver) Resolve(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	claims, err := auth.Parse(token, r.key, r.issuer)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return r.membership.identity(claims.Subject, claims.Name, claims.Email, claims.Picture), nil
}
