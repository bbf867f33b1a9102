package auth

import (
	"context"
	"errors"
)

// ErrScopeDenied is returned when a session lacks the scope an operation needs.
var ErrScopeDenied = errors.New("session lacks required scope")

type sessionKey struct{}

// WithClaims attaches a validated session to ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, sessionKey{}, claims)
}

// FromContext returns the session attached by WithClaims.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(sessionKey{}).(*Claims)
	return claims, ok && claims != nil
}

// Participant returns the username of the session on ctx once it holds scope.
func Participant(ctx context.Context, scope string) (string, error) {
	claims, ok := FromContext(ctx)
	if !ok {
		return "", ErrMissingToken
	}
	if !claims.HasScope(scope) {
		return "", ErrScopeDenied
	}
	return claims.Subject, nil
}
