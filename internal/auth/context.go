package auth

import (
	"context"
	"errors"
)

// ErrNoIdentity means the request never passed RequireAccessToken.
var ErrNoIdentity = errors.New("no authenticated identity in context")

// Identity is the verified caller: the line owner, a desk operator, an admin
// or the telephony bridge.
type Identity struct {
	UserID string
	Role   string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, userID, role string) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{UserID: userID, Role: role})
}

// IdentityFrom returns the caller stored by WithIdentity.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != "" && id.Role != ""
}

func UserID(ctx context.Context) (string, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return "", ErrNoIdentity
	}
	return id.UserID, nil
}

func Role(ctx context.Context) (string, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return "", ErrNoIdentity
	}
	return id.Role, nil
}
