// Package authz validates the credentials this service accepts: session
// bearer tokens minted by the auth service (HS256 shared secret or JWKS)
// and the operator API key for the admin surface.
package authz

import (
	"context"
	"errors"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"

	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is what a verified session token asserts: which user, on which
// session. Both claims are required; tokens without a session binding are
// useless to this service.
type Identity struct {
	UserID    domain.UserID
	SessionID domain.SessionID
}

// TokenValidator turns a raw bearer token into an Identity.
type TokenValidator interface {
	Validate(token string) (Identity, error)
}

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok
}

// identityFromClaims builds the Identity from the sub (user) and sid
// (session) claims.
func identityFromClaims(sub, sid string) (Identity, error) {
	if sub == "" || sid == "" {
		return Identity{}, ErrInvalidToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	sessionID, err := uuid.Parse(sid)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: userID, SessionID: sessionID}, nil
}
