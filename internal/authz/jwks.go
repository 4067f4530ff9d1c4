package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

// JWKSValidator checks session tokens against the auth service's published
// key set, refreshing it in the background.
type JWKSValidator struct {
	jwks   *keyfunc.JWKS
	issuer string
}

func NewJWKSValidator(ctx context.Context, jwksURL, issuer string) (*JWKSValidator, error) {
	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Minute * 15,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}
	jwks, err := keyfunc.Get(jwksURL, options)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	return &JWKSValidator{jwks: jwks, issuer: issuer}, nil
}

var _ TokenValidator = (*JWKSValidator)(nil)

func (j *JWKSValidator) Validate(tokStr string) (Identity, error) {
	token, err := jwt.Parse(tokStr, j.jwks.Keyfunc)
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	if iss, _ := claims["iss"].(string); iss != "" && j.issuer != "" && iss != j.issuer {
		return Identity{}, fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	}
	sub, _ := claims["sub"].(string)
	sid, _ := claims["sid"].(string)
	return identityFromClaims(sub, sid)
}
