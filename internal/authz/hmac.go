package authz

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// HMACValidator checks HS256 session tokens against the secret shared with
// the auth service.
type HMACValidator struct {
	secret []byte
	issuer string
}

func NewHMACValidator(secret, issuer string) *HMACValidator {
	return &HMACValidator{
		secret: []byte(secret),
		issuer: issuer,
	}
}

var _ TokenValidator = (*HMACValidator)(nil)

func (h *HMACValidator) Validate(tokStr string) (Identity, error) {
	token, err := jwt.Parse(tokStr, func(token *jwt.Token) (interface{}, error) {
		// Ensure HS* (HMAC) only
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %T", token.Method)
		}
		return h.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	if iss, _ := claims["iss"].(string); iss != "" && h.issuer != "" && iss != h.issuer {
		return Identity{}, fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	}
	sub, _ := claims["sub"].(string)
	sid, _ := claims["sid"].(string)
	return identityFromClaims(sub, sid)
}
