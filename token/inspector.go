package token

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	apperrors "github.com/expensahq/expensa-go/internal/errors"
	"github.com/expensahq/expensa-go/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is the subset of access-token claims the client relies on.
// The identity service signs the token; the client only reads it, so the
// payload is decoded without signature verification.
type Claims struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// User builds the identity record carried by the claims.
func (c *Claims) User() users.User {
	return users.User{
		ID:        c.UserID,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

// Decode extracts the claims from a bearer token without verifying its
// signature. Verification is the identity service's responsibility.
func Decode(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrInvalidToken
	}

	unverifiedToken, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, err.Error())
	}

	claims, ok := unverifiedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, "error extracting claims")
	}

	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	decoded := &Claims{
		UserID:    stringClaim(claims, "id"),
		Email:     stringClaim(claims, "email"),
		FirstName: stringClaim(claims, "firstName"),
		LastName:  stringClaim(claims, "lastName"),
	}
	if iat != 0 {
		decoded.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp != 0 {
		decoded.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return decoded, nil
}

// stringClaim tolerates the identity service encoding ids as JSON numbers.
func stringClaim(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// IsExpired reports whether the token's expiry claim has passed. A malformed
// or undecodable token, or one without an expiry claim, counts as expired.
func IsExpired(rawToken string) bool {
	claims, err := Decode(rawToken)
	if err != nil {
		return true
	}
	if claims.ExpiresAt.IsZero() {
		return true
	}
	return !NowTimeFunc().Before(claims.ExpiresAt)
}
