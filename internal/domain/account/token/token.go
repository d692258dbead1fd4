package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type AccessClaims struct {
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	jwt.RegisteredClaims
}

// JWTUtil mints and verifies the two token classes. Verification is purely
// cryptographic (signature, expiry, issuer/audience) — the stored-state
// check for refresh tokens lives in the account service, not here.
type JWTUtil interface {
	GenerateAccessToken(accountID uuid.UUID) (token string, exp time.Time, err error)

	GenerateRefreshToken(accountID uuid.UUID) (token string, exp time.Time, err error)

	ValidateAccessToken(raw string) (AccessClaims, error)

	ValidateRefreshToken(raw string) (RefreshClaims, error)
}
