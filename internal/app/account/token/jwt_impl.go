package token

import (
	"errors"
	"time"

	customErrors "github.com/clipstream/account-service/internal/domain/account/errors"
	"github.com/clipstream/account-service/internal/domain/account/token"
	"github.com/clipstream/account-service/internal/infra/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JwtUtilImpl signs both token classes with HS256, each class under its own
// secret. Secrets are injected at construction from config, never read from
// the environment at call sites.
type JwtUtilImpl struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      string
}

func NewJWTUtil(cfg *config.Config) (*JwtUtilImpl, error) {
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, customErrors.NewInvalidArgument("token secrets are not configured")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, customErrors.NewInvalidArgument("access and refresh secrets must differ")
	}

	return &JwtUtilImpl{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
	}, nil
}

func (j *JwtUtilImpl) GenerateAccessToken(accountID uuid.UUID) (string, time.Time, error) {
	claims := token.AccessClaims{
		RegisteredClaims: j.registeredClaims(accountID, j.accessTTL),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.accessSecret)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "sign access token")
	}

	return signed, claims.ExpiresAt.Time, nil
}

func (j *JwtUtilImpl) GenerateRefreshToken(accountID uuid.UUID) (string, time.Time, error) {
	claims := token.RefreshClaims{
		RegisteredClaims: j.registeredClaims(accountID, j.refreshTTL),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.refreshSecret)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "sign refresh token")
	}

	return signed, claims.ExpiresAt.Time, nil
}

func (j *JwtUtilImpl) ValidateAccessToken(raw string) (token.AccessClaims, error) {
	parsed, err := j.parse(raw, &token.AccessClaims{}, j.accessSecret)
	if err != nil {
		return token.AccessClaims{}, err
	}

	claims, ok := parsed.Claims.(*token.AccessClaims)
	if !ok {
		return token.AccessClaims{}, customErrors.WrapInternal(
			errors.New("claims not AccessClaims"), "ValidateAccessToken",
		)
	}

	return *claims, nil
}

func (j *JwtUtilImpl) ValidateRefreshToken(raw string) (token.RefreshClaims, error) {
	parsed, err := j.parse(raw, &token.RefreshClaims{}, j.refreshSecret)
	if err != nil {
		return token.RefreshClaims{}, err
	}

	claims, ok := parsed.Claims.(*token.RefreshClaims)
	if !ok {
		return token.RefreshClaims{}, customErrors.WrapInternal(
			errors.New("claims not RefreshClaims"), "ValidateRefreshToken",
		)
	}

	return *claims, nil
}

func (j *JwtUtilImpl) registeredClaims(accountID uuid.UUID, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   accountID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    j.issuer,
		Audience:  jwt.ClaimStrings{j.audience},
	}
}

func (j *JwtUtilImpl) parse(raw string, claims jwt.Claims, secret []byte) (*jwt.Token, error) {
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, customErrors.ErrInvalidToken
		}
		return secret, nil
	},
		jwt.WithIssuer(j.issuer),
		jwt.WithAudience(j.audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		return nil, customErrors.ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, customErrors.ErrInvalidToken
	}

	return parsed, nil
}
