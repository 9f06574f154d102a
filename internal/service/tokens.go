package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"workout/backend/internal/clock"
	apperrors "workout/backend/internal/errors"
	"workout/backend/internal/model"
)

const tokenIssuer = "workout-backend"

// athleteClaims is the JWT payload. The subject is the athlete id.
type athleteClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 athlete tokens against its clock.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	parser *jwt.Parser
}

func NewTokenIssuer(secret string, ttl time.Duration, clk clock.Clock) *TokenIssuer {
	if clk == nil {
		clk = clock.System{}
	}
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clk,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clk.Now),
		),
	}
}

// Issue returns a signed token for athlete and the instant it expires.
func (t *TokenIssuer) Issue(athlete model.User) (string, time.Time, error) {
	now := t.clock.Now().UTC()
	expiresAt := now.Add(t.ttl)
	claims := athleteClaims{
		Name: athlete.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   athlete.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken resolves a bearer token to the athlete id it was issued for.
func (t *TokenIssuer) ParseToken(raw string) (string, *apperrors.APIError) {
	var claims athleteClaims
	_, err := t.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", apperrors.Unauthorized("token expired")
	case err != nil:
		return "", apperrors.Unauthorized("invalid token")
	case claims.Subject == "":
		return "", apperrors.Unauthorized("invalid token subject")
	}
	return claims.Subject, nil
}
