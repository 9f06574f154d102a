package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workout/backend/internal/model"
	"workout/backend/internal/repository"
	"workout/backend/internal/service"
)

func newAccounts(t *testing.T) (*service.AccountService, *service.TokenIssuer, *env) {
	t.Helper()
	e := newEnv(t)
	tokens := service.NewTokenIssuer("test-secret", time.Hour, e.clock)
	return service.NewAccountService(repository.NewUserRepository(e.database), tokens, e.clock), tokens, e
}

func TestAccountService_RegisterAndLogin(t *testing.T) {
	accounts, tokens, e := newAccounts(t)
	ctx := context.Background()

	signedIn, apiErr := accounts.Register(ctx, service.Registration{
		Email:    "  Coach@Example.com ",
		Password: "squat-day",
	})
	require.Nil(t, apiErr)
	assert.Equal(t, "coach@example.com", signedIn.Athlete.Email)
	assert.Equal(t, "coach", signedIn.Athlete.DisplayName)
	assert.Empty(t, signedIn.Athlete.PasswordHash)
	assert.Equal(t, t0.Add(time.Hour), signedIn.ExpiresAt)

	athleteID, apiErr := tokens.ParseToken(signedIn.Token)
	require.Nil(t, apiErr)
	assert.Equal(t, signedIn.Athlete.ID, athleteID)

	e.clock.Advance(time.Minute)
	again, apiErr := accounts.Login(ctx, "COACH@example.com", "squat-day")
	require.Nil(t, apiErr)
	assert.Equal(t, signedIn.Athlete.ID, again.Athlete.ID)

	_, apiErr = accounts.Login(ctx, "coach@example.com", "bench-day")
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, apiErr = accounts.Register(ctx, service.Registration{Email: "coach@example.com", Password: "another"})
	require.NotNil(t, apiErr)
	assert.Equal(t, "email_exists", apiErr.Code)

	profile, apiErr := accounts.Profile(ctx, signedIn.Athlete.ID)
	require.Nil(t, apiErr)
	assert.Equal(t, "coach@example.com", profile.Email)
	assert.Empty(t, profile.PasswordHash)

	_, apiErr = accounts.Profile(ctx, "ghost")
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestAccountService_RegisterValidates(t *testing.T) {
	accounts, _, _ := newAccounts(t)
	ctx := context.Background()

	cases := map[string]service.Registration{
		"missing email":  {Password: "123456"},
		"bad email":      {Email: "not-an-email", Password: "123456"},
		"named address":  {Email: "Ana <ana@example.com>", Password: "123456"},
		"short password": {Email: "ana@example.com", Password: "12345"},
	}
	for name, reg := range cases {
		t.Run(name, func(t *testing.T) {
			_, apiErr := accounts.Register(ctx, reg)
			require.NotNil(t, apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		})
	}
}

func TestTokenIssuer_ExpiresWithClock(t *testing.T) {
	_, tokens, e := newAccounts(t)

	token, expiresAt, err := tokens.Issue(model.User{ID: ana, DisplayName: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), expiresAt)

	e.clock.Advance(59 * time.Minute)
	_, apiErr := tokens.ParseToken(token)
	require.Nil(t, apiErr)

	e.clock.Advance(2 * time.Minute)
	_, apiErr = tokens.ParseToken(token)
	require.NotNil(t, apiErr)
	assert.Equal(t, "token expired", apiErr.Message)
}

func TestTokenIssuer_RejectsForeignTokens(t *testing.T) {
	_, tokens, _ := newAccounts(t)

	sign := func(method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
		t.Helper()
		signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return signed
	}
	valid := jwt.RegisteredClaims{
		Issuer:    "workout-backend",
		Subject:   ana,
		ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour)),
	}
	otherIssuer := valid
	otherIssuer.Issuer = "someone-else"
	noExpiry := valid
	noExpiry.ExpiresAt = nil
	noSubject := valid
	noSubject.Subject = ""

	cases := map[string]string{
		"wrong secret": sign(jwt.SigningMethodHS256, []byte("other-secret"), valid),
		"wrong issuer": sign(jwt.SigningMethodHS256, []byte("test-secret"), otherIssuer),
		"no expiry":    sign(jwt.SigningMethodHS256, []byte("test-secret"), noExpiry),
		"no subject":   sign(jwt.SigningMethodHS256, []byte("test-secret"), noSubject),
		"wrong method": sign(jwt.SigningMethodHS512, []byte("test-secret"), valid),
		"not a token":  "garbage",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, apiErr := tokens.ParseToken(token)
			require.NotNil(t, apiErr)
			assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		})
	}

	athleteID, apiErr := tokens.ParseToken(sign(jwt.SigningMethodHS256, []byte("test-secret"), valid))
	require.Nil(t, apiErr)
	assert.Equal(t, ana, athleteID)
}
