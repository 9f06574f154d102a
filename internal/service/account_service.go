package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"workout/backend/internal/clock"
	apperrors "workout/backend/internal/errors"
	"workout/backend/internal/model"
	"workout/backend/internal/repository"
)

const minPasswordLength = 6

// AccountService registers athletes and signs them in. The athlete id in the
// issued token owns the sessions that athlete begins.
type AccountService struct {
	users  *repository.UserRepository
	tokens *TokenIssuer
	clock  clock.Clock
}

func NewAccountService(users *repository.UserRepository, tokens *TokenIssuer, clk clock.Clock) *AccountService {
	if clk == nil {
		clk = clock.System{}
	}
	return &AccountService{users: users, tokens: tokens, clock: clk}
}

type Registration struct {
	Email       string
	Password    string
	DisplayName string
}

// SignedIn is returned by Register and Login.
type SignedIn struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Athlete   model.User `json:"athlete"`
}

func (s *AccountService) Register(ctx context.Context, reg Registration) (*SignedIn, *apperrors.APIError) {
	email, apiErr := normalizeEmail(reg.Email)
	if apiErr != nil {
		return nil, apiErr
	}
	if len(reg.Password) < minPasswordLength {
		return nil, apperrors.BadRequest("invalid_password", "password must be at least 6 characters")
	}

	name := strings.TrimSpace(reg.DisplayName)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("failed to secure password")
	}

	now := s.clock.Now().UTC()
	athlete := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// the unique email index is the only duplicate check
	if err := s.users.Create(ctx, &athlete); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperrors.Conflict("email_exists", "email already registered", nil)
		}
		return nil, apperrors.Internal("failed to create athlete")
	}
	return s.signIn(athlete)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*SignedIn, *apperrors.APIError) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || password == "" {
		return nil, apperrors.BadRequest("invalid_credentials", "email and password are required")
	}

	athlete, err := s.users.GetByEmail(ctx, normalized)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Unauthorized("invalid email or password")
	case err != nil:
		return nil, apperrors.Internal("failed to query athlete")
	}
	if bcrypt.CompareHashAndPassword([]byte(athlete.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	return s.signIn(*athlete)
}

// Profile loads the athlete behind a verified token.
func (s *AccountService) Profile(ctx context.Context, athleteID string) (*model.User, *apperrors.APIError) {
	athlete, err := s.users.GetByID(ctx, athleteID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NotFound("athlete_not_found", "athlete no longer exists")
	case err != nil:
		return nil, apperrors.Internal("failed to query athlete")
	}
	athlete.PasswordHash = ""
	return athlete, nil
}

func (s *AccountService) signIn(athlete model.User) (*SignedIn, *apperrors.APIError) {
	token, expiresAt, err := s.tokens.Issue(athlete)
	if err != nil {
		return nil, apperrors.Internal("failed to sign token")
	}
	athlete.PasswordHash = ""
	return &SignedIn{
		Token:     token,
		ExpiresAt: expiresAt,
		Athlete:   athlete,
	}, nil
}

func normalizeEmail(raw string) (string, *apperrors.APIError) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperrors.BadRequest("invalid_email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.BadRequest("invalid_email", "email is not a valid address")
	}
	return email, nil
}
