package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/skybooking/internal/auth"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/logging"
	"github.com/Domenick1991/skybooking/internal/policy"
	"github.com/Domenick1991/skybooking/internal/repository"
)

type SessionUseCase interface {
	Authenticate(ctx context.Context, email, password string) (*Session, error)
	Logout(ctx context.Context, actor policy.Actor) error
	ResolveToken(ctx context.Context, raw string) (*domain.User, error)
}

// Tokens issues and verifies session tokens.
type Tokens interface {
	Issue(userID int64, version int) (string, time.Time, error)
	Parse(raw string) (auth.Claims, error)
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

type SessionService struct {
	users  repository.UserRepository
	tokens Tokens
	log    *slog.Logger
}

func NewSessionService(users repository.UserRepository, tokens Tokens, log *slog.Logger) *SessionService {
	if log == nil {
		log = slog.Default()
	}
	return &SessionService{users: users, tokens: tokens, log: log}
}

// Authenticate checks credentials and issues a token bound to the user's
// current token version. Unknown emails and wrong passwords are
// indistinguishable.
func (s *SessionService) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(u.PasswordDigest, password) {
		logging.FromContext(ctx, s.log).InfoContext(ctx, "rejected login", slog.Int64("user_id", u.ID))
		return nil, domain.ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(u.ID, u.TokenVersion)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: *u}, nil
}

// Logout rotates the token version, revoking every outstanding token of the
// actor.
func (s *SessionService) Logout(ctx context.Context, actor policy.Actor) error {
	id, ok := policy.UserID(actor)
	if !ok {
		return domain.ErrUnauthorized
	}
	if _, err := s.users.RotateTokenVersion(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnauthorized
		}
		return err
	}
	return nil
}

// ResolveToken maps a bearer token to its user. Any failure is
// domain.ErrUnauthorized except repository errors.
func (s *SessionService) ResolveToken(ctx context.Context, raw string) (*domain.User, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if u.TokenVersion != claims.Version {
		return nil, domain.ErrUnauthorized
	}
	return u, nil
}

var _ SessionUseCase = (*SessionService)(nil)
