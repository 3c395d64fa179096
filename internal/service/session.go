package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/gallery/internal/auth"
	"github.com/utafrali/gallery/internal/domain"
	"github.com/utafrali/gallery/internal/repository"
	apperrors "github.com/utafrali/gallery/pkg/errors"
)

// DefaultMaxLoginAttempts is the failure limit used when none is configured.
const DefaultMaxLoginAttempts = 5

// RegisterInput holds the data required to create an account.
type RegisterInput struct {
	Email    string
	Phone    string
	Password string
}

// LoginInput holds the data required to sign in.
type LoginInput struct {
	Email    string
	Password string
}

// RefreshResult is the outcome of a successful refresh. When Rotated is false
// the access token was still valid and Session is nil.
type RefreshResult struct {
	Rotated bool
	Session *domain.Session
}

// SessionService implements registration, login, token rotation and the
// password operations.
type SessionService struct {
	users       repository.UserRepository
	codec       TokenCodec
	hasher      auth.PasswordHasher
	events      EventPublisher
	throttle    LoginThrottle
	maxAttempts int
	logger      *slog.Logger
}

// SessionOption configures optional collaborators of a SessionService.
type SessionOption func(*SessionService)

// WithLoginThrottle enables failed-login throttling with the given limit.
func WithLoginThrottle(t LoginThrottle, maxAttempts int) SessionOption {
	return func(s *SessionService) {
		if t != nil {
			s.throttle = t
		}
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
	}
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	users repository.UserRepository,
	codec TokenCodec,
	hasher auth.PasswordHasher,
	events EventPublisher,
	logger *slog.Logger,
	opts ...SessionOption,
) *SessionService {
	s := &SessionService{
		users:       users,
		codec:       codec,
		hasher:      hasher,
		events:      events,
		throttle:    NoopThrottle{},
		maxAttempts: DefaultMaxLoginAttempts,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user and signs them in.
func (s *SessionService) Register(ctx context.Context, input RegisterInput) (*domain.Session, error) {
	email := normalizeEmail(input.Email)

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, domain.ErrEmailExists()
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Phone:        input.Phone,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if apperrors.HasCode(err, domain.CodeEmailExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	session, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.events.UserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return session, nil
}

// Login verifies credentials and issues a fresh token pair, replacing the
// user's previous refresh token.
func (s *SessionService) Login(ctx context.Context, input LoginInput) (*domain.Session, error) {
	email := normalizeEmail(input.Email)

	failures, err := s.throttle.Failures(ctx, email)
	if err != nil {
		s.logger.WarnContext(ctx, "login throttle unavailable", slog.String("error", err.Error()))
	} else if failures >= s.maxAttempts {
		AuthLogins.WithLabelValues("throttled").Inc()
		return nil, domain.ErrTooManyAttempts()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			AuthLogins.WithLabelValues("unknown_user").Inc()
			return nil, domain.ErrUserNotFound()
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	ok, err := s.hasher.Compare(user.PasswordHash, input.Password)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		if _, err := s.throttle.RecordFailure(ctx, email); err != nil {
			s.logger.WarnContext(ctx, "failed to record login failure", slog.String("error", err.Error()))
		}
		AuthLogins.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials()
	}

	session, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.throttle.Reset(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "failed to reset login failures", slog.String("error", err.Error()))
	}

	AuthLogins.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return session, nil
}

// Refresh rotates the session when the access token has lapsed. A still-valid
// access token short-circuits without touching the store.
func (s *SessionService) Refresh(ctx context.Context, accessToken, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		AuthRefreshes.WithLabelValues("missing").Inc()
		return nil, domain.ErrTokenMissing()
	}

	if accessToken != "" {
		switch s.codec.VerifyAccessToken(accessToken).Status {
		case auth.StatusValid:
			AuthRefreshes.WithLabelValues("still_valid").Inc()
			return &RefreshResult{Rotated: false}, nil
		case auth.StatusMalformed:
			AuthRefreshes.WithLabelValues("invalid").Inc()
			return nil, domain.ErrTokenInvalid()
		}
	}

	v := s.codec.VerifyRefreshToken(refreshToken)
	if !v.Valid() {
		AuthRefreshes.WithLabelValues("invalid").Inc()
		return nil, domain.ErrRefreshTokenInvalid()
	}

	user, err := s.users.GetByID(ctx, v.Identity.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			AuthRefreshes.WithLabelValues("reused").Inc()
			return nil, domain.ErrRefreshTokenReused()
		}
		s.logger.ErrorContext(ctx, "refresh: load user failed", slog.String("error", err.Error()))
		AuthRefreshes.WithLabelValues("invalid").Inc()
		return nil, domain.ErrRefreshTokenInvalid()
	}

	if !user.HasRefreshToken(refreshToken) {
		s.logger.WarnContext(ctx, "refresh token reuse detected", slog.String("user_id", user.ID))
		AuthRefreshes.WithLabelValues("reused").Inc()
		return nil, domain.ErrRefreshTokenReused()
	}

	pair, err := s.codec.CreatePair(user.Identity())
	if err != nil {
		s.logger.ErrorContext(ctx, "refresh: mint tokens failed", slog.String("error", err.Error()))
		AuthRefreshes.WithLabelValues("invalid").Inc()
		return nil, domain.ErrRefreshTokenInvalid()
	}

	swapped, err := s.users.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		s.logger.ErrorContext(ctx, "refresh: persist token failed", slog.String("error", err.Error()))
		AuthRefreshes.WithLabelValues("invalid").Inc()
		return nil, domain.ErrRefreshTokenInvalid()
	}
	if !swapped {
		s.logger.WarnContext(ctx, "refresh token rotated concurrently", slog.String("user_id", user.ID))
		AuthRefreshes.WithLabelValues("reused").Inc()
		return nil, domain.ErrRefreshTokenReused()
	}

	AuthRefreshes.WithLabelValues("rotated").Inc()
	s.logger.InfoContext(ctx, "session rotated", slog.String("user_id", user.ID))
	return &RefreshResult{
		Rotated: true,
		Session: &domain.Session{User: user.Identity(), Tokens: pair},
	}, nil
}

// VerifyCurrentPassword checks password against the stored hash.
func (s *SessionService) VerifyCurrentPassword(ctx context.Context, userID, password string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return domain.ErrWrongPassword()
	}
	return nil
}

// ResetPassword replaces the user's password. The new password must differ
// from the current one.
func (s *SessionService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	same, err := s.hasher.Compare(user.PasswordHash, newPassword)
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	if same {
		return domain.ErrSetDifferentPassword()
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ErrUserNotFound()
		}
		return fmt.Errorf("update user: %w", err)
	}

	if err := s.events.PasswordChanged(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish password changed event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", user.ID))
	return nil
}

// Logout forgets the user's refresh token. Signing out twice is not an error.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUserIDNotProvided()
	}
	if err := s.users.SetRefreshToken(ctx, userID, nil); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("clear refresh token: %w", err)
	}
	s.logger.InfoContext(ctx, "user logged out", slog.String("user_id", userID))
	return nil
}

// Details returns the public profile of the user.
func (s *SessionService) Details(ctx context.Context, userID string) (*domain.Profile, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := user.Profile()
	return &p, nil
}

func (s *SessionService) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrUserIDNotProvided()
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrUserNotFound()
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// issue mints a token pair and stores the refresh token as the user's
// current one.
func (s *SessionService) issue(ctx context.Context, user *domain.User) (*domain.Session, error) {
	pair, err := s.codec.CreatePair(user.Identity())
	if err != nil {
		return nil, fmt.Errorf("create tokens: %w", err)
	}

	token := pair.RefreshToken
	if err := s.users.SetRefreshToken(ctx, user.ID, &token); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	user.RefreshToken = &token

	return &domain.Session{User: user.Identity(), Tokens: pair}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
