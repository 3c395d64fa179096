package service

import (
	"context"

	"github.com/utafrali/gallery/internal/auth"
	"github.com/utafrali/gallery/internal/domain"
)

// TokenCodec mints and verifies session tokens. *auth.Codec implements it.
type TokenCodec interface {
	CreatePair(id domain.Identity) (domain.TokenPair, error)
	VerifyAccessToken(token string) auth.Verification
	VerifyRefreshToken(token string) auth.Verification
}

// EventPublisher announces domain events. Failures are logged by callers and
// never fail the operation that produced the event.
type EventPublisher interface {
	UserRegistered(ctx context.Context, user *domain.User) error
	PasswordChanged(ctx context.Context, user *domain.User) error
	ImageUploaded(ctx context.Context, img *domain.Image) error
	ImageDeleted(ctx context.Context, img *domain.Image) error
}

// LoginThrottle counts failed logins per email.
type LoginThrottle interface {
	Failures(ctx context.Context, email string) (int, error)
	RecordFailure(ctx context.Context, email string) (int, error)
	Reset(ctx context.Context, email string) error
}

// NoopThrottle never throttles. It is used when Redis is disabled.
type NoopThrottle struct{}

func (NoopThrottle) Failures(context.Context, string) (int, error)      { return 0, nil }
func (NoopThrottle) RecordFailure(context.Context, string) (int, error) { return 0, nil }
func (NoopThrottle) Reset(context.Context, string) error                { return nil }
