package repository

import (
	"context"

	"github.com/utafrali/gallery/internal/domain"
)

// UserRepository defines the credential store. Lookups of missing users
// return apperrors.ErrNotFound.
type UserRepository interface {
	// Create inserts a new user. A taken email yields EMAIL_EXISTS.
	Create(ctx context.Context, user *domain.User) error

	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update persists the phone and password hash of the user. It never
	// touches the stored refresh token.
	Update(ctx context.Context, user *domain.User) error

	// SetRefreshToken unconditionally replaces the stored refresh token. A nil
	// token signs the user out.
	SetRefreshToken(ctx context.Context, id string, token *string) error

	// RotateRefreshToken replaces the stored refresh token with next only if
	// it still equals expected. It reports whether the swap happened.
	RotateRefreshToken(ctx context.Context, id, expected, next string) (bool, error)
}

// ImageRepository defines gallery image persistence. Every operation is
// scoped to the owning user; images of other users behave as missing.
type ImageRepository interface {
	// CreateMany inserts images atomically, assigning orders that continue
	// after the user's current image count.
	CreateMany(ctx context.Context, userID string, images []*domain.Image) error

	GetByID(ctx context.Context, userID, id string) (*domain.Image, error)

	// ListByUser returns the user's images sorted by order, then creation time.
	ListByUser(ctx context.Context, userID string) ([]domain.Image, error)

	// Update persists title, file fields and updated_at.
	Update(ctx context.Context, image *domain.Image) error

	Delete(ctx context.Context, userID, id string) error

	// Rearrange applies all orders in one transaction. If any id is not an
	// image of the user nothing is applied and apperrors.ErrNotFound is returned.
	Rearrange(ctx context.Context, userID string, orders []domain.ImageOrder) error
}
