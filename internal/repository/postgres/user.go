package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/utafrali/gallery/internal/domain"
	"github.com/utafrali/gallery/pkg/database"
	apperrors "github.com/utafrali/gallery/pkg/errors"
)

const userColumns = `id, email, phone, password_hash, refresh_token, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	query := `
		INSERT INTO users (id, email, phone, password_hash, refresh_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := database.TraceQuery(ctx, "CreateUser", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.Email,
		u.Phone,
		u.PasswordHash,
		u.RefreshToken,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailExists()
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, "GetUserByID", query, id)
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(ctx, "GetUserByEmail", query, email)
}

// Update persists the phone and password hash. The refresh token is only
// written through SetRefreshToken and RotateRefreshToken.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) (err error) {
	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET phone = $1, password_hash = $2, updated_at = $3
		WHERE id = $4`

	ctx, end := database.TraceQuery(ctx, "UpdateUser", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, u.Phone, u.PasswordHash, u.UpdatedAt, u.ID)
	if err != nil {
		if isInvalidUUID(err) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("update user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SetRefreshToken replaces the stored refresh token, or clears it when token is nil.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id string, token *string) (err error) {
	query := `UPDATE users SET refresh_token = $1, updated_at = $2 WHERE id = $3`

	ctx, end := database.TraceQuery(ctx, "SetRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, token, time.Now().UTC(), id)
	if err != nil {
		if isInvalidUUID(err) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("set refresh token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// RotateRefreshToken swaps expected for next in a single conditional update.
// Of two concurrent rotations presenting the same token only one succeeds.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, id, expected, next string) (ok bool, err error) {
	query := `
		UPDATE users
		SET refresh_token = $1, updated_at = $2
		WHERE id = $3 AND refresh_token = $4`

	ctx, end := database.TraceQuery(ctx, "RotateRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, next, time.Now().UTC(), id, expected)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *UserRepository) scanUser(ctx context.Context, op, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var u domain.User
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&u.RefreshToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if isNoMatch(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
