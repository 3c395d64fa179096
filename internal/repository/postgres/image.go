package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/gallery/internal/domain"
	"github.com/utafrali/gallery/pkg/database"
	apperrors "github.com/utafrali/gallery/pkg/errors"
)

const imageColumns = `id, user_id, title, url, storage_key, content_type, size, sort_order, created_at, updated_at`

// ImageRepository implements repository.ImageRepository using PostgreSQL.
type ImageRepository struct {
	db database.DBTX
}

// NewImageRepository creates a new PostgreSQL-backed image repository.
func NewImageRepository(db database.DBTX) *ImageRepository {
	return &ImageRepository{db: db}
}

// CreateMany inserts the images in one transaction after the user's current
// last position. The owner row is locked so concurrent uploads of the same
// user get distinct orders.
func (r *ImageRepository) CreateMany(ctx context.Context, userID string, images []*domain.Image) (err error) {
	const (
		lockQuery   = `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`
		nextQuery   = `SELECT COALESCE(MAX(sort_order) + 1, 0) FROM images WHERE user_id = $1`
		insertQuery = `
			INSERT INTO images (` + imageColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	)

	ctx, end := database.TraceQuery(ctx, "CreateImages", insertQuery)
	defer func() { end(err) }()

	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockQuery, userID); err != nil {
			return fmt.Errorf("lock image owner: %w", err)
		}

		var next int
		if err := tx.QueryRow(ctx, nextQuery, userID).Scan(&next); err != nil {
			return fmt.Errorf("next image order: %w", err)
		}

		for i, img := range images {
			img.UserID = userID
			img.Order = next + i
			_, err := tx.Exec(ctx, insertQuery,
				img.ID,
				img.UserID,
				img.Title,
				img.URL,
				img.StorageKey,
				img.ContentType,
				img.Size,
				img.Order,
				img.CreatedAt,
				img.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert image %s: %w", img.ID, err)
			}
		}
		return nil
	})
}

// GetByID retrieves an image of the user by its ID.
func (r *ImageRepository) GetByID(ctx context.Context, userID, id string) (_ *domain.Image, err error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1 AND user_id = $2`

	ctx, end := database.TraceQuery(ctx, "GetImageByID", query)
	defer func() { end(err) }()

	var img domain.Image
	err = scanImage(r.db.QueryRow(ctx, query, id, userID), &img)
	if err != nil {
		if isNoMatch(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get image: %w", err)
	}
	return &img, nil
}

// ListByUser returns all images of the user in display order.
func (r *ImageRepository) ListByUser(ctx context.Context, userID string) (images []domain.Image, err error) {
	query := `
		SELECT ` + imageColumns + `
		FROM images
		WHERE user_id = $1
		ORDER BY sort_order ASC, created_at ASC`

	ctx, end := database.TraceQuery(ctx, "ListImagesByUser", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	images = []domain.Image{}
	for rows.Next() {
		var img domain.Image
		if err := scanImage(rows, &img); err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image rows: %w", err)
	}
	return images, nil
}

// Update persists the mutable fields of an image.
func (r *ImageRepository) Update(ctx context.Context, img *domain.Image) (err error) {
	img.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE images
		SET title = $1, url = $2, storage_key = $3, content_type = $4, size = $5, updated_at = $6
		WHERE id = $7 AND user_id = $8`

	ctx, end := database.TraceQuery(ctx, "UpdateImage", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		img.Title,
		img.URL,
		img.StorageKey,
		img.ContentType,
		img.Size,
		img.UpdatedAt,
		img.ID,
		img.UserID,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("update image: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes an image of the user.
func (r *ImageRepository) Delete(ctx context.Context, userID, id string) (err error) {
	query := `DELETE FROM images WHERE id = $1 AND user_id = $2`

	ctx, end := database.TraceQuery(ctx, "DeleteImage", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		if isInvalidUUID(err) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("delete image: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Rearrange sets the order of each listed image in one transaction.
func (r *ImageRepository) Rearrange(ctx context.Context, userID string, orders []domain.ImageOrder) (err error) {
	query := `UPDATE images SET sort_order = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`

	ctx, end := database.TraceQuery(ctx, "RearrangeImages", query)
	defer func() { end(err) }()

	now := time.Now().UTC()
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, o := range orders {
			ct, err := tx.Exec(ctx, query, o.Order, now, o.ID, userID)
			if err != nil {
				if isInvalidUUID(err) {
					return apperrors.ErrNotFound
				}
				return fmt.Errorf("set order of image %s: %w", o.ID, err)
			}
			if ct.RowsAffected() == 0 {
				return apperrors.ErrNotFound
			}
		}
		return nil
	})
}

func scanImage(row pgx.Row, img *domain.Image) error {
	return row.Scan(
		&img.ID,
		&img.UserID,
		&img.Title,
		&img.URL,
		&img.StorageKey,
		&img.ContentType,
		&img.Size,
		&img.Order,
		&img.CreatedAt,
		&img.UpdatedAt,
	)
}
