package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/gallery/internal/domain"
	"github.com/utafrali/gallery/internal/repository"
	"github.com/utafrali/gallery/internal/storage"
	apperrors "github.com/utafrali/gallery/pkg/errors"
)

// UploadFile is one file received from a client. ContentType is the sniffed
// type, not the one declared by the client.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UpdateImageInput holds the optional replacements for an image. At least one
// field must be set.
type UpdateImageInput struct {
	Title *string
	File  *UploadFile
}

// GalleryService manages the images of a user.
type GalleryService struct {
	images  repository.ImageRepository
	storage storage.Storage
	events  EventPublisher
	logger  *slog.Logger
}

// NewGalleryService creates a new GalleryService.
func NewGalleryService(
	images repository.ImageRepository,
	store storage.Storage,
	events EventPublisher,
	logger *slog.Logger,
) *GalleryService {
	return &GalleryService{
		images:  images,
		storage: store,
		events:  events,
		logger:  logger,
	}
}

// Upload stores the files and records them as images titled by the matching
// entry of titles. Either every image is recorded or none is.
func (s *GalleryService) Upload(ctx context.Context, userID string, files []UploadFile, titles []string) ([]domain.Image, error) {
	if userID == "" {
		return nil, domain.ErrUserIDNotProvided()
	}
	if len(files) == 0 {
		return nil, domain.ErrRequiredData("at least one image is required")
	}
	if len(titles) != len(files) {
		return nil, domain.ErrRequiredData("a title is required for every image")
	}
	trimmed := make([]string, len(titles))
	for i := range files {
		trimmed[i] = strings.TrimSpace(titles[i])
		if trimmed[i] == "" {
			return nil, domain.ErrRequiredData("image title must not be empty")
		}
		if err := validateFile(&files[i]); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	images := make([]*domain.Image, 0, len(files))
	for i := range files {
		img, err := s.store(ctx, userID, &files[i])
		if err != nil {
			s.removeFiles(ctx, images)
			return nil, err
		}
		img.Title = trimmed[i]
		img.CreatedAt = now
		img.UpdatedAt = now
		images = append(images, img)
	}

	if err := s.images.CreateMany(ctx, userID, images); err != nil {
		s.removeFiles(ctx, images)
		return nil, fmt.Errorf("create images: %w", err)
	}

	out := make([]domain.Image, 0, len(images))
	for _, img := range images {
		if err := s.events.ImageUploaded(ctx, img); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish image uploaded event",
				slog.String("image_id", img.ID),
				slog.String("error", err.Error()),
			)
		}
		out = append(out, *img)
	}

	ImagesUploaded.Add(float64(len(out)))
	s.logger.InfoContext(ctx, "images uploaded",
		slog.String("user_id", userID),
		slog.Int("count", len(out)),
	)
	return out, nil
}

// List returns the user's images in display order.
func (s *GalleryService) List(ctx context.Context, userID string) ([]domain.Image, error) {
	if userID == "" {
		return nil, domain.ErrUserIDNotProvided()
	}
	images, err := s.images.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	if images == nil {
		images = []domain.Image{}
	}
	return images, nil
}

// Update replaces the title and/or the file of an image. A replaced file is
// removed from storage once the new one is recorded.
func (s *GalleryService) Update(ctx context.Context, userID, id string, input UpdateImageInput) (*domain.Image, error) {
	if userID == "" {
		return nil, domain.ErrUserIDNotProvided()
	}
	if input.Title == nil && input.File == nil {
		return nil, domain.ErrRequiredData("a title or an image is required")
	}
	var title string
	if input.Title != nil {
		title = strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, domain.ErrRequiredData("image title must not be empty")
		}
	}
	if input.File != nil {
		if err := validateFile(input.File); err != nil {
			return nil, err
		}
	}

	img, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		img.Title = title
	}

	var oldKey string
	var replacement *domain.Image
	if input.File != nil {
		replacement, err = s.store(ctx, userID, input.File)
		if err != nil {
			return nil, err
		}
		oldKey = img.StorageKey
		img.StorageKey = replacement.StorageKey
		img.URL = replacement.URL
		img.ContentType = replacement.ContentType
		img.Size = replacement.Size
	}
	img.UpdatedAt = time.Now().UTC()

	if err := s.images.Update(ctx, img); err != nil {
		if replacement != nil {
			s.removeFiles(ctx, []*domain.Image{replacement})
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrImageNotFound()
		}
		return nil, fmt.Errorf("update image: %w", err)
	}

	if oldKey != "" && oldKey != img.StorageKey {
		if err := s.storage.Delete(ctx, oldKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to remove replaced image file",
				slog.String("key", oldKey),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "image updated", slog.String("image_id", img.ID))
	return img, nil
}

// Delete removes an image and its stored file.
func (s *GalleryService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return domain.ErrUserIDNotProvided()
	}

	img, err := s.get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.images.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ErrImageNotFound()
		}
		return fmt.Errorf("delete image: %w", err)
	}

	if err := s.storage.Delete(ctx, img.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to remove image file",
			slog.String("key", img.StorageKey),
			slog.String("error", err.Error()),
		)
	}

	if err := s.events.ImageDeleted(ctx, img); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish image deleted event",
			slog.String("image_id", img.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "image deleted", slog.String("image_id", img.ID))
	return nil
}

// Rearrange assigns new orders to images of the user. Nothing is applied
// unless every id belongs to the user.
func (s *GalleryService) Rearrange(ctx context.Context, userID string, orders []domain.ImageOrder) error {
	if userID == "" {
		return domain.ErrUserIDNotProvided()
	}
	if len(orders) == 0 {
		return domain.ErrImageOrderWrong("image order must not be empty")
	}
	seen := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		if o.Order < 0 {
			return domain.ErrImageOrderWrong("image order must not be negative")
		}
		if _, dup := seen[o.ID]; dup {
			return domain.ErrImageOrderWrong(fmt.Sprintf("image %s listed more than once", o.ID))
		}
		seen[o.ID] = struct{}{}
	}

	if err := s.images.Rearrange(ctx, userID, orders); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ErrImageNotFound()
		}
		return fmt.Errorf("rearrange images: %w", err)
	}

	s.logger.InfoContext(ctx, "images rearranged",
		slog.String("user_id", userID),
		slog.Int("count", len(orders)),
	)
	return nil
}

func (s *GalleryService) get(ctx context.Context, userID, id string) (*domain.Image, error) {
	img, err := s.images.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrImageNotFound()
		}
		return nil, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

// store writes the file under a fresh image id and returns the image with its
// file fields filled in.
func (s *GalleryService) store(ctx context.Context, userID string, f *UploadFile) (*domain.Image, error) {
	id := uuid.New().String()
	key := domain.StorageKey(userID, id, domain.ExtensionFor(f.ContentType, f.Filename))

	res, err := s.storage.Upload(ctx, &storage.UploadInput{
		Key:         key,
		ContentType: f.ContentType,
		Size:        f.Size,
		Data:        f.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	return &domain.Image{
		ID:          id,
		UserID:      userID,
		URL:         res.URL,
		StorageKey:  res.Key,
		ContentType: f.ContentType,
		Size:        f.Size,
	}, nil
}

func (s *GalleryService) removeFiles(ctx context.Context, images []*domain.Image) {
	for _, img := range images {
		if err := s.storage.Delete(ctx, img.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to remove orphaned image file",
				slog.String("key", img.StorageKey),
				slog.String("error", err.Error()),
			)
		}
	}
}

func validateFile(f *UploadFile) error {
	switch {
	case f.Data == nil || f.Size <= 0:
		return apperrors.InvalidInput("image file is empty")
	case f.Size > domain.MaxImageSize:
		return apperrors.InvalidInput(fmt.Sprintf("image exceeds %d bytes", domain.MaxImageSize))
	case !domain.IsAllowedContentType(f.ContentType):
		return apperrors.InvalidInput(fmt.Sprintf("unsupported image type %q", f.ContentType))
	}
	return nil
}
