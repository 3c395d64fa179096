package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/utafrali/gallery/internal/config"
	"github.com/utafrali/gallery/internal/storage"
	"github.com/utafrali/gallery/internal/storage/local"
	"github.com/utafrali/gallery/internal/storage/memory"
	"github.com/utafrali/gallery/internal/storage/minio"
)

// imageStorage is the storage backend selected by STORAGE_BACKEND together
// with its optional file handler and health check.
type imageStorage struct {
	store   storage.Storage
	handler http.Handler
	ping    func(context.Context) error
}

func newStorage(ctx context.Context, cfg *config.Config) (imageStorage, error) {
	switch cfg.StorageBackend {
	case "minio":
		s, err := minio.New(ctx, minio.Config{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.MinioBucket,
			UseSSL:        cfg.MinioUseSSL,
			PublicBaseURL: cfg.PublicBaseURL,
		})
		if err != nil {
			return imageStorage{}, fmt.Errorf("init minio storage: %w", err)
		}
		return imageStorage{store: s, ping: s.Ping}, nil

	case "memory":
		s := memory.New(cfg.PublicBaseURL)
		return imageStorage{store: s, handler: s}, nil

	default:
		s, err := local.New(cfg.UploadDir, cfg.PublicBaseURL)
		if err != nil {
			return imageStorage{}, fmt.Errorf("init local storage: %w", err)
		}
		return imageStorage{store: s, handler: s.Handler(), ping: s.Ping}, nil
	}
}
