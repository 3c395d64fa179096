package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/gallery/internal/domain"
	"github.com/utafrali/gallery/internal/service"
	apperrors "github.com/utafrali/gallery/pkg/errors"
	"github.com/utafrali/gallery/pkg/httputil"
	"github.com/utafrali/gallery/pkg/middleware"
	"github.com/utafrali/gallery/pkg/validator"
)

const (
	// MaxImagesPerUpload caps the number of files in one upload request.
	MaxImagesPerUpload = 10

	// multipartMemory is the part of a multipart body kept in memory; the
	// rest spills to temporary files.
	multipartMemory = 32 << 20

	sniffLen = 512
)

// GalleryService is the part of service.GalleryService used by the handlers.
type GalleryService interface {
	Upload(ctx context.Context, userID string, files []service.UploadFile, titles []string) ([]domain.Image, error)
	List(ctx context.Context, userID string) ([]domain.Image, error)
	Update(ctx context.Context, userID, id string, input service.UpdateImageInput) (*domain.Image, error)
	Delete(ctx context.Context, userID, id string) error
	Rearrange(ctx context.Context, userID string, orders []domain.ImageOrder) error
}

// ImageHandler handles HTTP requests for gallery endpoints.
type ImageHandler struct {
	gallery GalleryService
	logger  *slog.Logger
}

// NewImageHandler creates a new image HTTP handler.
func NewImageHandler(gallery GalleryService, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{gallery: gallery, logger: logger}
}

// --- Request DTOs ---

// UpdateImageRequest is the JSON request body for updating an image title.
type UpdateImageRequest struct {
	Title *string `json:"title" validate:"omitempty,max=200"`
}

// RearrangeRequest is the JSON request body for reordering images.
type RearrangeRequest struct {
	ImageOrder []domain.ImageOrder `json:"image_order" validate:"dive"`
}

// --- Handlers ---

// List handles GET /api/v1/images
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	images, err := h.gallery.List(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, images)
}

// Upload handles POST /api/v1/images/upload (multipart/form-data). Files are
// sent as "images" parts and titles as a JSON array in the "titles" field.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImagesPerUpload*domain.MaxImageSize+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid multipart form"), h.logger)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["images"]
	if len(headers) > MaxImagesPerUpload {
		httputil.WriteError(w, r, apperrors.InvalidInput("too many images in one upload"), h.logger)
		return
	}

	titles, err := parseTitles(r.MultipartForm.Value["titles"])
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, closer, err := openUpload(fh)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		defer closer.Close()
		files = append(files, f)
	}

	images, err := h.gallery.Upload(r.Context(), middleware.UserIDFromContext(r.Context()), files, titles)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, images)
}

// Update handles PUT /api/v1/images/{id}. It accepts either a JSON body with
// a title or a multipart form with an optional "title" field and an optional
// "image" file.
func (h *ImageHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var input service.UpdateImageInput
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, domain.MaxImageSize+(1<<20))
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("invalid multipart form"), h.logger)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		if v, ok := r.MultipartForm.Value["title"]; ok && len(v) > 0 {
			title := v[0]
			input.Title = &title
		}
		if fhs := r.MultipartForm.File["image"]; len(fhs) > 0 {
			f, closer, err := openUpload(fhs[0])
			if err != nil {
				httputil.WriteError(w, r, err, h.logger)
				return
			}
			defer closer.Close()
			input.File = &f
		}
	} else {
		var req UpdateImageRequest
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		if err := validator.Validate(req); err != nil {
			httputil.WriteValidationError(w, r, err)
			return
		}
		input.Title = req.Title
	}

	img, err := h.gallery.Update(r.Context(), middleware.UserIDFromContext(r.Context()), id.String(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, img)
}

// Delete handles DELETE /api/v1/images/{id}
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.gallery.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, messageResponse{Message: "image deleted"})
}

// Rearrange handles PUT /api/v1/images/rearrange
func (h *ImageHandler) Rearrange(w http.ResponseWriter, r *http.Request) {
	var req RearrangeRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := h.gallery.Rearrange(r.Context(), middleware.UserIDFromContext(r.Context()), req.ImageOrder); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, messageResponse{Message: "images rearranged"})
}

// parseTitles accepts one field holding a JSON array, one field holding a
// JSON object keyed by file index ("0", "1", ...), or one field per title.
func parseTitles(values []string) ([]string, error) {
	if len(values) != 1 {
		return values, nil
	}
	raw := strings.TrimSpace(values[0])
	switch {
	case strings.HasPrefix(raw, "["):
		var titles []string
		if err := json.Unmarshal([]byte(raw), &titles); err != nil {
			return nil, apperrors.InvalidInput("titles must be a JSON array of strings")
		}
		return titles, nil
	case strings.HasPrefix(raw, "{"):
		return parseIndexedTitles(raw)
	default:
		return values, nil
	}
}

// parseIndexedTitles decodes {"0": "a", "1": "b"} into index order. Keys
// must cover 0..n-1 exactly.
func parseIndexedTitles(raw string) ([]string, error) {
	var byIndex map[string]string
	if err := json.Unmarshal([]byte(raw), &byIndex); err != nil {
		return nil, apperrors.InvalidInput("titles must be a JSON object of strings keyed by file index")
	}

	titles := make([]string, len(byIndex))
	seen := make([]bool, len(byIndex))
	for key, title := range byIndex {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(titles) || seen[idx] {
			return nil, apperrors.InvalidInput(fmt.Sprintf("titles key %q is not a file index", key))
		}
		titles[idx] = title
		seen[idx] = true
	}
	return titles, nil
}

// openUpload opens a multipart file and sniffs its content type from the
// leading bytes. The declared Content-Type header is ignored.
func openUpload(fh *multipart.FileHeader) (service.UploadFile, io.Closer, error) {
	f, err := fh.Open()
	if err != nil {
		return service.UploadFile{}, nil, apperrors.InvalidInput("cannot read uploaded file")
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		_ = f.Close()
		return service.UploadFile{}, nil, apperrors.InvalidInput("cannot read uploaded file")
	}
	head = head[:n]

	return service.UploadFile{
		Filename:    fh.Filename,
		ContentType: http.DetectContentType(head),
		Size:        fh.Size,
		Data:        io.MultiReader(bytes.NewReader(head), f),
	}, f, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
