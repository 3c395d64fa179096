package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// allowedContentTypes maps accepted upload types to the extension used for
// the stored file.
var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// MaxImageSize is the maximum allowed upload size in bytes (10 MiB).
const MaxImageSize int64 = 10 << 20

// Image is one picture in a user's gallery.
type Image struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	StorageKey  string    `json:"-"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ImageOrder assigns a position to an image.
type ImageOrder struct {
	ID    string `json:"id" validate:"required,uuid"`
	Order int    `json:"order" validate:"gte=0"`
}

// IsAllowedContentType checks whether the given content type may be uploaded.
func IsAllowedContentType(contentType string) bool {
	_, ok := allowedContentTypes[normalizeContentType(contentType)]
	return ok
}

// ExtensionFor returns the file extension for an allowed content type, falling
// back to the extension of the original file name.
func ExtensionFor(contentType, filename string) string {
	if ext, ok := allowedContentTypes[normalizeContentType(contentType)]; ok {
		return ext
	}
	return strings.ToLower(filepath.Ext(filename))
}

// StorageKey returns the storage key for a new image of the user.
func StorageKey(userID, imageID, ext string) string {
	return "users/" + userID + "/" + imageID + ext
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
