package photo

import (
	"net/http"
	"time"

	"github.com/stayloop/rental-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "photo not found")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, "permission denied")
	ErrNotAnImage       = apperror.New(http.StatusBadRequest, "uploaded file is not an image")
	ErrTooLarge         = apperror.New(http.StatusBadRequest, "uploaded file is too large")
)

// Photo is a listing image attached to a property.
type Photo struct {
	ID            string
	PropertyID    string
	UploadedBy    string
	Filename      string
	StoragePath   string // internal, never exposed
	ThumbnailPath *string
	ContentType   string
	Size          int64
	CreatedAt     time.Time
}

// URL returns the public path serving the photo.
func URL(id string) string {
	return "/v1/photos/" + id
}

// ThumbnailURL returns the public path serving the photo's thumbnail.
func ThumbnailURL(id string) string {
	return "/v1/photos/" + id + "/thumbnail"
}
