package http

import (
	"time"

	"github.com/stayloop/rental-booking-backend/internal/photo"
)

type PhotoResponse struct {
	ID           string    `json:"id"`
	PropertyID   string    `json:"property_id"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewResponse(p *photo.Photo) PhotoResponse {
	return PhotoResponse{
		ID:           p.ID,
		PropertyID:   p.PropertyID,
		Filename:     p.Filename,
		ContentType:  p.ContentType,
		Size:         p.Size,
		URL:          photo.URL(p.ID),
		ThumbnailURL: photo.ThumbnailURL(p.ID),
		CreatedAt:    p.CreatedAt,
	}
}
