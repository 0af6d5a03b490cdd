package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stayloop/rental-booking-backend/internal/auth"
	"github.com/stayloop/rental-booking-backend/internal/photo"
	"github.com/stayloop/rental-booking-backend/internal/pkg/response"
	"github.com/stayloop/rental-booking-backend/internal/user"
)

type Handler struct {
	service     photo.Service
	userService user.Service
}

func NewHandler(service photo.Service, userService user.Service) *Handler {
	return &Handler{
		service:     service,
		userService: userService,
	}
}

func (h *Handler) isAdmin(c *gin.Context, userID string) bool {
	u, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		return false
	}
	return u.IsAdmin
}

// Upload attaches a listing photo to a property (multipart field "photo").
func (h *Handler) Upload(c *gin.Context) {
	propertyID := c.Param("id")
	if propertyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "property ID is required"})
		return
	}

	header, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required", "details": err.Error()})
		return
	}

	userID := auth.GetUserID(c)

	p, err := h.service.Upload(c.Request.Context(), propertyID, header, userID, h.isAdmin(c, userID))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewResponse(p))
}

// ListByProperty returns a property's listing photos.
func (h *Handler) ListByProperty(c *gin.Context) {
	propertyID := c.Param("id")
	if propertyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "property ID is required"})
		return
	}

	photos, err := h.service.ListByProperty(c.Request.Context(), propertyID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]PhotoResponse, len(photos))
	for i, p := range photos {
		items[i] = NewResponse(p)
	}

	c.JSON(http.StatusOK, items)
}

// Serve streams the photo content.
func (h *Handler) Serve(c *gin.Context) {
	h.stream(c, false)
}

// ServeThumbnail streams the photo's thumbnail.
func (h *Handler) ServeThumbnail(c *gin.Context) {
	h.stream(c, true)
}

func (h *Handler) stream(c *gin.Context, thumbnail bool) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo ID is required"})
		return
	}

	var (
		stream io.ReadCloser
		p      *photo.Photo
		err    error
	)
	if thumbnail {
		stream, p, err = h.service.DownloadThumbnail(c.Request.Context(), id)
	} else {
		stream, p, err = h.service.Download(c.Request.Context(), id)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	defer stream.Close()

	contentType := p.ContentType
	if thumbnail && p.ThumbnailPath != nil {
		contentType = "image/jpeg"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", `inline; filename="`+p.Filename+`"`)

	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, stream); err != nil {
		// Response already started; nothing sensible to send.
		return
	}
}

func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo ID is required"})
		return
	}

	userID := auth.GetUserID(c)

	if err := h.service.Delete(c.Request.Context(), id, userID, h.isAdmin(c, userID)); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
