package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers photo-related routes. Serving and listing are
// public; uploads and deletions require auth.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	g.GET("/photos/:id", h.Serve)
	g.GET("/photos/:id/thumbnail", h.ServeThumbnail)
	g.DELETE("/photos/:id", authMiddleware, h.Delete)

	g.GET("/properties/:id/photos", h.ListByProperty)
	g.POST("/properties/:id/photos", authMiddleware, h.Upload)
}
