package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers refund-related routes. Refund review moves money,
// so the whole group is admin-only.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, adminMiddleware gin.HandlerFunc) {
	group := g.Group("/refunds")

	group.Use(authMiddleware, adminMiddleware)
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("", h.Create)
		group.POST("/:id/process", h.Process)
	}
}
