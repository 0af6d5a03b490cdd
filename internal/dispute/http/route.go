package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers dispute-related routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, adminMiddleware gin.HandlerFunc) {
	group := g.Group("/disputes")

	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("", h.Create)
	}

	admin := group.Group("")
	admin.Use(adminMiddleware)
	{
		admin.POST("/:id/resolve", h.Resolve)
	}
}
