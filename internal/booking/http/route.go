package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers booking-related routes. The payment confirmation
// endpoint doubles as the gateway callback and stays outside auth.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	g.POST("/payments/confirm", h.ConfirmPayment)

	group := g.Group("/bookings")

	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("", h.Create)
		group.POST("/requests", h.CreateRequest)
		group.POST("/:id/respond", h.Respond)
		group.POST("/:id/pay", h.Pay)
		group.PATCH("/:id/status", h.UpdateStatus)
	}
}
