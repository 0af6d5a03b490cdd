package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stayloop/rental-booking-backend/internal/auth"
	"github.com/stayloop/rental-booking-backend/internal/booking"
	"github.com/stayloop/rental-booking-backend/internal/dispute"
	"github.com/stayloop/rental-booking-backend/internal/pkg/request"
	"github.com/stayloop/rental-booking-backend/internal/pkg/response"
	"github.com/stayloop/rental-booking-backend/internal/user"
)

type Handler struct {
	service     dispute.Service
	userService user.Service
}

func NewHandler(service dispute.Service, userService user.Service) *Handler {
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

// Create opens a dispute on one of the caller's active bookings.
func (h *Handler) Create(c *gin.Context) {
	var body CreateDisputeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	userID := auth.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	d, err := h.service.Create(c.Request.Context(), body.BookingID, body.Reason, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewResponse(d))
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	userID := auth.GetUserID(c)

	d, err := h.service.GetByID(c.Request.Context(), uri.ID, userID, h.isAdmin(c, userID))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(d))
}

// List returns disputes. Non-admins only see disputes they raised.
func (h *Handler) List(c *gin.Context) {
	var req ListDisputesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	userID := auth.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	filter := dispute.Filter{
		Status:    req.Status,
		BookingID: req.BookingID,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if !h.isAdmin(c, userID) {
		filter.RaisedBy = userID
	}

	disputes, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]DisputeResponse, len(disputes))
	for i, d := range disputes {
		items[i] = NewResponse(d)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

// Resolve settles a pending dispute. Admin-only (enforced by routing).
func (h *Handler) Resolve(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var body ResolveDisputeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	adminID := auth.GetUserID(c)

	req := dispute.ResolveRequest{
		Upheld:            body.Decision == "uphold",
		Resolution:        body.Resolution,
		BookingOutcome:    booking.Status(body.BookingOutcome),
		RefundAmountMinor: body.RefundAmountMinor,
	}

	d, err := h.service.Resolve(c.Request.Context(), uri.ID, req, adminID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(d))
}
