package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stayloop/rental-booking-backend/internal/auth"
	"github.com/stayloop/rental-booking-backend/internal/pkg/request"
	"github.com/stayloop/rental-booking-backend/internal/pkg/response"
	"github.com/stayloop/rental-booking-backend/internal/refund"
)

// Handler exposes the admin refund console: reviewing pending refunds and
// approving or rejecting them. All routes are admin-gated.
type Handler struct {
	service refund.Service
}

func NewHandler(service refund.Service) *Handler {
	return &Handler{service: service}
}

// Create records a manual refund against a settled transaction.
func (h *Handler) Create(c *gin.Context) {
	var body CreateRefundRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	adminID := auth.GetUserID(c)

	req := refund.CreateRequest{
		TransactionID: body.TransactionID,
		AmountMinor:   body.AmountMinor,
		Reason:        body.Reason,
	}

	r, err := h.service.Create(c.Request.Context(), req, adminID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewResponse(r))
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	r, err := h.service.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(r))
}

func (h *Handler) List(c *gin.Context) {
	var req ListRefundsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	filter := refund.Filter{
		Status:    req.Status,
		BookingID: req.BookingID,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}

	refunds, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]RefundResponse, len(refunds))
	for i, r := range refunds {
		items[i] = NewResponse(r)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

// Process approves or rejects a pending refund.
func (h *Handler) Process(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var body ProcessRefundRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	adminID := auth.GetUserID(c)

	r, err := h.service.Process(c.Request.Context(), uri.ID, refund.Action(body.Action), body.Reason, adminID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(r))
}
