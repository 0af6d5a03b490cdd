package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stayloop/rental-booking-backend/internal/auth"
	"github.com/stayloop/rental-booking-backend/internal/booking"
	"github.com/stayloop/rental-booking-backend/internal/pkg/request"
	"github.com/stayloop/rental-booking-backend/internal/pkg/response"
	"github.com/stayloop/rental-booking-backend/internal/user"
)

type Handler struct {
	service     booking.Service
	userService user.Service
}

func NewHandler(service booking.Service, userService user.Service) *Handler {
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

// respondError maps unit validation problems to a structured 400 and defers
// everything else to the shared error responder.
func respondError(c *gin.Context, err error) {
	var uve *booking.UnitValidationError
	if errors.As(err, &uve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "units failed validation", "issues": uve.Issues})
		return
	}
	response.Error(c, err)
}

func (h *Handler) input(body CreateBookingRequest, c *gin.Context) booking.CreateInput {
	in := booking.CreateInput{
		PropertyID: body.PropertyID,
		UnitIDs:    body.UnitIDs,
		StartDate:  body.StartDate,
		EndDate:    body.EndDate,
		Periods:    body.Periods,
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		in.IdempotencyKey = &key
	}
	return in
}

// CreateRequest opens a booking request that the host must accept.
func (h *Handler) CreateRequest(c *gin.Context) {
	var body CreateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	userID := auth.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	b, err := h.service.CreateRequest(c.Request.Context(), h.input(body, c), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewResponse(b))
}

// Respond lets the property owner accept or reject a booking request.
func (h *Handler) Respond(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var body RespondRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	userID := auth.GetUserID(c)

	b, err := h.service.RespondToRequest(c.Request.Context(), uri.ID, userID, body.Action == "accept")
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(b))
}

// Create makes a direct booking and returns the gateway payment URL.
func (h *Handler) Create(c *gin.Context) {
	var body CreateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	userID := auth.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	b, paymentURL, err := h.service.Create(c.Request.Context(), h.input(body, c), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateBookingResponse{
		Booking:    NewResponse(b),
		PaymentURL: paymentURL,
	})
}

// Pay starts payment collection for a confirmed booking.
func (h *Handler) Pay(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	userID := auth.GetUserID(c)

	paymentURL, err := h.service.PayForBooking(c.Request.Context(), uri.ID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, PayResponse{PaymentURL: paymentURL})
}

// ConfirmPayment verifies a payment reference and activates the booking.
// Also serves as the gateway callback, so it carries no auth.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var body ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	b, err := h.service.ConfirmPayment(c.Request.Context(), body.Reference)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(b))
}

// UpdateStatus applies a lifecycle transition such as cancel or complete.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var body UpdateStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	userID := auth.GetUserID(c)

	b, err := h.service.UpdateStatus(c.Request.Context(), uri.ID, booking.Status(body.Status), userID, h.isAdmin(c, userID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(b))
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	userID := auth.GetUserID(c)

	b, err := h.service.GetByID(c.Request.Context(), uri.ID, userID, h.isAdmin(c, userID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(b))
}

// List returns the caller's bookings: their own as a renter, or those on
// their properties as a host. Admins may filter across all users.
func (h *Handler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	userID := auth.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	filter := booking.Filter{
		PropertyID: req.PropertyID,
		Status:     req.Status,
		Page:       req.Page,
		PageSize:   req.PageSize,
		SortOrder:  req.SortOrder,
	}

	if h.isAdmin(c, userID) {
		filter.RenterID = req.RenterID
		filter.OwnerID = req.OwnerID
	} else if req.Role == "host" {
		filter.OwnerID = userID
	} else {
		filter.RenterID = userID
	}

	bookings, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewResponse(b)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}
