package http

import (
	"time"

	"github.com/stayloop/rental-booking-backend/internal/booking"
	"github.com/stayloop/rental-booking-backend/internal/pkg/request"
)

type CreateBookingRequest struct {
	PropertyID string     `json:"property_id"`
	UnitIDs    []string   `json:"unit_ids" binding:"required,min=1"`
	StartDate  time.Time  `json:"start_date" binding:"required"`
	EndDate    *time.Time `json:"end_date"`
	Periods    int        `json:"periods"`
}

type RespondRequest struct {
	Action string `json:"action" binding:"required,oneof=accept reject"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ConfirmPaymentRequest struct {
	Reference string `json:"reference" binding:"required"`
}

type ListBookingsRequest struct {
	request.ListParams
	Role       string `form:"role,default=renter" binding:"oneof=renter host"`
	PropertyID string `form:"property_id"`
	Status     string `form:"status"`
	RenterID   string `form:"renter_id"` // admin only
	OwnerID    string `form:"owner_id"`  // admin only
}

type BookingResponse struct {
	ID           string     `json:"id"`
	RenterID     string     `json:"renter_id"`
	RenterName   string     `json:"renter_name,omitempty"`
	PropertyID   string     `json:"property_id"`
	PropertyName string     `json:"property_name,omitempty"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Periods      int        `json:"periods"`
	AmountMinor  int64      `json:"amount_minor"`
	Currency     string     `json:"currency"`
	Status       string     `json:"status"`
	UnitIDs      []string   `json:"unit_ids"`
	CreatedAt    time.Time  `json:"created_at"`
}

func NewResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:           b.ID,
		RenterID:     b.RenterID,
		RenterName:   b.RenterName,
		PropertyID:   b.PropertyID,
		PropertyName: b.PropertyName,
		StartDate:    b.StartDate,
		EndDate:      b.EndDate,
		Periods:      b.Periods,
		AmountMinor:  b.AmountMinor,
		Currency:     b.Currency,
		Status:       string(b.Status),
		UnitIDs:      b.UnitIDs,
		CreatedAt:    b.CreatedAt,
	}
}

type CreateBookingResponse struct {
	Booking    BookingResponse `json:"booking"`
	PaymentURL string          `json:"payment_url,omitempty"`
}

type PayResponse struct {
	PaymentURL string `json:"payment_url"`
}
