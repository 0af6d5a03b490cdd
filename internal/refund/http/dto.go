package http

import (
	"time"

	"github.com/stayloop/rental-booking-backend/internal/pkg/request"
	"github.com/stayloop/rental-booking-backend/internal/refund"
)

type CreateRefundRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	AmountMinor   int64  `json:"amount_minor" binding:"required,gt=0"`
	Reason        string `json:"reason" binding:"required"`
}

type ProcessRefundRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject"`
	Reason string `json:"reason"`
}

type ListRefundsRequest struct {
	request.ListParams
	Status    string `form:"status"`
	BookingID string `form:"booking_id"`
}

type RefundResponse struct {
	ID            string     `json:"id"`
	TransactionID string     `json:"transaction_id"`
	BookingID     string     `json:"booking_id"`
	AmountMinor   int64      `json:"amount_minor"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason"`
	RequestedBy   string     `json:"requested_by"`
	ProcessedBy   *string    `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func NewResponse(r *refund.Refund) RefundResponse {
	return RefundResponse{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		BookingID:     r.BookingID,
		AmountMinor:   r.AmountMinor,
		Currency:      r.Currency,
		Status:        string(r.Status),
		Reason:        r.Reason,
		RequestedBy:   r.RequestedBy,
		ProcessedBy:   r.ProcessedBy,
		ProcessedAt:   r.ProcessedAt,
		FailureReason: r.FailureReason,
		CreatedAt:     r.CreatedAt,
	}
}
