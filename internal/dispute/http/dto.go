package http

import (
	"time"

	"github.com/stayloop/rental-booking-backend/internal/dispute"
	"github.com/stayloop/rental-booking-backend/internal/pkg/request"
)

type CreateDisputeRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
}

type ResolveDisputeRequest struct {
	Decision          string `json:"decision" binding:"required,oneof=uphold dismiss"`
	Resolution        string `json:"resolution" binding:"required"`
	BookingOutcome    string `json:"booking_outcome" binding:"required,oneof=completed cancelled"`
	RefundAmountMinor *int64 `json:"refund_amount_minor"`
}

type ListDisputesRequest struct {
	request.ListParams
	Status    string `form:"status"`
	BookingID string `form:"booking_id"`
}

type DisputeResponse struct {
	ID         string     `json:"id"`
	BookingID  string     `json:"booking_id"`
	RaisedBy   string     `json:"raised_by"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	Resolution *string    `json:"resolution,omitempty"`
	ResolvedBy *string    `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	RefundID   *string    `json:"refund_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func NewResponse(d *dispute.Dispute) DisputeResponse {
	return DisputeResponse{
		ID:         d.ID,
		BookingID:  d.BookingID,
		RaisedBy:   d.RaisedBy,
		Reason:     d.Reason,
		Status:     string(d.Status),
		Resolution: d.Resolution,
		ResolvedBy: d.ResolvedBy,
		ResolvedAt: d.ResolvedAt,
		RefundID:   d.RefundID,
		CreatedAt:  d.CreatedAt,
	}
}
