package http

import (
	"time"

	"github.com/stayloop/rental-booking-backend/internal/pkg/request"
	"github.com/stayloop/rental-booking-backend/internal/unit"
)

type UnitResponse struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	Label      string    `json:"label"`
	RateMinor  int64     `json:"rate_minor"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewResponse(u *unit.Unit) UnitResponse {
	return UnitResponse{
		ID:         u.ID,
		PropertyID: u.PropertyID,
		Label:      u.Label,
		RateMinor:  u.RateMinor,
		Status:     string(u.Status),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type CreateRequest struct {
	PropertyID string `json:"property_id" binding:"required,uuid"`
	Label      string `json:"label" binding:"required"`
	RateMinor  int64  `json:"rate_minor" binding:"required,min=1"`
}

type UpdateRequest struct {
	Label     *string `json:"label" binding:"omitempty"`
	RateMinor *int64  `json:"rate_minor" binding:"omitempty,min=1"`
	Status    *string `json:"status" binding:"omitempty,oneof=available maintenance"`
}

type ListUnitsRequest struct {
	request.ListParams
	PropertyID string `form:"property_id" binding:"omitempty,uuid"`
	Status     string `form:"status" binding:"omitempty,oneof=available rented maintenance"`
}
