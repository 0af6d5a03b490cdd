package http

import (
	"time"

	"github.com/stayloop/rental-booking-backend/internal/pkg/request"
	"github.com/stayloop/rental-booking-backend/internal/property"
)

type PropertyResponse struct {
	ID          string    `json:"id"`
	Owner       OwnerTag  `json:"owner"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Description string    `json:"description"`
	RentPeriod  string    `json:"rent_period"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnerTag is a minimal owner reference embedded in property responses.
type OwnerTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewResponse(p *property.Property) PropertyResponse {
	return PropertyResponse{
		ID:          p.ID,
		Owner:       OwnerTag{ID: p.OwnerID, Name: p.OwnerName},
		Name:        p.Name,
		Address:     p.Address,
		Description: p.Description,
		RentPeriod:  string(p.RentPeriod),
		Currency:    p.Currency,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Address     string `json:"address" binding:"required"`
	Description string `json:"description"`
	RentPeriod  string `json:"rent_period" binding:"required,oneof=daily monthly"`
	Currency    string `json:"currency" binding:"omitempty,len=3"`
}

type UpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty"`
	Address     *string `json:"address" binding:"omitempty"`
	Description *string `json:"description" binding:"omitempty"`
	Status      *string `json:"status" binding:"omitempty,oneof=active inactive"`
}

type ListPropertiesRequest struct {
	request.ListParams
	OwnerID string `form:"owner_id" binding:"omitempty,uuid"`
	Status  string `form:"status" binding:"omitempty,oneof=active inactive"`
	Keyword string `form:"keyword"`
	SortBy  string `form:"sort_by" binding:"omitempty,oneof=created_at name status"`
}
