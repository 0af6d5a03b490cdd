package unit

import (
	"net/http"
	"time"

	"github.com/stayloop/rental-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "unit not found")
	ErrLabelRequired    = apperror.New(http.StatusBadRequest, "label is required")
	ErrInvalidRate      = apperror.New(http.StatusBadRequest, "rate must be positive")
	ErrInvalidStatus    = apperror.New(http.StatusBadRequest, "invalid unit status")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, "permission denied")
	ErrUnitRented       = apperror.New(http.StatusConflict, "unit is currently rented")
	ErrUnitHasBookings  = apperror.New(http.StatusConflict, "unit is attached to an open booking")
	ErrNoUnits          = apperror.New(http.StatusBadRequest, "at least one unit is required")
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusRented      Status = "rented"
	StatusMaintenance Status = "maintenance"
)

// Unit is a leasable sub-division of a property (e.g., one room).
type Unit struct {
	ID         string
	PropertyID string
	Label      string
	RateMinor  int64 // price per rent period, in minor currency units
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Issue describes one problem found while validating units for a booking.
// Issues are collected and returned together so the caller can report
// every problem at once instead of failing on the first.
type Issue struct {
	UnitID  string `json:"unit_id"`
	Problem string `json:"problem"`
}

// Filter defines parameters for listing units.
type Filter struct {
	PropertyID string
	Status     string
	Page       int
	PageSize   int
}
