package property

import (
	"net/http"
	"time"

	"github.com/stayloop/rental-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "property not found")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, "permission denied")
	ErrNameRequired     = apperror.New(http.StatusBadRequest, "name is required")
	ErrInvalidPeriod    = apperror.New(http.StatusBadRequest, "invalid rent period")
	ErrInvalidStatus    = apperror.New(http.StatusBadRequest, "invalid property status")
	ErrHasActiveBooking = apperror.New(http.StatusConflict, "property has active bookings")
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// RentPeriod is the billing unit a property is rented by.
type RentPeriod string

const (
	PeriodDaily   RentPeriod = "daily"
	PeriodMonthly RentPeriod = "monthly"
)

// Property represents a host-owned rental listing made up of leasable units.
type Property struct {
	ID          string
	OwnerID     string
	OwnerName   string
	Name        string
	Address     string
	Description string
	RentPeriod  RentPeriod
	Currency    string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter defines parameters for listing properties.
type Filter struct {
	OwnerID   string
	Status    string
	Keyword   string // Search in Name or Address
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
