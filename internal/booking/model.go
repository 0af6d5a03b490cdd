package booking

import (
	"fmt"
	"net/http"
	"time"

	"github.com/stayloop/rental-booking-backend/internal/pkg/apperror"
	"github.com/stayloop/rental-booking-backend/internal/unit"
)

var (
	ErrNotFound          = apperror.New(http.StatusNotFound, "booking not found")
	ErrPermissionDenied  = apperror.New(http.StatusForbidden, "permission denied")
	ErrPropertyInactive  = apperror.New(http.StatusBadRequest, "property is not active")
	ErrPropertyMismatch  = apperror.New(http.StatusBadRequest, "units do not belong to the requested property")
	ErrInvalidDates      = apperror.New(http.StatusBadRequest, "end date must be after start date")
	ErrInvalidPeriods    = apperror.New(http.StatusBadRequest, "rental duration must be positive")
	ErrStartDatePast     = apperror.New(http.StatusBadRequest, "cannot create a booking in the past")
	ErrNotRequested      = apperror.New(http.StatusConflict, "booking is not awaiting host response")
	ErrInvalidStatus     = apperror.New(http.StatusBadRequest, "invalid booking status")
	ErrIllegalTransition = apperror.New(http.StatusConflict, "illegal booking status transition")
	ErrStatusConflict    = apperror.New(http.StatusConflict, "booking status changed concurrently")
	ErrDisputed          = apperror.New(http.StatusConflict, "booking is under dispute and can only change through dispute resolution")
	ErrUnitUnavailable   = apperror.New(http.StatusConflict, "unit no longer available")
	ErrPaymentNotFound   = apperror.New(http.StatusNotFound, "payment reference not found")
	ErrNotPayable        = apperror.New(http.StatusConflict, "booking is not awaiting payment")
	ErrPaymentInit       = apperror.New(http.StatusBadGateway, "payment could not be initiated, please retry")
	ErrPaymentVerify     = apperror.New(http.StatusBadGateway, "payment could not be verified, please retry")
	ErrPaymentFailed     = apperror.New(http.StatusBadRequest, "payment failed")
)

type Status string

const (
	StatusRequested      Status = "requested"
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusActive         Status = "active"
	StatusDisputed       Status = "disputed"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
)

// legalTransitions is the booking state machine. A transition missing here
// is rejected no matter who asks for it.
var legalTransitions = map[Status][]Status{
	StatusRequested:      {StatusConfirmed, StatusCancelled},
	StatusPendingPayment: {StatusActive, StatusCancelled, StatusExpired},
	StatusConfirmed:      {StatusActive, StatusCancelled},
	StatusActive:         {StatusCompleted, StatusCancelled, StatusDisputed},
	StatusDisputed:       {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from→to is a legal booking transition.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the booking lifecycle.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// ValidStatus reports whether s is a known booking status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusRequested, StatusPendingPayment, StatusConfirmed, StatusActive,
		StatusDisputed, StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Booking represents one rental reservation of one or more units.
// Transitions never delete rows; history is preserved through status changes.
type Booking struct {
	ID             string
	RenterID       string
	RenterName     string
	PropertyID     string
	PropertyName   string
	OwnerID        string // property owner, joined for permission checks
	StartDate      time.Time
	EndDate        *time.Time
	Periods        int // number of rent periods (days or months)
	AmountMinor    int64
	Currency       string
	Status         Status
	IdempotencyKey *string
	UnitIDs        []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Filter defines parameters for listing bookings.
type Filter struct {
	RenterID   string
	OwnerID    string
	PropertyID string
	Status     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// UnitValidationError aggregates every problem found with the requested
// units so the caller can report them all at once.
type UnitValidationError struct {
	Issues []unit.Issue
}

func (e *UnitValidationError) Error() string {
	return fmt.Sprintf("units failed validation (%d problems)", len(e.Issues))
}
