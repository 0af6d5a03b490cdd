package payment

import (
	"net/http"
	"time"

	"github.com/stayloop/rental-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound       = apperror.New(http.StatusNotFound, "transaction not found")
	ErrAlreadySettled = apperror.New(http.StatusConflict, "transaction already settled")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusHeld      Status = "held"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Type string

const (
	TypeRentPayment Type = "rent_payment"
	TypeRefund      Type = "refund"
)

// Transaction is an immutable financial event record. Once completed, its
// amount and reference never change; corrections happen through refunds.
type Transaction struct {
	ID            string
	Type          Type
	BookingID     string
	UserID        string
	PropertyID    string
	AmountMinor   int64
	Currency      string
	Status        Status
	Reference     string // our correlation id handed to the gateway
	Gateway       string
	GatewayRef    *string // gateway-side id, set on completion
	FailureReason *string
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
