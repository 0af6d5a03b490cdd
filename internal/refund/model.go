package refund

import (
	"net/http"
	"time"

	"github.com/stayloop/rental-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "refund not found")
	ErrNotRefundable    = apperror.New(http.StatusConflict, "transaction is not refundable")
	ErrInvalidAmount    = apperror.New(http.StatusBadRequest, "refund amount must be positive")
	ErrAmountExceeds    = apperror.New(http.StatusBadRequest, "refund amount exceeds the original payment")
	ErrAlreadyProcessed = apperror.New(http.StatusConflict, "refund already processed")
	ErrReasonRequired   = apperror.New(http.StatusBadRequest, "a reason is required when rejecting a refund")
	ErrInvalidAction    = apperror.New(http.StatusBadRequest, "invalid refund action")
	ErrNotSettled       = apperror.New(http.StatusConflict, "original payment has no gateway settlement to refund against")
	ErrGateway          = apperror.New(http.StatusBadGateway, "refund could not be issued, please retry")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusRejected  Status = "rejected"
	// StatusFailed marks a gateway failure during processing; the refund can
	// be processed again.
	StatusFailed Status = "failed"
)

// Action is an admin decision on a pending refund.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Refund is a request to return money against a settled transaction. It is
// created pending and only moves money once an admin approves it.
type Refund struct {
	ID            string
	TransactionID string
	BookingID     string
	AmountMinor   int64
	Currency      string
	Status        Status
	Reason        string
	RequestedBy   string
	ProcessedBy   *string
	ProcessedAt   *time.Time
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Filter defines parameters for listing refunds.
type Filter struct {
	Status    string
	BookingID string
	Page      int
	PageSize  int
}
