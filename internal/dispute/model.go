package dispute

import (
	"net/http"
	"time"

	"github.com/stayloop/rental-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "dispute not found")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, "permission denied")
	ErrReasonRequired   = apperror.New(http.StatusBadRequest, "a reason is required to open a dispute")
	ErrNotDisputable    = apperror.New(http.StatusConflict, "only active bookings can be disputed")
	ErrAlreadyDisputed  = apperror.New(http.StatusConflict, "booking already has a pending dispute")
	ErrAlreadyResolved  = apperror.New(http.StatusConflict, "dispute already resolved")
	ErrInvalidOutcome   = apperror.New(http.StatusBadRequest, "booking outcome must be completed or cancelled")
	ErrInvalidDecision  = apperror.New(http.StatusBadRequest, "invalid dispute decision")
	ErrNoPayment        = apperror.New(http.StatusConflict, "booking has no completed payment to refund")
	ErrRefundNotUpheld  = apperror.New(http.StatusBadRequest, "a refund requires the dispute to be upheld")
	ErrRefundTooLarge   = apperror.New(http.StatusBadRequest, "refund amount exceeds the booking payment")
)

type Status string

const (
	StatusPending Status = "pending"
	// StatusResolved means the complaint was upheld.
	StatusResolved Status = "resolved"
	// StatusRejected means the complaint was dismissed.
	StatusRejected Status = "rejected"
)

// Dispute is a complaint one booking party raises against the other. While
// pending it freezes the booking; resolution is admin-only and settles both
// the dispute and the booking's final state.
type Dispute struct {
	ID         string
	BookingID  string
	RaisedBy   string
	Reason     string
	Status     Status
	Resolution *string // admin's note explaining the decision
	ResolvedBy *string
	ResolvedAt *time.Time
	RefundID   *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Filter defines parameters for listing disputes.
type Filter struct {
	Status    string
	BookingID string
	RaisedBy  string
	Page      int
	PageSize  int
}
