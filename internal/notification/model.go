package notification

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("notification not found")

// Kind identifies the notification variant and therefore its payload schema.
type Kind string

const (
	KindBookingRequested Kind = "booking.requested"
	KindBookingResponded Kind = "booking.responded"
	KindBookingPaid      Kind = "booking.paid"
	KindBookingCancelled Kind = "booking.cancelled"
	KindBookingExpired   Kind = "booking.expired"
	KindDisputeOpened    Kind = "dispute.opened"
	KindDisputeResolved  Kind = "dispute.resolved"
	KindRefundCreated    Kind = "refund.created"
	KindRefundProcessed  Kind = "refund.processed"
)

// Payload is the tagged-variant interface for notification data. Each kind
// carries its own explicit schema instead of a loose JSON blob, so the shape
// cannot silently drift between producer and consumer.
type Payload interface {
	notificationPayload()
}

type BookingPayload struct {
	BookingID   string `json:"booking_id"`
	PropertyID  string `json:"property_id"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

func (BookingPayload) notificationPayload() {}

type DisputePayload struct {
	DisputeID  string `json:"dispute_id"`
	BookingID  string `json:"booking_id"`
	Status     string `json:"status"`
	Resolution string `json:"resolution,omitempty"`
}

func (DisputePayload) notificationPayload() {}

type RefundPayload struct {
	RefundID      string `json:"refund_id"`
	TransactionID string `json:"transaction_id"`
	AmountMinor   int64  `json:"amount_minor"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
}

func (RefundPayload) notificationPayload() {}

// Notification is a persisted message to one user, also published to the
// outbound queue for delivery channels (push, email workers).
type Notification struct {
	ID        string
	UserID    string
	Kind      Kind
	Title     string
	Message   string
	Payload   json.RawMessage
	ReadAt    *time.Time
	CreatedAt time.Time
}

// New describes a notification about to be sent.
type New struct {
	UserID  string
	Kind    Kind
	Title   string
	Message string
	Payload Payload
}

// Filter defines parameters for listing a user's notifications.
type Filter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
