package dispute

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/stayloop/rental-booking-backend/internal/booking"
	"github.com/stayloop/rental-booking-backend/internal/db"
	"github.com/stayloop/rental-booking-backend/internal/notification"
	"github.com/stayloop/rental-booking-backend/internal/payment"
	"github.com/stayloop/rental-booking-backend/internal/refund"
	"github.com/stayloop/rental-booking-backend/internal/unit"
)

// ResolveRequest is an admin's decision on a pending dispute.
type ResolveRequest struct {
	// Upheld decides the complaint: true resolves in the complainant's
	// favour, false dismisses it.
	Upheld bool

	// Resolution is the admin's note explaining the decision.
	Resolution string

	// BookingOutcome is the final state of the frozen booking, completed or
	// cancelled.
	BookingOutcome booking.Status

	// RefundAmountMinor, when set, creates a refund for that amount against
	// the booking's completed payment as part of the resolution.
	RefundAmountMinor *int64
}

// Service owns the dispute lifecycle. Opening a dispute freezes its booking;
// resolving one settles the dispute, the booking and any compensating refund
// in a single transaction.
type Service interface {
	// Create opens a dispute on an active booking. Only the renter or the
	// property owner may open one, and a booking can carry at most one
	// pending dispute.
	Create(ctx context.Context, bookingID, reason, raisedBy string) (*Dispute, error)

	GetByID(ctx context.Context, id, viewerID string, isAdmin bool) (*Dispute, error)
	List(ctx context.Context, filter Filter) ([]*Dispute, int, error)

	// Resolve settles a pending dispute. Admin-only.
	Resolve(ctx context.Context, id string, req ResolveRequest, adminID string) (*Dispute, error)
}

type service struct {
	repo        Repository
	bookingRepo booking.Repository
	unitRepo    unit.Repository
	txnRepo     payment.Repository
	refundRepo  refund.Repository
	refundSvc   refund.Service
	notifier    notification.Notifier
	tx          db.TxRunner
}

func NewService(
	repo Repository,
	bookingRepo booking.Repository,
	unitRepo unit.Repository,
	txnRepo payment.Repository,
	refundRepo refund.Repository,
	refundSvc refund.Service,
	notifier notification.Notifier,
	tx db.TxRunner,
) Service {
	return &service{
		repo:        repo,
		bookingRepo: bookingRepo,
		unitRepo:    unitRepo,
		txnRepo:     txnRepo,
		refundRepo:  refundRepo,
		refundSvc:   refundSvc,
		notifier:    notifier,
		tx:          tx,
	}
}

func (s *service) Create(ctx context.Context, bookingID, reason, raisedBy string) (*Dispute, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if raisedBy != b.RenterID && raisedBy != b.OwnerID {
		return nil, ErrPermissionDenied
	}
	if b.Status != booking.StatusActive {
		return nil, ErrNotDisputable
	}

	d := &Dispute{
		BookingID: b.ID,
		RaisedBy:  raisedBy,
		Reason:    reason,
		Status:    StatusPending,
	}

	err = s.tx.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.WithTx(tx).Create(ctx, d); err != nil {
			return err
		}
		return s.bookingRepo.WithTx(tx).UpdateStatus(ctx, b.ID, []booking.Status{booking.StatusActive}, booking.StatusDisputed)
	})
	if err != nil {
		if errors.Is(err, booking.ErrStatusConflict) {
			return nil, ErrNotDisputable
		}
		return nil, err
	}

	other := b.OwnerID
	if raisedBy == b.OwnerID {
		other = b.RenterID
	}
	s.notifier.Notify(ctx, notification.New{
		UserID:  other,
		Kind:    notification.KindDisputeOpened,
		Title:   "Dispute opened",
		Message: fmt.Sprintf("A dispute was opened on the booking for %s.", b.PropertyName),
		Payload: notification.DisputePayload{
			DisputeID: d.ID,
			BookingID: b.ID,
			Status:    string(d.Status),
		},
	})
	return d, nil
}

func (s *service) GetByID(ctx context.Context, id, viewerID string, isAdmin bool) (*Dispute, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if isAdmin {
		return d, nil
	}

	b, err := s.bookingRepo.GetByID(ctx, d.BookingID)
	if err != nil {
		return nil, err
	}
	if viewerID != b.RenterID && viewerID != b.OwnerID {
		return nil, ErrPermissionDenied
	}
	return d, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Dispute, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Resolve(ctx context.Context, id string, req ResolveRequest, adminID string) (*Dispute, error) {
	if req.BookingOutcome != booking.StatusCompleted && req.BookingOutcome != booking.StatusCancelled {
		return nil, ErrInvalidOutcome
	}
	// Money only moves in the complainant's favour.
	if req.RefundAmountMinor != nil && !req.Upheld {
		return nil, ErrRefundNotUpheld
	}

	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusPending {
		return nil, ErrAlreadyResolved
	}

	b, err := s.bookingRepo.GetByID(ctx, d.BookingID)
	if err != nil {
		return nil, err
	}

	// Validate any refund against the booking's settled payment before
	// touching anything.
	var paidTxn *payment.Transaction
	if req.RefundAmountMinor != nil {
		if *req.RefundAmountMinor <= 0 {
			return nil, refund.ErrInvalidAmount
		}
		paidTxn, err = s.txnRepo.GetCompletedByBooking(ctx, b.ID)
		if err != nil {
			if errors.Is(err, payment.ErrNotFound) {
				return nil, ErrNoPayment
			}
			return nil, err
		}
		refunded, err := s.refundRepo.SumProcessedByTransaction(ctx, paidTxn.ID)
		if err != nil {
			return nil, err
		}
		if *req.RefundAmountMinor+refunded > paidTxn.AmountMinor {
			return nil, ErrRefundTooLarge
		}
	}

	to := StatusResolved
	if !req.Upheld {
		to = StatusRejected
	}

	var createdRefund *refund.Refund
	err = s.tx.InTx(ctx, func(tx pgx.Tx) error {
		var refundID *string
		if paidTxn != nil {
			createdRefund = &refund.Refund{
				TransactionID: paidTxn.ID,
				BookingID:     b.ID,
				AmountMinor:   *req.RefundAmountMinor,
				Currency:      paidTxn.Currency,
				Status:        refund.StatusPending,
				Reason:        "dispute resolution",
				RequestedBy:   adminID,
			}
			if err := s.refundRepo.WithTx(tx).Create(ctx, createdRefund); err != nil {
				return err
			}
			refundID = &createdRefund.ID
		}

		if err := s.repo.WithTx(tx).Resolve(ctx, d.ID, to, req.Resolution, adminID, refundID); err != nil {
			return err
		}

		if err := s.bookingRepo.WithTx(tx).UpdateStatus(ctx, b.ID, []booking.Status{booking.StatusDisputed}, req.BookingOutcome); err != nil {
			return err
		}

		// Both outcomes end the booking, so the units go back on the market.
		return s.unitRepo.WithTx(tx).Release(ctx, b.UnitIDs)
	})
	if err != nil {
		return nil, err
	}

	d.Status = to
	d.Resolution = &req.Resolution
	d.ResolvedBy = &adminID
	if createdRefund != nil {
		d.RefundID = &createdRefund.ID
	}

	// The refund row is committed; issuing the money is a separate step so a
	// gateway outage cannot roll back the resolution. Failures leave the
	// refund retryable.
	if createdRefund != nil {
		if _, err := s.refundSvc.Process(ctx, createdRefund.ID, refund.ActionApprove, "dispute resolution", adminID); err != nil {
			log.Printf("dispute: process refund %s for dispute %s failed: %v", createdRefund.ID, d.ID, err)
		}
	}

	for _, userID := range []string{b.RenterID, b.OwnerID} {
		s.notifier.Notify(ctx, notification.New{
			UserID:  userID,
			Kind:    notification.KindDisputeResolved,
			Title:   "Dispute resolved",
			Message: fmt.Sprintf("The dispute on the booking for %s was %s.", b.PropertyName, d.Status),
			Payload: notification.DisputePayload{
				DisputeID:  d.ID,
				BookingID:  b.ID,
				Status:     string(d.Status),
				Resolution: req.Resolution,
			},
		})
	}
	return d, nil
}
