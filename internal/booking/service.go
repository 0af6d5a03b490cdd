package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stayloop/rental-booking-backend/internal/cache"
	"github.com/stayloop/rental-booking-backend/internal/db"
	"github.com/stayloop/rental-booking-backend/internal/notification"
	"github.com/stayloop/rental-booking-backend/internal/payment"
	"github.com/stayloop/rental-booking-backend/internal/property"
	"github.com/stayloop/rental-booking-backend/internal/refund"
	"github.com/stayloop/rental-booking-backend/internal/unit"
)

// CreateInput describes a booking the renter wants, either as a request to
// the host or as a direct instant booking. The rental term may be given as a
// period count or an end date; the other is derived from the property's rent
// period.
type CreateInput struct {
	PropertyID     string
	UnitIDs        []string
	StartDate      time.Time
	EndDate        *time.Time
	Periods        int
	IdempotencyKey *string
}

// Service orchestrates the booking lifecycle: creation, host response,
// payment, activation, cancellation and expiry. Every transition goes through
// the legal-transition table and is applied with a compare-and-swap update so
// concurrent actors cannot double-apply one.
type Service interface {
	// CreateRequest creates a booking in requested state, awaiting the host.
	// Units are validated but not reserved until the host accepts.
	CreateRequest(ctx context.Context, req CreateInput, renterID string) (*Booking, error)

	// RespondToRequest lets the property owner accept or reject a requested
	// booking. Accepting reserves the units and moves it to confirmed.
	RespondToRequest(ctx context.Context, bookingID, hostID string, accept bool) (*Booking, error)

	// Create makes a direct booking: units are reserved immediately, a pending
	// transaction is recorded, and the returned URL takes the renter to the
	// payment gateway.
	Create(ctx context.Context, req CreateInput, renterID string) (*Booking, string, error)

	// PayForBooking starts payment collection for a confirmed (host-accepted)
	// booking and returns the gateway payment URL.
	PayForBooking(ctx context.Context, bookingID, renterID string) (string, error)

	// ConfirmPayment verifies a collection reference with the gateway and, on
	// success, settles the transaction and activates the booking. Safe to call
	// repeatedly with the same reference.
	ConfirmPayment(ctx context.Context, reference string) (*Booking, error)

	// UpdateStatus applies a caller-requested lifecycle transition (cancel,
	// complete). Cancelling a paid booking records a pending refund for the
	// full amount.
	UpdateStatus(ctx context.Context, bookingID string, to Status, userID string, isAdmin bool) (*Booking, error)

	GetByID(ctx context.Context, id, viewerID string, isAdmin bool) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)

	// ExpireStalePayments expires direct bookings that have sat unpaid longer
	// than olderThan, releasing their units. Returns how many were expired.
	ExpireStalePayments(ctx context.Context, olderThan time.Duration) (int, error)
}

type service struct {
	repo        Repository
	unitRepo    unit.Repository
	unitService unit.Service
	txnRepo     payment.Repository
	refundRepo  refund.Repository
	gateway     payment.Gateway
	notifier    notification.Notifier
	tx          db.TxRunner
	cache       *cache.Cache
	callbackURL string
}

func NewService(
	repo Repository,
	unitRepo unit.Repository,
	unitService unit.Service,
	txnRepo payment.Repository,
	refundRepo refund.Repository,
	gateway payment.Gateway,
	notifier notification.Notifier,
	tx db.TxRunner,
	c *cache.Cache,
	callbackURL string,
) Service {
	return &service{
		repo:        repo,
		unitRepo:    unitRepo,
		unitService: unitService,
		txnRepo:     txnRepo,
		refundRepo:  refundRepo,
		gateway:     gateway,
		notifier:    notifier,
		tx:          tx,
		cache:       c,
		callbackURL: callbackURL,
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// resolveTerm derives the missing half of (periods, end date) from the
// property's rent period. A provided period count wins over an end date.
func resolveTerm(period property.RentPeriod, start time.Time, end *time.Time, periods int) (int, *time.Time, error) {
	if periods > 0 {
		var until time.Time
		if period == property.PeriodMonthly {
			until = start.AddDate(0, periods, 0)
		} else {
			until = start.AddDate(0, 0, periods)
		}
		return periods, &until, nil
	}

	if end == nil {
		return 0, nil, ErrInvalidPeriods
	}
	if !end.After(start) {
		return 0, nil, ErrInvalidDates
	}

	var n int
	if period == property.PeriodMonthly {
		n = (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	} else {
		n = int(end.Sub(start).Hours() / 24)
	}
	if n <= 0 {
		return 0, nil, ErrInvalidDates
	}
	return n, end, nil
}

// prepare validates the input and builds an unsaved booking with its amount
// computed from the unit rates and the rental term.
func (s *service) prepare(ctx context.Context, req CreateInput, renterID string) (*Booking, *property.Property, error) {
	if req.StartDate.Before(startOfDay(time.Now())) {
		return nil, nil, ErrStartDatePast
	}

	units, prop, issues, err := s.unitService.ValidateForBooking(ctx, req.UnitIDs)
	if err != nil {
		return nil, nil, err
	}
	if len(issues) > 0 {
		return nil, nil, &UnitValidationError{Issues: issues}
	}
	if req.PropertyID != "" && req.PropertyID != prop.ID {
		return nil, nil, ErrPropertyMismatch
	}

	periods, end, err := resolveTerm(prop.RentPeriod, req.StartDate, req.EndDate, req.Periods)
	if err != nil {
		return nil, nil, err
	}

	var perPeriod int64
	for _, u := range units {
		perPeriod += u.RateMinor
	}

	b := &Booking{
		RenterID:       renterID,
		PropertyID:     prop.ID,
		PropertyName:   prop.Name,
		OwnerID:        prop.OwnerID,
		StartDate:      req.StartDate,
		EndDate:        end,
		Periods:        periods,
		AmountMinor:    int64(periods) * perPeriod,
		Currency:       prop.Currency,
		IdempotencyKey: req.IdempotencyKey,
		UnitIDs:        req.UnitIDs,
	}
	return b, prop, nil
}

// replay returns the booking previously created with the same idempotency
// key, if any.
func (s *service) replay(ctx context.Context, renterID string, key *string) (*Booking, error) {
	if key == nil || *key == "" {
		return nil, nil
	}
	existing, err := s.repo.GetByIdempotencyKey(ctx, renterID, *key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return existing, nil
}

func (s *service) invalidate(ctx context.Context) {
	s.cache.InvalidatePattern(ctx, "bookings:*")
}

func (s *service) CreateRequest(ctx context.Context, req CreateInput, renterID string) (*Booking, error) {
	if existing, err := s.replay(ctx, renterID, req.IdempotencyKey); existing != nil || err != nil {
		return existing, err
	}

	b, prop, err := s.prepare(ctx, req, renterID)
	if err != nil {
		return nil, err
	}
	b.Status = StatusRequested

	err = s.tx.InTx(ctx, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, b); err != nil {
			return err
		}
		return repo.AttachUnits(ctx, b.ID, req.UnitIDs)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.notifier.Notify(ctx, notification.New{
		UserID:  prop.OwnerID,
		Kind:    notification.KindBookingRequested,
		Title:   "New booking request",
		Message: fmt.Sprintf("You have a new booking request for %s.", prop.Name),
		Payload: s.payload(b),
	})
	return b, nil
}

func (s *service) RespondToRequest(ctx context.Context, bookingID, hostID string, accept bool) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != hostID {
		return nil, ErrPermissionDenied
	}
	if b.Status != StatusRequested {
		return nil, ErrNotRequested
	}

	if accept {
		err = s.tx.InTx(ctx, func(tx pgx.Tx) error {
			n, err := s.unitRepo.WithTx(tx).ReserveAvailable(ctx, b.UnitIDs)
			if err != nil {
				return err
			}
			if n != int64(len(b.UnitIDs)) {
				return ErrUnitUnavailable
			}
			return s.repo.WithTx(tx).UpdateStatus(ctx, b.ID, []Status{StatusRequested}, StatusConfirmed)
		})
		if err != nil {
			return nil, err
		}
		b.Status = StatusConfirmed
	} else {
		if err := s.repo.UpdateStatus(ctx, b.ID, []Status{StatusRequested}, StatusCancelled); err != nil {
			return nil, err
		}
		b.Status = StatusCancelled
	}

	s.invalidate(ctx)
	s.notifier.Notify(ctx, notification.New{
		UserID:  b.RenterID,
		Kind:    notification.KindBookingResponded,
		Title:   "Booking request answered",
		Message: fmt.Sprintf("Your booking request for %s is now %s.", b.PropertyName, b.Status),
		Payload: s.payload(b),
	})
	return b, nil
}

func (s *service) Create(ctx context.Context, req CreateInput, renterID string) (*Booking, string, error) {
	if existing, err := s.replay(ctx, renterID, req.IdempotencyKey); existing != nil || err != nil {
		return existing, "", err
	}

	b, prop, err := s.prepare(ctx, req, renterID)
	if err != nil {
		return nil, "", err
	}
	b.Status = StatusPendingPayment

	txn := &payment.Transaction{
		Type:        payment.TypeRentPayment,
		UserID:      renterID,
		PropertyID:  prop.ID,
		AmountMinor: b.AmountMinor,
		Currency:    b.Currency,
		Status:      payment.StatusPending,
		Reference:   uuid.NewString(),
		Gateway:     "http",
	}

	err = s.tx.InTx(ctx, func(tx pgx.Tx) error {
		n, err := s.unitRepo.WithTx(tx).ReserveAvailable(ctx, req.UnitIDs)
		if err != nil {
			return err
		}
		if n != int64(len(req.UnitIDs)) {
			return ErrUnitUnavailable
		}

		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, b); err != nil {
			return err
		}
		if err := repo.AttachUnits(ctx, b.ID, req.UnitIDs); err != nil {
			return err
		}

		txn.BookingID = b.ID
		return s.txnRepo.WithTx(tx).Create(ctx, txn)
	})
	if err != nil {
		return nil, "", err
	}

	resp, err := s.gateway.InitiateCollection(ctx, payment.CollectionRequest{
		Reference:   txn.Reference,
		AmountMinor: txn.AmountMinor,
		Currency:    txn.Currency,
		PayerRef:    renterID,
		CallbackURL: s.callbackURL,
	})
	if err != nil {
		log.Printf("booking: initiate collection for %s failed: %v", b.ID, err)
		s.compensateFailedInit(ctx, b, txn)
		return nil, "", ErrPaymentInit
	}

	s.invalidate(ctx)
	s.notifier.Notify(ctx, notification.New{
		UserID:  prop.OwnerID,
		Kind:    notification.KindBookingRequested,
		Title:   "New booking",
		Message: fmt.Sprintf("A renter booked %s and is completing payment.", prop.Name),
		Payload: s.payload(b),
	})
	return b, resp.PaymentURL, nil
}

// compensateFailedInit undoes a direct booking whose payment could never
// start: the transaction is failed, the booking cancelled and its units
// released. Best-effort; a stuck booking is still caught by the expiry sweep.
func (s *service) compensateFailedInit(ctx context.Context, b *Booking, txn *payment.Transaction) {
	err := s.tx.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.txnRepo.WithTx(tx).MarkFailed(ctx, txn.ID, "gateway initiation failed"); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).UpdateStatus(ctx, b.ID, []Status{StatusPendingPayment}, StatusCancelled); err != nil {
			return err
		}
		return s.unitRepo.WithTx(tx).Release(ctx, b.UnitIDs)
	})
	if err != nil {
		log.Printf("booking: compensate failed payment init for %s failed: %v", b.ID, err)
		return
	}
	s.invalidate(ctx)
}

func (s *service) PayForBooking(ctx context.Context, bookingID, renterID string) (string, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if b.RenterID != renterID {
		return "", ErrPermissionDenied
	}
	if b.Status != StatusConfirmed {
		return "", ErrNotPayable
	}

	txn := &payment.Transaction{
		Type:        payment.TypeRentPayment,
		BookingID:   b.ID,
		UserID:      renterID,
		PropertyID:  b.PropertyID,
		AmountMinor: b.AmountMinor,
		Currency:    b.Currency,
		Status:      payment.StatusPending,
		Reference:   uuid.NewString(),
		Gateway:     "http",
	}
	if err := s.txnRepo.Create(ctx, txn); err != nil {
		return "", err
	}

	resp, err := s.gateway.InitiateCollection(ctx, payment.CollectionRequest{
		Reference:   txn.Reference,
		AmountMinor: txn.AmountMinor,
		Currency:    txn.Currency,
		PayerRef:    renterID,
		CallbackURL: s.callbackURL,
	})
	if err != nil {
		log.Printf("booking: initiate collection for %s failed: %v", b.ID, err)
		if ferr := s.txnRepo.MarkFailed(ctx, txn.ID, "gateway initiation failed"); ferr != nil {
			log.Printf("booking: mark transaction %s failed: %v", txn.ID, ferr)
		}
		// The booking stays confirmed; the renter can retry payment.
		return "", ErrPaymentInit
	}
	return resp.PaymentURL, nil
}

func (s *service) ConfirmPayment(ctx context.Context, reference string) (*Booking, error) {
	txn, err := s.txnRepo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	b, err := s.repo.GetByID(ctx, txn.BookingID)
	if err != nil {
		return nil, err
	}

	// Replayed confirmation of an already settled payment is a no-op.
	if txn.Status == payment.StatusCompleted {
		return b, nil
	}

	result, err := s.gateway.VerifyPayment(ctx, reference)
	if err != nil {
		log.Printf("booking: verify payment %s failed: %v", reference, err)
		return nil, ErrPaymentVerify
	}

	switch result.Status {
	case payment.VerifyPending:
		return nil, ErrPaymentVerify

	case payment.VerifyFailed:
		return nil, s.handleFailedPayment(ctx, b, txn, result.Reason)

	case payment.VerifySuccess:
		if result.AmountMinor != txn.AmountMinor {
			reason := fmt.Sprintf("amount mismatch: gateway reported %d, expected %d", result.AmountMinor, txn.AmountMinor)
			return nil, s.handleFailedPayment(ctx, b, txn, reason)
		}

		err = s.tx.InTx(ctx, func(tx pgx.Tx) error {
			if err := s.txnRepo.WithTx(tx).MarkCompleted(ctx, txn.ID, result.GatewayRef); err != nil {
				return err
			}
			return s.repo.WithTx(tx).UpdateStatus(ctx, b.ID, []Status{StatusPendingPayment, StatusConfirmed}, StatusActive)
		})
		if errors.Is(err, payment.ErrAlreadySettled) {
			// A concurrent confirmation won; report its outcome.
			return s.repo.GetByID(ctx, b.ID)
		}
		if err != nil {
			return nil, err
		}
		b.Status = StatusActive

		s.invalidate(ctx)
		s.notifyBoth(ctx, b, notification.KindBookingPaid, "Booking paid",
			fmt.Sprintf("Payment for %s was received; the booking is now active.", b.PropertyName))
		return b, nil

	default:
		return nil, ErrPaymentVerify
	}
}

// handleFailedPayment records the failure and, for a direct booking that was
// never activated, cancels it and frees its units. A confirmed two-step
// booking keeps its reservation so the renter can retry.
func (s *service) handleFailedPayment(ctx context.Context, b *Booking, txn *payment.Transaction, reason string) error {
	if reason == "" {
		reason = "payment failed"
	}
	if err := s.txnRepo.MarkFailed(ctx, txn.ID, reason); err != nil && !errors.Is(err, payment.ErrAlreadySettled) {
		return err
	}

	if b.Status == StatusPendingPayment {
		err := s.tx.InTx(ctx, func(tx pgx.Tx) error {
			if err := s.repo.WithTx(tx).UpdateStatus(ctx, b.ID, []Status{StatusPendingPayment}, StatusCancelled); err != nil {
				return err
			}
			return s.unitRepo.WithTx(tx).Release(ctx, b.UnitIDs)
		})
		if err != nil && !errors.Is(err, ErrStatusConflict) {
			return err
		}
		s.invalidate(ctx)
		s.notifier.Notify(ctx, notification.New{
			UserID:  b.RenterID,
			Kind:    notification.KindBookingCancelled,
			Title:   "Booking cancelled",
			Message: fmt.Sprintf("Payment for %s failed and the booking was cancelled.", b.PropertyName),
			Payload: s.payload(b),
		})
	}
	return ErrPaymentFailed
}

func (s *service) UpdateStatus(ctx context.Context, bookingID string, to Status, userID string, isAdmin bool) (*Booking, error) {
	if !ValidStatus(to) {
		return nil, ErrInvalidStatus
	}

	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	// A disputed booking only moves through dispute resolution; letting anyone
	// settle it here would strand the pending dispute.
	if b.Status == StatusDisputed {
		return nil, ErrDisputed
	}

	if !isAdmin {
		switch userID {
		case b.RenterID:
			if to != StatusCancelled {
				return nil, ErrPermissionDenied
			}
		case b.OwnerID:
			if to != StatusCancelled && to != StatusCompleted {
				return nil, ErrPermissionDenied
			}
		default:
			return nil, ErrPermissionDenied
		}
	}

	if !CanTransition(b.Status, to) {
		return nil, ErrIllegalTransition
	}

	// Cancelling a paid booking owes the renter their money back.
	var paidTxn *payment.Transaction
	if to == StatusCancelled {
		paidTxn, err = s.txnRepo.GetCompletedByBooking(ctx, b.ID)
		if err != nil && !errors.Is(err, payment.ErrNotFound) {
			return nil, err
		}
	}

	var createdRefund *refund.Refund
	err = s.tx.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.WithTx(tx).UpdateStatus(ctx, b.ID, []Status{b.Status}, to); err != nil {
			return err
		}
		// Units are reserved from confirmed/pending_payment onward; a booking
		// cancelled straight out of requested never held any, and releasing
		// them would free another booking's reservation.
		if IsTerminal(to) && b.Status != StatusRequested {
			if err := s.unitRepo.WithTx(tx).Release(ctx, b.UnitIDs); err != nil {
				return err
			}
		}
		if paidTxn != nil {
			createdRefund = &refund.Refund{
				TransactionID: paidTxn.ID,
				BookingID:     b.ID,
				AmountMinor:   paidTxn.AmountMinor,
				Currency:      paidTxn.Currency,
				Status:        refund.StatusPending,
				Reason:        "booking cancelled",
				RequestedBy:   userID,
			}
			return s.refundRepo.WithTx(tx).Create(ctx, createdRefund)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.Status = to

	s.invalidate(ctx)

	kind := notification.KindBookingCancelled
	title := "Booking cancelled"
	message := fmt.Sprintf("The booking for %s was cancelled.", b.PropertyName)
	if to == StatusCompleted {
		kind = notification.KindBookingResponded
		title = "Booking completed"
		message = fmt.Sprintf("The booking for %s is complete.", b.PropertyName)
	}
	s.notifier.Notify(ctx, notification.New{
		UserID:  s.counterpart(b, userID),
		Kind:    kind,
		Title:   title,
		Message: message,
		Payload: s.payload(b),
	})
	if createdRefund != nil {
		s.notifier.Notify(ctx, notification.New{
			UserID:  b.RenterID,
			Kind:    notification.KindRefundCreated,
			Title:   "Refund requested",
			Message: fmt.Sprintf("A refund for %s is being processed.", b.PropertyName),
			Payload: notification.RefundPayload{
				RefundID:      createdRefund.ID,
				TransactionID: createdRefund.TransactionID,
				AmountMinor:   createdRefund.AmountMinor,
				Currency:      createdRefund.Currency,
				Status:        string(createdRefund.Status),
			},
		})
	}
	return b, nil
}

func (s *service) GetByID(ctx context.Context, id, viewerID string, isAdmin bool) (*Booking, error) {
	key := "bookings:id:" + id

	var cached Booking
	b := &cached
	if err := s.cache.GetJSON(ctx, key, b); err != nil {
		var repoErr error
		b, repoErr = s.repo.GetByID(ctx, id)
		if repoErr != nil {
			return nil, repoErr
		}
		s.cache.SetJSON(ctx, key, b)
	}

	if !isAdmin && viewerID != b.RenterID && viewerID != b.OwnerID {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) ExpireStalePayments(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	var expired []string
	err := s.tx.InTx(ctx, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		ids, err := repo.ExpirePending(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, id := range ids {
			unitIDs, err := repo.UnitIDs(ctx, id)
			if err != nil {
				return err
			}
			if err := s.unitRepo.WithTx(tx).Release(ctx, unitIDs); err != nil {
				return err
			}
		}
		expired = ids
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	s.invalidate(ctx)
	for _, id := range expired {
		b, err := s.repo.GetByID(ctx, id)
		if err != nil {
			log.Printf("booking: load expired booking %s failed: %v", id, err)
			continue
		}
		s.notifier.Notify(ctx, notification.New{
			UserID:  b.RenterID,
			Kind:    notification.KindBookingExpired,
			Title:   "Booking expired",
			Message: fmt.Sprintf("The booking for %s expired because payment was not completed in time.", b.PropertyName),
			Payload: s.payload(b),
		})
	}
	return len(expired), nil
}

func (s *service) counterpart(b *Booking, actorID string) string {
	if actorID == b.RenterID {
		return b.OwnerID
	}
	return b.RenterID
}

func (s *service) payload(b *Booking) notification.BookingPayload {
	return notification.BookingPayload{
		BookingID:   b.ID,
		PropertyID:  b.PropertyID,
		Status:      string(b.Status),
		AmountMinor: b.AmountMinor,
		Currency:    b.Currency,
	}
}

func (s *service) notifyBoth(ctx context.Context, b *Booking, kind notification.Kind, title, message string) {
	for _, userID := range []string{b.RenterID, b.OwnerID} {
		s.notifier.Notify(ctx, notification.New{
			UserID:  userID,
			Kind:    kind,
			Title:   title,
			Message: message,
			Payload: s.payload(b),
		})
	}
}
