package refund

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/stayloop/rental-booking-backend/internal/notification"
	"github.com/stayloop/rental-booking-backend/internal/payment"
)

type CreateRequest struct {
	TransactionID string
	AmountMinor   int64
	Reason        string
}

// Service owns the refund lifecycle. Refunds are created pending against a
// settled transaction and only reach the gateway when an admin approves
// them. The gateway call happens before the status flip: if the provider
// rejects or times out, the refund is marked failed and can be retried
// instead of silently claiming money moved.
type Service interface {
	Create(ctx context.Context, req CreateRequest, requestedBy string) (*Refund, error)
	GetByID(ctx context.Context, id string) (*Refund, error)
	List(ctx context.Context, filter Filter) ([]*Refund, int, error)

	// Process applies an admin decision. Approving issues the refund through
	// the gateway; rejecting requires a reason.
	Process(ctx context.Context, id string, action Action, reason, processedBy string) (*Refund, error)
}

type service struct {
	repo     Repository
	txnRepo  payment.Repository
	gateway  payment.Gateway
	notifier notification.Notifier
}

func NewService(repo Repository, txnRepo payment.Repository, gateway payment.Gateway, notifier notification.Notifier) Service {
	return &service{
		repo:     repo,
		txnRepo:  txnRepo,
		gateway:  gateway,
		notifier: notifier,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest, requestedBy string) (*Refund, error) {
	if req.AmountMinor <= 0 {
		return nil, ErrInvalidAmount
	}

	txn, err := s.txnRepo.GetByID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status != payment.StatusCompleted && txn.Status != payment.StatusHeld {
		return nil, ErrNotRefundable
	}

	refunded, err := s.repo.SumProcessedByTransaction(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	if req.AmountMinor+refunded > txn.AmountMinor {
		return nil, ErrAmountExceeds
	}

	rf := &Refund{
		TransactionID: txn.ID,
		BookingID:     txn.BookingID,
		AmountMinor:   req.AmountMinor,
		Currency:      txn.Currency,
		Status:        StatusPending,
		Reason:        req.Reason,
		RequestedBy:   requestedBy,
	}
	if err := s.repo.Create(ctx, rf); err != nil {
		return nil, err
	}

	s.notify(ctx, txn.UserID, notification.KindRefundCreated, "Refund requested",
		fmt.Sprintf("A refund of %d %s is pending review.", rf.AmountMinor, rf.Currency), rf)
	return rf, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Refund, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Refund, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Process(ctx context.Context, id string, action Action, reason, processedBy string) (*Refund, error) {
	rf, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rf.Status != StatusPending && rf.Status != StatusFailed {
		return nil, ErrAlreadyProcessed
	}

	txn, err := s.txnRepo.GetByID(ctx, rf.TransactionID)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionApprove:
		if txn.GatewayRef == nil || *txn.GatewayRef == "" {
			return nil, ErrNotSettled
		}

		// Money moves first; only a successful gateway call flips the status.
		if err := s.gateway.IssueRefund(ctx, *txn.GatewayRef, rf.AmountMinor); err != nil {
			log.Printf("refund: issue refund %s failed: %v", rf.ID, err)
			if ferr := s.repo.MarkFailed(ctx, rf.ID, err.Error()); ferr != nil {
				log.Printf("refund: mark refund %s failed: %v", rf.ID, ferr)
			}
			return nil, ErrGateway
		}

		if err := s.repo.MarkProcessed(ctx, rf.ID, processedBy); err != nil {
			return nil, err
		}
		rf.Status = StatusProcessed

		s.notify(ctx, txn.UserID, notification.KindRefundProcessed, "Refund issued",
			fmt.Sprintf("Your refund of %d %s has been issued.", rf.AmountMinor, rf.Currency), rf)
		return rf, nil

	case ActionReject:
		if strings.TrimSpace(reason) == "" {
			return nil, ErrReasonRequired
		}
		if err := s.repo.MarkRejected(ctx, rf.ID, processedBy, reason); err != nil {
			return nil, err
		}
		rf.Status = StatusRejected
		rf.Reason = reason

		s.notify(ctx, txn.UserID, notification.KindRefundProcessed, "Refund rejected",
			fmt.Sprintf("Your refund request was rejected: %s", reason), rf)
		return rf, nil

	default:
		return nil, ErrInvalidAction
	}
}

func (s *service) notify(ctx context.Context, userID string, kind notification.Kind, title, message string, rf *Refund) {
	s.notifier.Notify(ctx, notification.New{
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Message: message,
		Payload: notification.RefundPayload{
			RefundID:      rf.ID,
			TransactionID: rf.TransactionID,
			AmountMinor:   rf.AmountMinor,
			Currency:      rf.Currency,
			Status:        string(rf.Status),
		},
	})
}
