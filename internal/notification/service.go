package notification

import (
	"context"
	"encoding/json"
	"log"
)

// Notifier is the fire-and-forget interface the booking, dispute and refund
// services use. Notify never returns an error: delivery problems are logged
// and must not fail or roll back the operation that triggered them.
type Notifier interface {
	Notify(ctx context.Context, n New)
}

type Service interface {
	Notifier
	List(ctx context.Context, filter Filter) ([]*Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type service struct {
	repo      Repository
	publisher Publisher // nil disables queue publishing
}

func NewService(repo Repository, publisher Publisher) Service {
	return &service{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *service) Notify(ctx context.Context, n New) {
	payload := json.RawMessage("{}")
	if n.Payload != nil {
		raw, err := json.Marshal(n.Payload)
		if err != nil {
			log.Printf("notification: marshal payload for kind %s failed: %v", n.Kind, err)
		} else {
			payload = raw
		}
	}

	row := &Notification{
		UserID:  n.UserID,
		Kind:    n.Kind,
		Title:   n.Title,
		Message: n.Message,
		Payload: payload,
	}

	if err := s.repo.Create(ctx, row); err != nil {
		log.Printf("notification: persist for user %s failed: %v", n.UserID, err)
		return
	}

	if s.publisher != nil {
		// Best-effort; the row is already persisted for in-app delivery.
		_ = s.publisher.Publish(ctx, row)
	}
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Notification, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) MarkRead(ctx context.Context, id, userID string) error {
	return s.repo.MarkRead(ctx, id, userID)
}
