package property

import (
	"context"
	"strings"
)

type CreateRequest struct {
	Name        string
	Address     string
	Description string
	RentPeriod  RentPeriod
	Currency    string
}

type UpdateRequest struct {
	Name        *string
	Address     *string
	Description *string
	Status      *string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest, ownerID string) (*Property, error)
	GetByID(ctx context.Context, id string) (*Property, error)
	List(ctx context.Context, filter Filter) ([]*Property, int, error)
	Update(ctx context.Context, id string, req UpdateRequest, updaterID string, isAdmin bool) (*Property, error)
	Delete(ctx context.Context, id string, deleterID string, isAdmin bool) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, req CreateRequest, ownerID string) (*Property, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrNameRequired
	}
	if req.RentPeriod != PeriodDaily && req.RentPeriod != PeriodMonthly {
		return nil, ErrInvalidPeriod
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	p := &Property{
		OwnerID:     ownerID,
		Name:        req.Name,
		Address:     req.Address,
		Description: req.Description,
		RentPeriod:  req.RentPeriod,
		Currency:    currency,
		Status:      StatusActive,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Property, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Property, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest, updaterID string, isAdmin bool) (*Property, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.OwnerID != updaterID && !isAdmin {
		return nil, ErrPermissionDenied
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, ErrNameRequired
		}
		p.Name = *req.Name
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
	if req.Description != nil {
		p.Description = *req.Description
	}

	if req.Status != nil {
		st := Status(*req.Status)
		if st != StatusActive && st != StatusInactive {
			return nil, ErrInvalidStatus
		}
		// Deactivating a property with open bookings would strand renters
		// mid-lifecycle, so it is blocked until those bookings settle.
		if st == StatusInactive && p.Status == StatusActive {
			busy, err := s.repo.HasActiveBookings(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			if busy {
				return nil, ErrHasActiveBooking
			}
		}
		p.Status = st
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) Delete(ctx context.Context, id string, deleterID string, isAdmin bool) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if p.OwnerID != deleterID && !isAdmin {
		return ErrPermissionDenied
	}

	busy, err := s.repo.HasActiveBookings(ctx, p.ID)
	if err != nil {
		return err
	}
	if busy {
		return ErrHasActiveBooking
	}

	return s.repo.Delete(ctx, id)
}
