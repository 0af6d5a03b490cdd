package unit

import (
	"context"
	"fmt"
	"strings"

	"github.com/stayloop/rental-booking-backend/internal/property"
)

type CreateRequest struct {
	PropertyID string
	Label      string
	RateMinor  int64
}

type UpdateRequest struct {
	Label     *string
	RateMinor *int64
	Status    *string
}

// Service owns unit CRUD and the availability checks that guard against
// double-booking and unsafe reconfiguration.
type Service interface {
	Create(ctx context.Context, req CreateRequest, creatorID string, isAdmin bool) (*Unit, error)
	GetByID(ctx context.Context, id string) (*Unit, error)
	List(ctx context.Context, filter Filter) ([]*Unit, int, error)
	Update(ctx context.Context, id string, req UpdateRequest, updaterID string, isAdmin bool) (*Unit, error)
	Delete(ctx context.Context, id string, deleterID string, isAdmin bool) error

	// ValidateForBooking checks that every requested unit exists, is
	// available, and that all belong to the same active property. It returns
	// the loaded units, their property, and the full list of problems found
	// (empty when the selection is bookable).
	ValidateForBooking(ctx context.Context, unitIDs []string) ([]*Unit, *property.Property, []Issue, error)
}

type service struct {
	repo        Repository
	propService property.Service
}

func NewService(repo Repository, propService property.Service) Service {
	return &service{
		repo:        repo,
		propService: propService,
	}
}

func (s *service) checkOwner(ctx context.Context, propertyID, userID string, isAdmin bool) (*property.Property, error) {
	p, err := s.propService.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != userID && !isAdmin {
		return nil, ErrPermissionDenied
	}
	return p, nil
}

func (s *service) Create(ctx context.Context, req CreateRequest, creatorID string, isAdmin bool) (*Unit, error) {
	if strings.TrimSpace(req.Label) == "" {
		return nil, ErrLabelRequired
	}
	if req.RateMinor <= 0 {
		return nil, ErrInvalidRate
	}

	if _, err := s.checkOwner(ctx, req.PropertyID, creatorID, isAdmin); err != nil {
		return nil, err
	}

	u := &Unit{
		PropertyID: req.PropertyID,
		Label:      req.Label,
		RateMinor:  req.RateMinor,
		Status:     StatusAvailable,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Unit, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Unit, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest, updaterID string, isAdmin bool) (*Unit, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.checkOwner(ctx, u.PropertyID, updaterID, isAdmin); err != nil {
		return nil, err
	}

	if req.Label != nil {
		if strings.TrimSpace(*req.Label) == "" {
			return nil, ErrLabelRequired
		}
		u.Label = *req.Label
	}
	if req.RateMinor != nil {
		if *req.RateMinor <= 0 {
			return nil, ErrInvalidRate
		}
		u.RateMinor = *req.RateMinor
	}

	if req.Status != nil {
		st := Status(*req.Status)
		if st != StatusAvailable && st != StatusMaintenance {
			// rented is owned by the booking lifecycle and cannot be set by hand
			return nil, ErrInvalidStatus
		}
		if u.Status == StatusRented {
			return nil, ErrUnitRented
		}
		u.Status = st
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) Delete(ctx context.Context, id string, deleterID string, isAdmin bool) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.checkOwner(ctx, u.PropertyID, deleterID, isAdmin); err != nil {
		return err
	}

	if u.Status == StatusRented {
		return ErrUnitRented
	}

	open, err := s.repo.HasOpenBooking(ctx, id)
	if err != nil {
		return err
	}
	if open {
		return ErrUnitHasBookings
	}

	return s.repo.Delete(ctx, id)
}

func (s *service) ValidateForBooking(ctx context.Context, unitIDs []string) ([]*Unit, *property.Property, []Issue, error) {
	if len(unitIDs) == 0 {
		return nil, nil, nil, ErrNoUnits
	}

	units, err := s.repo.GetByIDs(ctx, unitIDs)
	if err != nil {
		return nil, nil, nil, err
	}

	byID := make(map[string]*Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}

	var issues []Issue

	for _, id := range unitIDs {
		u, ok := byID[id]
		if !ok {
			issues = append(issues, Issue{UnitID: id, Problem: "unit does not exist"})
			continue
		}
		if u.Status != StatusAvailable {
			issues = append(issues, Issue{UnitID: id, Problem: fmt.Sprintf("unit is %s", u.Status)})
		}
	}

	// All requested units must belong to one property.
	var propertyID string
	for _, u := range units {
		if propertyID == "" {
			propertyID = u.PropertyID
			continue
		}
		if u.PropertyID != propertyID {
			issues = append(issues, Issue{UnitID: u.ID, Problem: "unit belongs to a different property"})
		}
	}

	var prop *property.Property
	if propertyID != "" {
		prop, err = s.propService.GetByID(ctx, propertyID)
		if err != nil {
			return nil, nil, nil, err
		}
		if prop.Status != property.StatusActive {
			issues = append(issues, Issue{UnitID: "", Problem: "property is not active"})
		}
	}

	return units, prop, issues, nil
}
