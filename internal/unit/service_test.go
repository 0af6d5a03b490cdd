package unit

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayloop/rental-booking-backend/internal/property"
)

type fakeRepo struct {
	units        map[string]*Unit
	openBookings map[string]bool
	deleted      []string
}

func newFakeRepo(units ...*Unit) *fakeRepo {
	r := &fakeRepo{
		units:        map[string]*Unit{},
		openBookings: map[string]bool{},
	}
	for _, u := range units {
		r.units[u.ID] = u
	}
	return r
}

func (r *fakeRepo) Create(ctx context.Context, u *Unit) error {
	r.units[u.ID] = u
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*Unit, error) {
	u, ok := r.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (r *fakeRepo) GetByIDs(ctx context.Context, ids []string) ([]*Unit, error) {
	var found []*Unit
	for _, id := range ids {
		if u, ok := r.units[id]; ok {
			found = append(found, u)
		}
	}
	return found, nil
}

func (r *fakeRepo) List(ctx context.Context, filter Filter) ([]*Unit, int, error) {
	return nil, 0, nil
}

func (r *fakeRepo) Update(ctx context.Context, u *Unit) error {
	r.units[u.ID] = u
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.units[id]; !ok {
		return ErrNotFound
	}
	delete(r.units, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeRepo) ReserveAvailable(ctx context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if u, ok := r.units[id]; ok && u.Status == StatusAvailable {
			u.Status = StatusRented
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) Release(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if u, ok := r.units[id]; ok && u.Status == StatusRented {
			u.Status = StatusAvailable
		}
	}
	return nil
}

func (r *fakeRepo) HasOpenBooking(ctx context.Context, unitID string) (bool, error) {
	return r.openBookings[unitID], nil
}

func (r *fakeRepo) WithTx(tx pgx.Tx) Repository { return r }

type fakePropertyService struct {
	properties map[string]*property.Property
}

func (s *fakePropertyService) Create(ctx context.Context, req property.CreateRequest, ownerID string) (*property.Property, error) {
	return nil, nil
}

func (s *fakePropertyService) GetByID(ctx context.Context, id string) (*property.Property, error) {
	p, ok := s.properties[id]
	if !ok {
		return nil, property.ErrNotFound
	}
	return p, nil
}

func (s *fakePropertyService) List(ctx context.Context, filter property.Filter) ([]*property.Property, int, error) {
	return nil, 0, nil
}

func (s *fakePropertyService) Update(ctx context.Context, id string, req property.UpdateRequest, updaterID string, isAdmin bool) (*property.Property, error) {
	return nil, nil
}

func (s *fakePropertyService) Delete(ctx context.Context, id string, deleterID string, isAdmin bool) error {
	return nil
}

func activeProperty(id, ownerID string) *property.Property {
	return &property.Property{
		ID:         id,
		OwnerID:    ownerID,
		Name:       "Seaside Flats",
		RentPeriod: property.PeriodDaily,
		Currency:   "USD",
		Status:     property.StatusActive,
	}
}

func newTestService(repo *fakeRepo, props ...*property.Property) Service {
	ps := &fakePropertyService{properties: map[string]*property.Property{}}
	for _, p := range props {
		ps.properties[p.ID] = p
	}
	return NewService(repo, ps)
}

func TestValidateForBooking_AllBookable(t *testing.T) {
	repo := newFakeRepo(
		&Unit{ID: "u1", PropertyID: "p1", Label: "A", RateMinor: 5000, Status: StatusAvailable},
		&Unit{ID: "u2", PropertyID: "p1", Label: "B", RateMinor: 7000, Status: StatusAvailable},
	)
	svc := newTestService(repo, activeProperty("p1", "host"))

	units, prop, issues, err := svc.ValidateForBooking(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Len(t, units, 2)
	require.NotNil(t, prop)
	assert.Equal(t, "p1", prop.ID)
}

func TestValidateForBooking_AggregatesAllProblems(t *testing.T) {
	repo := newFakeRepo(
		&Unit{ID: "u1", PropertyID: "p1", Label: "A", RateMinor: 5000, Status: StatusRented},
		&Unit{ID: "u3", PropertyID: "p2", Label: "C", RateMinor: 9000, Status: StatusAvailable},
	)
	svc := newTestService(repo, activeProperty("p1", "host"))

	_, _, issues, err := svc.ValidateForBooking(context.Background(), []string{"u1", "u2", "u3"})
	require.NoError(t, err)

	// u1 rented, u2 missing, u3 belongs to another property: every problem
	// reported in one pass.
	require.Len(t, issues, 3)

	problems := map[string]string{}
	for _, issue := range issues {
		problems[issue.UnitID] = issue.Problem
	}
	assert.Contains(t, problems["u1"], "rented")
	assert.Contains(t, problems["u2"], "does not exist")
	assert.Contains(t, problems["u3"], "different property")
}

func TestValidateForBooking_InactiveProperty(t *testing.T) {
	prop := activeProperty("p1", "host")
	prop.Status = property.StatusInactive
	repo := newFakeRepo(
		&Unit{ID: "u1", PropertyID: "p1", Label: "A", RateMinor: 5000, Status: StatusAvailable},
	)
	svc := newTestService(repo, prop)

	_, _, issues, err := svc.ValidateForBooking(context.Background(), []string{"u1"})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Problem, "not active")
}

func TestValidateForBooking_NoUnits(t *testing.T) {
	svc := newTestService(newFakeRepo())

	_, _, _, err := svc.ValidateForBooking(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoUnits)
}

func TestDelete_RentedUnitRejected(t *testing.T) {
	repo := newFakeRepo(
		&Unit{ID: "u1", PropertyID: "p1", Label: "A", RateMinor: 5000, Status: StatusRented},
	)
	svc := newTestService(repo, activeProperty("p1", "host"))

	err := svc.Delete(context.Background(), "u1", "host", false)
	assert.ErrorIs(t, err, ErrUnitRented)
	assert.Empty(t, repo.deleted)
}

func TestDelete_OpenBookingRejected(t *testing.T) {
	repo := newFakeRepo(
		&Unit{ID: "u1", PropertyID: "p1", Label: "A", RateMinor: 5000, Status: StatusAvailable},
	)
	repo.openBookings["u1"] = true
	svc := newTestService(repo, activeProperty("p1", "host"))

	err := svc.Delete(context.Background(), "u1", "host", false)
	assert.ErrorIs(t, err, ErrUnitHasBookings)
	assert.Empty(t, repo.deleted)
}

func TestDelete_NotOwnerRejected(t *testing.T) {
	repo := newFakeRepo(
		&Unit{ID: "u1", PropertyID: "p1", Label: "A", RateMinor: 5000, Status: StatusAvailable},
	)
	svc := newTestService(repo, activeProperty("p1", "host"))

	err := svc.Delete(context.Background(), "u1", "someone-else", false)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUpdate_CannotHandSetRented(t *testing.T) {
	repo := newFakeRepo(
		&Unit{ID: "u1", PropertyID: "p1", Label: "A", RateMinor: 5000, Status: StatusAvailable},
	)
	svc := newTestService(repo, activeProperty("p1", "host"))

	rented := string(StatusRented)
	_, err := svc.Update(context.Background(), "u1", UpdateRequest{Status: &rented}, "host", false)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
