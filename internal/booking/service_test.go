package booking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayloop/rental-booking-backend/internal/db"
	"github.com/stayloop/rental-booking-backend/internal/notification"
	"github.com/stayloop/rental-booking-backend/internal/payment"
	"github.com/stayloop/rental-booking-backend/internal/property"
	"github.com/stayloop/rental-booking-backend/internal/refund"
	"github.com/stayloop/rental-booking-backend/internal/unit"
)

// --- fakes ---

type fakeTxRunner struct{}

func (fakeTxRunner) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

var _ db.TxRunner = fakeTxRunner{}

type fakeRepo struct {
	seq      int
	bookings map[string]*Booking
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{bookings: map[string]*Booking{}}
}

func (r *fakeRepo) Create(ctx context.Context, b *Booking) error {
	r.seq++
	b.ID = fmt.Sprintf("bk-%d", r.seq)
	b.CreatedAt = time.Now()
	r.bookings[b.ID] = b
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*Booking, error) {
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy like the real repository does; handing out the stored
	// pointer lets UpdateStatus mutate the caller's view mid-flight.
	cp := *b
	return &cp, nil
}

func (r *fakeRepo) GetByIdempotencyKey(ctx context.Context, renterID, key string) (*Booking, error) {
	for _, b := range r.bookings {
		if b.RenterID == renterID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return b, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	var out []*Booking
	for _, b := range r.bookings {
		if filter.RenterID != "" && b.RenterID != filter.RenterID {
			continue
		}
		if filter.OwnerID != "" && b.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && string(b.Status) != filter.Status {
			continue
		}
		out = append(out, b)
	}
	return out, len(out), nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, id string, from []Status, to Status) error {
	b, ok := r.bookings[id]
	if !ok {
		return ErrStatusConflict
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			return nil
		}
	}
	return ErrStatusConflict
}

func (r *fakeRepo) AttachUnits(ctx context.Context, bookingID string, unitIDs []string) error {
	if b, ok := r.bookings[bookingID]; ok {
		b.UnitIDs = unitIDs
	}
	return nil
}

func (r *fakeRepo) UnitIDs(ctx context.Context, bookingID string) ([]string, error) {
	if b, ok := r.bookings[bookingID]; ok {
		return b.UnitIDs, nil
	}
	return nil, nil
}

func (r *fakeRepo) ExpirePending(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	for _, b := range r.bookings {
		if b.Status == StatusPendingPayment && b.CreatedAt.Before(cutoff) {
			b.Status = StatusExpired
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

func (r *fakeRepo) WithTx(tx pgx.Tx) Repository { return r }

type fakeUnitRepo struct {
	statuses map[string]unit.Status
}

func newFakeUnitRepo(available ...string) *fakeUnitRepo {
	r := &fakeUnitRepo{statuses: map[string]unit.Status{}}
	for _, id := range available {
		r.statuses[id] = unit.StatusAvailable
	}
	return r
}

func (r *fakeUnitRepo) Create(ctx context.Context, u *unit.Unit) error { return nil }
func (r *fakeUnitRepo) GetByID(ctx context.Context, id string) (*unit.Unit, error) {
	return nil, unit.ErrNotFound
}
func (r *fakeUnitRepo) GetByIDs(ctx context.Context, ids []string) ([]*unit.Unit, error) {
	return nil, nil
}
func (r *fakeUnitRepo) List(ctx context.Context, filter unit.Filter) ([]*unit.Unit, int, error) {
	return nil, 0, nil
}
func (r *fakeUnitRepo) Update(ctx context.Context, u *unit.Unit) error { return nil }
func (r *fakeUnitRepo) Delete(ctx context.Context, id string) error    { return nil }

func (r *fakeUnitRepo) ReserveAvailable(ctx context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if r.statuses[id] == unit.StatusAvailable {
			r.statuses[id] = unit.StatusRented
			n++
		}
	}
	return n, nil
}

func (r *fakeUnitRepo) Release(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if r.statuses[id] == unit.StatusRented {
			r.statuses[id] = unit.StatusAvailable
		}
	}
	return nil
}

func (r *fakeUnitRepo) HasOpenBooking(ctx context.Context, unitID string) (bool, error) {
	return false, nil
}

func (r *fakeUnitRepo) WithTx(tx pgx.Tx) unit.Repository { return r }

type fakeUnitService struct {
	units  []*unit.Unit
	prop   *property.Property
	issues []unit.Issue
}

func (s *fakeUnitService) Create(ctx context.Context, req unit.CreateRequest, creatorID string, isAdmin bool) (*unit.Unit, error) {
	return nil, nil
}
func (s *fakeUnitService) GetByID(ctx context.Context, id string) (*unit.Unit, error) {
	return nil, unit.ErrNotFound
}
func (s *fakeUnitService) List(ctx context.Context, filter unit.Filter) ([]*unit.Unit, int, error) {
	return nil, 0, nil
}
func (s *fakeUnitService) Update(ctx context.Context, id string, req unit.UpdateRequest, updaterID string, isAdmin bool) (*unit.Unit, error) {
	return nil, nil
}
func (s *fakeUnitService) Delete(ctx context.Context, id string, deleterID string, isAdmin bool) error {
	return nil
}

func (s *fakeUnitService) ValidateForBooking(ctx context.Context, unitIDs []string) ([]*unit.Unit, *property.Property, []unit.Issue, error) {
	return s.units, s.prop, s.issues, nil
}

type fakeTxnRepo struct {
	seq  int
	txns map[string]*payment.Transaction
}

func newFakeTxnRepo() *fakeTxnRepo {
	return &fakeTxnRepo{txns: map[string]*payment.Transaction{}}
}

func (r *fakeTxnRepo) Create(ctx context.Context, t *payment.Transaction) error {
	r.seq++
	t.ID = fmt.Sprintf("txn-%d", r.seq)
	r.txns[t.ID] = t
	return nil
}

func (r *fakeTxnRepo) GetByID(ctx context.Context, id string) (*payment.Transaction, error) {
	t, ok := r.txns[id]
	if !ok {
		return nil, payment.ErrNotFound
	}
	return t, nil
}

func (r *fakeTxnRepo) GetByReference(ctx context.Context, reference string) (*payment.Transaction, error) {
	for _, t := range r.txns {
		if t.Reference == reference {
			return t, nil
		}
	}
	return nil, payment.ErrNotFound
}

func (r *fakeTxnRepo) GetCompletedByBooking(ctx context.Context, bookingID string) (*payment.Transaction, error) {
	for _, t := range r.txns {
		if t.BookingID == bookingID && t.Type == payment.TypeRentPayment && t.Status == payment.StatusCompleted {
			return t, nil
		}
	}
	return nil, payment.ErrNotFound
}

func (r *fakeTxnRepo) ListByBooking(ctx context.Context, bookingID string) ([]*payment.Transaction, error) {
	return nil, nil
}

func (r *fakeTxnRepo) MarkCompleted(ctx context.Context, id, gatewayRef string) error {
	t, ok := r.txns[id]
	if !ok || (t.Status != payment.StatusPending && t.Status != payment.StatusHeld) {
		return payment.ErrAlreadySettled
	}
	t.Status = payment.StatusCompleted
	t.GatewayRef = &gatewayRef
	return nil
}

func (r *fakeTxnRepo) MarkFailed(ctx context.Context, id, reason string) error {
	t, ok := r.txns[id]
	if !ok || (t.Status != payment.StatusPending && t.Status != payment.StatusHeld) {
		return payment.ErrAlreadySettled
	}
	t.Status = payment.StatusFailed
	t.FailureReason = &reason
	return nil
}

func (r *fakeTxnRepo) WithTx(tx pgx.Tx) payment.Repository { return r }

type fakeRefundRepo struct {
	seq     int
	refunds map[string]*refund.Refund
}

func newFakeRefundRepo() *fakeRefundRepo {
	return &fakeRefundRepo{refunds: map[string]*refund.Refund{}}
}

func (r *fakeRefundRepo) Create(ctx context.Context, rf *refund.Refund) error {
	r.seq++
	rf.ID = fmt.Sprintf("rf-%d", r.seq)
	r.refunds[rf.ID] = rf
	return nil
}

func (r *fakeRefundRepo) GetByID(ctx context.Context, id string) (*refund.Refund, error) {
	rf, ok := r.refunds[id]
	if !ok {
		return nil, refund.ErrNotFound
	}
	return rf, nil
}

func (r *fakeRefundRepo) List(ctx context.Context, filter refund.Filter) ([]*refund.Refund, int, error) {
	return nil, 0, nil
}

func (r *fakeRefundRepo) SumProcessedByTransaction(ctx context.Context, transactionID string) (int64, error) {
	var total int64
	for _, rf := range r.refunds {
		if rf.TransactionID == transactionID && rf.Status == refund.StatusProcessed {
			total += rf.AmountMinor
		}
	}
	return total, nil
}

func (r *fakeRefundRepo) MarkProcessed(ctx context.Context, id, processedBy string) error {
	rf, ok := r.refunds[id]
	if !ok || (rf.Status != refund.StatusPending && rf.Status != refund.StatusFailed) {
		return refund.ErrAlreadyProcessed
	}
	rf.Status = refund.StatusProcessed
	return nil
}

func (r *fakeRefundRepo) MarkRejected(ctx context.Context, id, processedBy, reason string) error {
	rf, ok := r.refunds[id]
	if !ok || (rf.Status != refund.StatusPending && rf.Status != refund.StatusFailed) {
		return refund.ErrAlreadyProcessed
	}
	rf.Status = refund.StatusRejected
	rf.Reason = reason
	return nil
}

func (r *fakeRefundRepo) MarkFailed(ctx context.Context, id, reason string) error {
	rf, ok := r.refunds[id]
	if !ok || rf.Status != refund.StatusPending {
		return refund.ErrAlreadyProcessed
	}
	rf.Status = refund.StatusFailed
	rf.FailureReason = &reason
	return nil
}

func (r *fakeRefundRepo) WithTx(tx pgx.Tx) refund.Repository { return r }

type fakeGateway struct {
	initErr     error
	initCalls   int
	verify      *payment.VerifyResult
	verifyErr   error
	verifyCalls int
	refundErr   error
}

func (g *fakeGateway) InitiateCollection(ctx context.Context, req payment.CollectionRequest) (*payment.CollectionResponse, error) {
	g.initCalls++
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &payment.CollectionResponse{
		PaymentURL: "https://pay.example/" + req.Reference,
		Reference:  req.Reference,
	}, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, reference string) (*payment.VerifyResult, error) {
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.verify, nil
}

func (g *fakeGateway) IssueRefund(ctx context.Context, gatewayRef string, amountMinor int64) error {
	return g.refundErr
}

type fakeNotifier struct {
	sent []notification.New
}

func (n *fakeNotifier) Notify(ctx context.Context, msg notification.New) {
	n.sent = append(n.sent, msg)
}

func (n *fakeNotifier) kinds() []notification.Kind {
	var out []notification.Kind
	for _, msg := range n.sent {
		out = append(out, msg.Kind)
	}
	return out
}

// --- fixture ---

type fixture struct {
	repo       *fakeRepo
	unitRepo   *fakeUnitRepo
	txnRepo    *fakeTxnRepo
	refundRepo *fakeRefundRepo
	gateway    *fakeGateway
	notifier   *fakeNotifier
	svc        Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	prop := &property.Property{
		ID:         "p1",
		OwnerID:    "host",
		Name:       "Seaside Flats",
		RentPeriod: property.PeriodDaily,
		Currency:   "USD",
		Status:     property.StatusActive,
	}
	units := []*unit.Unit{
		{ID: "u1", PropertyID: "p1", RateMinor: 5000, Status: unit.StatusAvailable},
		{ID: "u2", PropertyID: "p1", RateMinor: 7000, Status: unit.StatusAvailable},
	}

	f := &fixture{
		repo:       newFakeRepo(),
		unitRepo:   newFakeUnitRepo("u1", "u2"),
		txnRepo:    newFakeTxnRepo(),
		refundRepo: newFakeRefundRepo(),
		gateway:    &fakeGateway{},
		notifier:   &fakeNotifier{},
	}
	f.svc = NewService(
		f.repo, f.unitRepo, &fakeUnitService{units: units, prop: prop},
		f.txnRepo, f.refundRepo, f.gateway, f.notifier,
		fakeTxRunner{}, nil, "https://api.example/v1/payments/confirm",
	)
	return f
}

func futureInput(unitIDs []string, periods int) CreateInput {
	return CreateInput{
		PropertyID: "p1",
		UnitIDs:    unitIDs,
		StartDate:  time.Now().Add(48 * time.Hour),
		Periods:    periods,
	}
}

// --- tests ---

func TestTwoStepFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Renter asks, units stay free until the host accepts.
	b, err := f.svc.CreateRequest(ctx, futureInput([]string{"u1", "u2"}, 3), "renter")
	require.NoError(t, err)
	assert.Equal(t, StatusRequested, b.Status)
	assert.Equal(t, int64((5000+7000)*3), b.AmountMinor)
	assert.Equal(t, unit.StatusAvailable, f.unitRepo.statuses["u1"])

	// Host accepts: units reserved, booking confirmed.
	b, err = f.svc.RespondToRequest(ctx, b.ID, "host", true)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, unit.StatusRented, f.unitRepo.statuses["u1"])
	assert.Equal(t, unit.StatusRented, f.unitRepo.statuses["u2"])

	// Renter pays.
	url, err := f.svc.PayForBooking(ctx, b.ID, "renter")
	require.NoError(t, err)
	assert.Contains(t, url, "https://pay.example/")

	var txn *payment.Transaction
	for _, candidate := range f.txnRepo.txns {
		txn = candidate
	}
	require.NotNil(t, txn)
	assert.Equal(t, payment.StatusPending, txn.Status)

	// Gateway confirms, booking activates.
	f.gateway.verify = &payment.VerifyResult{
		Status:      payment.VerifySuccess,
		AmountMinor: txn.AmountMinor,
		GatewayRef:  "gw-1",
	}
	b, err = f.svc.ConfirmPayment(ctx, txn.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, b.Status)
	assert.Equal(t, payment.StatusCompleted, txn.Status)

	assert.Contains(t, f.notifier.kinds(), notification.KindBookingRequested)
	assert.Contains(t, f.notifier.kinds(), notification.KindBookingResponded)
	assert.Contains(t, f.notifier.kinds(), notification.KindBookingPaid)
}

func TestRespondToRequest_RejectCancels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateRequest(ctx, futureInput([]string{"u1"}, 2), "renter")
	require.NoError(t, err)

	b, err = f.svc.RespondToRequest(ctx, b.ID, "host", false)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Equal(t, unit.StatusAvailable, f.unitRepo.statuses["u1"])
}

func TestRespondToRequest_OnlyOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateRequest(ctx, futureInput([]string{"u1"}, 2), "renter")
	require.NoError(t, err)

	_, err = f.svc.RespondToRequest(ctx, b.ID, "intruder", true)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.RespondToRequest(ctx, b.ID, "renter", true)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestRespondToRequest_NotRequested(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateRequest(ctx, futureInput([]string{"u1"}, 2), "renter")
	require.NoError(t, err)

	_, err = f.svc.RespondToRequest(ctx, b.ID, "host", true)
	require.NoError(t, err)

	// A second answer hits the status guard.
	_, err = f.svc.RespondToRequest(ctx, b.ID, "host", true)
	assert.ErrorIs(t, err, ErrNotRequested)
}

func TestDirectBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, url, err := f.svc.Create(ctx, futureInput([]string{"u1", "u2"}, 2), "renter")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPayment, b.Status)
	assert.Contains(t, url, "https://pay.example/")
	assert.Equal(t, unit.StatusRented, f.unitRepo.statuses["u1"])
	assert.Equal(t, unit.StatusRented, f.unitRepo.statuses["u2"])

	txn, err := f.txnRepo.GetByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, b.AmountMinor, txn.AmountMinor)

	f.gateway.verify = &payment.VerifyResult{
		Status:      payment.VerifySuccess,
		AmountMinor: txn.AmountMinor,
		GatewayRef:  "gw-1",
	}
	b, err = f.svc.ConfirmPayment(ctx, txn.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, b.Status)
}

func TestDirectBooking_UnitRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// u2 was grabbed by someone else between validation and reservation.
	f.unitRepo.statuses["u2"] = unit.StatusRented

	_, _, err := f.svc.Create(ctx, futureInput([]string{"u1", "u2"}, 2), "renter")
	assert.ErrorIs(t, err, ErrUnitUnavailable)
	assert.Equal(t, 0, f.gateway.initCalls)
}

func TestDirectBooking_GatewayInitFailureCompensates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gateway.initErr = fmt.Errorf("gateway down")

	_, _, err := f.svc.Create(ctx, futureInput([]string{"u1", "u2"}, 2), "renter")
	assert.ErrorIs(t, err, ErrPaymentInit)

	// Booking cancelled, transaction failed, units back on the market.
	b, err := f.repo.GetByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)

	txn, err := f.txnRepo.GetByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, txn.Status)

	assert.Equal(t, unit.StatusAvailable, f.unitRepo.statuses["u1"])
	assert.Equal(t, unit.StatusAvailable, f.unitRepo.statuses["u2"])
}

func TestCreate_UnitValidationIssues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prop := &property.Property{ID: "p1", OwnerID: "host", RentPeriod: property.PeriodDaily, Currency: "USD", Status: property.StatusActive}
	f.svc = NewService(
		f.repo, f.unitRepo,
		&fakeUnitService{prop: prop, issues: []unit.Issue{{UnitID: "u9", Problem: "unit does not exist"}}},
		f.txnRepo, f.refundRepo, f.gateway, f.notifier,
		fakeTxRunner{}, nil, "",
	)

	_, _, err := f.svc.Create(ctx, futureInput([]string{"u9"}, 2), "renter")

	var uve *UnitValidationError
	require.ErrorAs(t, err, &uve)
	assert.Len(t, uve.Issues, 1)
	assert.Empty(t, f.repo.bookings)
}

func TestCreate_IdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	key := "req-123"
	in := futureInput([]string{"u1"}, 2)
	in.IdempotencyKey = &key

	first, _, err := f.svc.Create(ctx, in, "renter")
	require.NoError(t, err)

	second, _, err := f.svc.Create(ctx, in, "renter")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.repo.bookings, 1)
	assert.Equal(t, 1, f.gateway.initCalls)
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Create(ctx, futureInput([]string{"u1"}, 2), "renter")
	require.NoError(t, err)

	txn, err := f.txnRepo.GetByID(ctx, "txn-1")
	require.NoError(t, err)

	f.gateway.verify = &payment.VerifyResult{
		Status:      payment.VerifySuccess,
		AmountMinor: txn.AmountMinor,
		GatewayRef:  "gw-1",
	}

	first, err := f.svc.ConfirmPayment(ctx, txn.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, first.Status)

	// Replay: no second verification, same outcome.
	second, err := f.svc.ConfirmPayment(ctx, txn.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, second.Status)
	assert.Equal(t, 1, f.gateway.verifyCalls)
}

func TestConfirmPayment_UnknownReference(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConfirmPayment(context.Background(), "no-such-ref")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestConfirmPayment_FailureCancelsDirectBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, _, err := f.svc.Create(ctx, futureInput([]string{"u1"}, 2), "renter")
	require.NoError(t, err)

	txn, err := f.txnRepo.GetByID(ctx, "txn-1")
	require.NoError(t, err)

	f.gateway.verify = &payment.VerifyResult{Status: payment.VerifyFailed, Reason: "card declined"}

	_, err = f.svc.ConfirmPayment(ctx, txn.Reference)
	assert.ErrorIs(t, err, ErrPaymentFailed)

	got, err := f.repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, unit.StatusAvailable, f.unitRepo.statuses["u1"])
}

func TestConfirmPayment_FailureKeepsConfirmedBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateRequest(ctx, futureInput([]string{"u1"}, 2), "renter")
	require.NoError(t, err)
	_, err = f.svc.RespondToRequest(ctx, b.ID, "host", true)
	require.NoError(t, err)
	_, err = f.svc.PayForBooking(ctx, b.ID, "renter")
	require.NoError(t, err)

	txn, err := f.txnRepo.GetByID(ctx, "txn-1")
	require.NoError(t, err)

	f.gateway.verify = &payment.VerifyResult{Status: payment.VerifyFailed, Reason: "card declined"}

	_, err = f.svc.ConfirmPayment(ctx, txn.Reference)
	assert.ErrorIs(t, err, ErrPaymentFailed)

	// The accepted reservation survives so the renter can retry.
	got, err := f.repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.Equal(t, unit.StatusRented, f.unitRepo.statuses["u1"])
}

func TestConfirmPayment_AmountMismatchFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Create(ctx, futureInput([]string{"u1"}, 2), "renter")
	require.NoError(t, err)

	txn, err := f.txnRepo.GetByID(ctx, "txn-1")
	require.NoError(t, err)

	f.gateway.verify = &payment.VerifyResult{
		Status:      payment.VerifySuccess,
		AmountMinor: txn.AmountMinor - 1,
		GatewayRef:  "gw-1",
	}

	_, err = f.svc.ConfirmPayment(ctx, txn.Reference)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Equal(t, payment.StatusFailed, txn.Status)
}

func activeBooking(t *testing.T, f *fixture) *Booking {
	t.Helper()
	ctx := context.Background()

	b, _, err := f.svc.Create(ctx, futureInput([]string{"u1", "u2"}, 2), "renter")
	require.NoError(t, err)

	txn, err := f.txnRepo.GetByID(ctx, "txn-1")
	require.NoError(t, err)

	f.gateway.verify = &payment.VerifyResult{
		Status:      payment.VerifySuccess,
		AmountMinor: txn.AmountMinor,
		GatewayRef:  "gw-1",
	}
	b, err = f.svc.ConfirmPayment(ctx, txn.Reference)
	require.NoError(t, err)
	require.Equal(t, StatusActive, b.Status)
	return b
}

func TestUpdateStatus_CancelPaidBookingCreatesRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := activeBooking(t, f)

	got, err := f.svc.UpdateStatus(ctx, b.ID, StatusCancelled, "renter", false)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, unit.StatusAvailable, f.unitRepo.statuses["u1"])

	require.Len(t, f.refundRepo.refunds, 1)
	for _, rf := range f.refundRepo.refunds {
		assert.Equal(t, refund.StatusPending, rf.Status)
		assert.Equal(t, b.AmountMinor, rf.AmountMinor)
		assert.Equal(t, b.ID, rf.BookingID)
	}
	assert.Contains(t, f.notifier.kinds(), notification.KindRefundCreated)
}

func TestUpdateStatus_CompleteByOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := activeBooking(t, f)

	got, err := f.svc.UpdateStatus(ctx, b.ID, StatusCompleted, "host", false)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, unit.StatusAvailable, f.unitRepo.statuses["u1"])
	assert.Empty(t, f.refundRepo.refunds)
}

func TestUpdateStatus_RenterCannotComplete(t *testing.T) {
	f := newFixture(t)

	b := activeBooking(t, f)

	_, err := f.svc.UpdateStatus(context.Background(), b.ID, StatusCompleted, "renter", false)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := activeBooking(t, f)

	_, err := f.svc.UpdateStatus(ctx, b.ID, StatusCompleted, "host", false)
	require.NoError(t, err)

	// Completed is terminal.
	_, err = f.svc.UpdateStatus(ctx, b.ID, StatusCancelled, "host", false)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestUpdateStatus_DisputedFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := activeBooking(t, f)
	require.NoError(t, f.repo.UpdateStatus(ctx, b.ID, []Status{StatusActive}, StatusDisputed))

	// Neither party nor an admin may settle a disputed booking here; only
	// dispute resolution moves it, otherwise the pending dispute is stranded.
	_, err := f.svc.UpdateStatus(ctx, b.ID, StatusCancelled, "renter", false)
	assert.ErrorIs(t, err, ErrDisputed)

	_, err = f.svc.UpdateStatus(ctx, b.ID, StatusCompleted, "admin", true)
	assert.ErrorIs(t, err, ErrDisputed)

	got, err := f.repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDisputed, got.Status)
}

func TestUpdateStatus_CancelRequestKeepsOtherReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Renter A asks for u1; a request reserves nothing.
	reqBooking, err := f.svc.CreateRequest(ctx, futureInput([]string{"u1"}, 2), "renter-a")
	require.NoError(t, err)
	require.Equal(t, unit.StatusAvailable, f.unitRepo.statuses["u1"])

	// Renter B direct-books the same unit in the meantime.
	_, _, err = f.svc.Create(ctx, futureInput([]string{"u1"}, 2), "renter-b")
	require.NoError(t, err)
	require.Equal(t, unit.StatusRented, f.unitRepo.statuses["u1"])

	// A withdraws the request. B's reservation must survive the cancellation.
	got, err := f.svc.UpdateStatus(ctx, reqBooking.ID, StatusCancelled, "renter-a", false)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, unit.StatusRented, f.unitRepo.statuses["u1"])
}

func TestGetByID_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateRequest(ctx, futureInput([]string{"u1"}, 2), "renter")
	require.NoError(t, err)

	_, err = f.svc.GetByID(ctx, b.ID, "renter", false)
	assert.NoError(t, err)

	_, err = f.svc.GetByID(ctx, b.ID, "host", false)
	assert.NoError(t, err)

	_, err = f.svc.GetByID(ctx, b.ID, "stranger", false)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.GetByID(ctx, b.ID, "stranger", true)
	assert.NoError(t, err)
}

func TestExpireStalePayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, _, err := f.svc.Create(ctx, futureInput([]string{"u1", "u2"}, 2), "renter")
	require.NoError(t, err)

	// Backdate past the payment TTL.
	f.repo.bookings[b.ID].CreatedAt = time.Now().Add(-time.Hour)

	n, err := f.svc.ExpireStalePayments(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
	assert.Equal(t, unit.StatusAvailable, f.unitRepo.statuses["u1"])
	assert.Contains(t, f.notifier.kinds(), notification.KindBookingExpired)
}

func TestExpireStalePayments_FreshBookingUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, _, err := f.svc.Create(ctx, futureInput([]string{"u1"}, 2), "renter")
	require.NoError(t, err)

	n, err := f.svc.ExpireStalePayments(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := f.repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPayment, got.Status)
}

func TestResolveTerm(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("daily periods derive end date", func(t *testing.T) {
		n, end, err := resolveTerm(property.PeriodDaily, start, nil, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, start.AddDate(0, 0, 3), *end)
	})

	t.Run("monthly end date derives periods", func(t *testing.T) {
		end := start.AddDate(0, 2, 0)
		n, _, err := resolveTerm(property.PeriodMonthly, start, &end, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("end before start rejected", func(t *testing.T) {
		end := start.AddDate(0, 0, -1)
		_, _, err := resolveTerm(property.PeriodDaily, start, &end, 0)
		assert.ErrorIs(t, err, ErrInvalidDates)
	})

	t.Run("missing term rejected", func(t *testing.T) {
		_, _, err := resolveTerm(property.PeriodDaily, start, nil, 0)
		assert.ErrorIs(t, err, ErrInvalidPeriods)
	})
}

func TestCreateRequest_PastStartDate(t *testing.T) {
	f := newFixture(t)

	in := futureInput([]string{"u1"}, 2)
	in.StartDate = time.Now().AddDate(0, 0, -2)

	_, err := f.svc.CreateRequest(context.Background(), in, "renter")
	assert.ErrorIs(t, err, ErrStartDatePast)
}
