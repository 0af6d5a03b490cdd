package dispute

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayloop/rental-booking-backend/internal/booking"
	"github.com/stayloop/rental-booking-backend/internal/db"
	"github.com/stayloop/rental-booking-backend/internal/notification"
	"github.com/stayloop/rental-booking-backend/internal/payment"
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
	disputes map[string]*Dispute
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{disputes: map[string]*Dispute{}}
}

func (r *fakeRepo) Create(ctx context.Context, d *Dispute) error {
	for _, existing := range r.disputes {
		if existing.BookingID == d.BookingID && existing.Status == StatusPending {
			return ErrAlreadyDisputed
		}
	}
	r.seq++
	d.ID = fmt.Sprintf("dsp-%d", r.seq)
	d.CreatedAt = time.Now()
	r.disputes[d.ID] = d
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*Dispute, error) {
	d, ok := r.disputes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (r *fakeRepo) List(ctx context.Context, filter Filter) ([]*Dispute, int, error) {
	var out []*Dispute
	for _, d := range r.disputes {
		if filter.Status != "" && string(d.Status) != filter.Status {
			continue
		}
		if filter.RaisedBy != "" && d.RaisedBy != filter.RaisedBy {
			continue
		}
		out = append(out, d)
	}
	return out, len(out), nil
}

func (r *fakeRepo) Resolve(ctx context.Context, id string, to Status, resolution, resolvedBy string, refundID *string) error {
	d, ok := r.disputes[id]
	if !ok || d.Status != StatusPending {
		return ErrAlreadyResolved
	}
	now := time.Now()
	d.Status = to
	d.Resolution = &resolution
	d.ResolvedBy = &resolvedBy
	d.ResolvedAt = &now
	d.RefundID = refundID
	return nil
}

func (r *fakeRepo) WithTx(tx pgx.Tx) Repository { return r }

type fakeBookingRepo struct {
	bookings map[string]*booking.Booking
}

func (r *fakeBookingRepo) Create(ctx context.Context, b *booking.Booking) error { return nil }

func (r *fakeBookingRepo) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	b, ok := r.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return b, nil
}

func (r *fakeBookingRepo) GetByIdempotencyKey(ctx context.Context, renterID, key string) (*booking.Booking, error) {
	return nil, booking.ErrNotFound
}

func (r *fakeBookingRepo) List(ctx context.Context, filter booking.Filter) ([]*booking.Booking, int, error) {
	return nil, 0, nil
}

func (r *fakeBookingRepo) UpdateStatus(ctx context.Context, id string, from []booking.Status, to booking.Status) error {
	b, ok := r.bookings[id]
	if !ok {
		return booking.ErrStatusConflict
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			return nil
		}
	}
	return booking.ErrStatusConflict
}

func (r *fakeBookingRepo) AttachUnits(ctx context.Context, bookingID string, unitIDs []string) error {
	return nil
}

func (r *fakeBookingRepo) UnitIDs(ctx context.Context, bookingID string) ([]string, error) {
	return nil, nil
}

func (r *fakeBookingRepo) ExpirePending(ctx context.Context, cutoff time.Time) ([]string, error) {
	return nil, nil
}

func (r *fakeBookingRepo) WithTx(tx pgx.Tx) booking.Repository { return r }

type fakeUnitRepo struct {
	statuses map[string]unit.Status
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
	return 0, nil
}

func (r *fakeUnitRepo) Release(ctx context.Context, ids []string) error {
	for _, id := range ids {
		r.statuses[id] = unit.StatusAvailable
	}
	return nil
}

func (r *fakeUnitRepo) HasOpenBooking(ctx context.Context, unitID string) (bool, error) {
	return false, nil
}

func (r *fakeUnitRepo) WithTx(tx pgx.Tx) unit.Repository { return r }

type fakeTxnRepo struct {
	txns map[string]*payment.Transaction
}

func (r *fakeTxnRepo) Create(ctx context.Context, t *payment.Transaction) error { return nil }

func (r *fakeTxnRepo) GetByID(ctx context.Context, id string) (*payment.Transaction, error) {
	t, ok := r.txns[id]
	if !ok {
		return nil, payment.ErrNotFound
	}
	return t, nil
}

func (r *fakeTxnRepo) GetByReference(ctx context.Context, reference string) (*payment.Transaction, error) {
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

func (r *fakeTxnRepo) MarkCompleted(ctx context.Context, id, gatewayRef string) error { return nil }
func (r *fakeTxnRepo) MarkFailed(ctx context.Context, id, reason string) error        { return nil }
func (r *fakeTxnRepo) WithTx(tx pgx.Tx) payment.Repository                            { return r }

type fakeRefundRepo struct {
	seq     int
	refunds map[string]*refund.Refund
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
	refundErr   error
	refundCalls int
}

func (g *fakeGateway) InitiateCollection(ctx context.Context, req payment.CollectionRequest) (*payment.CollectionResponse, error) {
	return nil, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, reference string) (*payment.VerifyResult, error) {
	return nil, nil
}

func (g *fakeGateway) IssueRefund(ctx context.Context, gatewayRef string, amountMinor int64) error {
	g.refundCalls++
	return g.refundErr
}

type fakeNotifier struct {
	sent []notification.New
}

func (n *fakeNotifier) Notify(ctx context.Context, msg notification.New) {
	n.sent = append(n.sent, msg)
}

// --- fixture ---

type fixture struct {
	repo        *fakeRepo
	bookingRepo *fakeBookingRepo
	unitRepo    *fakeUnitRepo
	refundRepo  *fakeRefundRepo
	gateway     *fakeGateway
	notifier    *fakeNotifier
	svc         Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gwRef := "gw-1"
	txnRepo := &fakeTxnRepo{txns: map[string]*payment.Transaction{
		"txn-1": {
			ID:          "txn-1",
			Type:        payment.TypeRentPayment,
			BookingID:   "bk-1",
			UserID:      "renter",
			AmountMinor: 24000,
			Currency:    "USD",
			Status:      payment.StatusCompleted,
			GatewayRef:  &gwRef,
		},
	}}

	f := &fixture{
		repo: newFakeRepo(),
		bookingRepo: &fakeBookingRepo{bookings: map[string]*booking.Booking{
			"bk-1": {
				ID:           "bk-1",
				RenterID:     "renter",
				PropertyID:   "p1",
				PropertyName: "Seaside Flats",
				OwnerID:      "host",
				AmountMinor:  24000,
				Currency:     "USD",
				Status:       booking.StatusActive,
				UnitIDs:      []string{"u1", "u2"},
			},
		}},
		unitRepo: &fakeUnitRepo{statuses: map[string]unit.Status{
			"u1": unit.StatusRented,
			"u2": unit.StatusRented,
		}},
		refundRepo: &fakeRefundRepo{refunds: map[string]*refund.Refund{}},
		gateway:    &fakeGateway{},
		notifier:   &fakeNotifier{},
	}

	refundSvc := refund.NewService(f.refundRepo, txnRepo, f.gateway, f.notifier)
	f.svc = NewService(
		f.repo, f.bookingRepo, f.unitRepo, txnRepo, f.refundRepo,
		refundSvc, f.notifier, fakeTxRunner{},
	)
	return f
}

func (f *fixture) booking() *booking.Booking { return f.bookingRepo.bookings["bk-1"] }

// --- tests ---

func TestCreate_FreezesBooking(t *testing.T) {
	f := newFixture(t)

	d, err := f.svc.Create(context.Background(), "bk-1", "heating broken for a week", "renter")
	require.NoError(t, err)

	assert.Equal(t, StatusPending, d.Status)
	assert.Equal(t, booking.StatusDisputed, f.booking().Status)

	// The other party hears about it.
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "host", f.notifier.sent[0].UserID)
	assert.Equal(t, notification.KindDisputeOpened, f.notifier.sent[0].Kind)
}

func TestCreate_OwnerMayDispute(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), "bk-1", "property damaged", "host")
	require.NoError(t, err)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "renter", f.notifier.sent[0].UserID)
}

func TestCreate_NonParticipantRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), "bk-1", "whatever", "stranger")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCreate_ReasonRequired(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), "bk-1", "   ", "renter")
	assert.ErrorIs(t, err, ErrReasonRequired)
}

func TestCreate_OnlyActiveBookings(t *testing.T) {
	f := newFixture(t)
	f.booking().Status = booking.StatusCompleted

	_, err := f.svc.Create(context.Background(), "bk-1", "too late", "renter")
	assert.ErrorIs(t, err, ErrNotDisputable)
}

func TestCreate_SecondPendingRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "bk-1", "heating broken", "renter")
	require.NoError(t, err)

	// Status guard trips first now that the booking is disputed; force it back
	// to exercise the unique-index path.
	f.booking().Status = booking.StatusActive
	_, err = f.svc.Create(ctx, "bk-1", "still broken", "renter")
	assert.ErrorIs(t, err, ErrAlreadyDisputed)
}

func pendingDispute(t *testing.T, f *fixture) *Dispute {
	t.Helper()
	d, err := f.svc.Create(context.Background(), "bk-1", "heating broken for a week", "renter")
	require.NoError(t, err)
	return d
}

func TestResolve_UpheldWithRefund(t *testing.T) {
	f := newFixture(t)
	d := pendingDispute(t, f)

	amount := int64(12000)
	got, err := f.svc.Resolve(context.Background(), d.ID, ResolveRequest{
		Upheld:            true,
		Resolution:        "half the stay was unusable",
		BookingOutcome:    booking.StatusCancelled,
		RefundAmountMinor: &amount,
	}, "admin")
	require.NoError(t, err)

	assert.Equal(t, StatusResolved, got.Status)
	assert.Equal(t, booking.StatusCancelled, f.booking().Status)
	require.NotNil(t, got.RefundID)

	// Refund approved through the gateway right after the resolution commits.
	rf := f.refundRepo.refunds[*got.RefundID]
	require.NotNil(t, rf)
	assert.Equal(t, refund.StatusProcessed, rf.Status)
	assert.Equal(t, amount, rf.AmountMinor)
	assert.Equal(t, 1, f.gateway.refundCalls)

	// Units freed since both outcomes end the booking.
	assert.Equal(t, unit.StatusAvailable, f.unitRepo.statuses["u1"])
	assert.Equal(t, unit.StatusAvailable, f.unitRepo.statuses["u2"])
}

func TestResolve_GatewayFailureKeepsResolution(t *testing.T) {
	f := newFixture(t)
	d := pendingDispute(t, f)

	f.gateway.refundErr = fmt.Errorf("provider timeout")

	amount := int64(12000)
	got, err := f.svc.Resolve(context.Background(), d.ID, ResolveRequest{
		Upheld:            true,
		Resolution:        "half the stay was unusable",
		BookingOutcome:    booking.StatusCancelled,
		RefundAmountMinor: &amount,
	}, "admin")
	require.NoError(t, err)

	// The adjudication sticks; the refund stays retryable.
	assert.Equal(t, StatusResolved, got.Status)
	assert.Equal(t, booking.StatusCancelled, f.booking().Status)
	require.NotNil(t, got.RefundID)
	assert.Equal(t, refund.StatusFailed, f.refundRepo.refunds[*got.RefundID].Status)
}

func TestResolve_DismissedWithoutRefund(t *testing.T) {
	f := newFixture(t)
	d := pendingDispute(t, f)

	got, err := f.svc.Resolve(context.Background(), d.ID, ResolveRequest{
		Upheld:         false,
		Resolution:     "no evidence provided",
		BookingOutcome: booking.StatusCompleted,
	}, "admin")
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, got.Status)
	assert.Nil(t, got.RefundID)
	assert.Equal(t, booking.StatusCompleted, f.booking().Status)
	assert.Empty(t, f.refundRepo.refunds)
	assert.Zero(t, f.gateway.refundCalls)

	// Both parties are told.
	var resolved int
	for _, msg := range f.notifier.sent {
		if msg.Kind == notification.KindDisputeResolved {
			resolved++
		}
	}
	assert.Equal(t, 2, resolved)
}

func TestResolve_DismissedWithRefundRejected(t *testing.T) {
	f := newFixture(t)
	d := pendingDispute(t, f)

	// Dismissing the complaint while paying the complainant out is
	// contradictory; the combination is rejected before anything moves.
	amount := int64(12000)
	_, err := f.svc.Resolve(context.Background(), d.ID, ResolveRequest{
		Upheld:            false,
		Resolution:        "no evidence provided",
		BookingOutcome:    booking.StatusCompleted,
		RefundAmountMinor: &amount,
	}, "admin")
	assert.ErrorIs(t, err, ErrRefundNotUpheld)

	assert.Equal(t, StatusPending, f.repo.disputes[d.ID].Status)
	assert.Equal(t, booking.StatusDisputed, f.booking().Status)
	assert.Empty(t, f.refundRepo.refunds)
	assert.Zero(t, f.gateway.refundCalls)
}

func TestResolve_InvalidOutcome(t *testing.T) {
	f := newFixture(t)
	d := pendingDispute(t, f)

	_, err := f.svc.Resolve(context.Background(), d.ID, ResolveRequest{
		Upheld:         true,
		Resolution:     "note",
		BookingOutcome: booking.StatusActive,
	}, "admin")
	assert.ErrorIs(t, err, ErrInvalidOutcome)
}

func TestResolve_NoPayment(t *testing.T) {
	f := newFixture(t)

	// A dispute on a booking that never settled a payment.
	f.bookingRepo.bookings["bk-2"] = &booking.Booking{
		ID:       "bk-2",
		RenterID: "renter",
		OwnerID:  "host",
		Status:   booking.StatusActive,
		UnitIDs:  []string{"u1"},
	}
	d, err := f.svc.Create(context.Background(), "bk-2", "no heating", "renter")
	require.NoError(t, err)

	amount := int64(1000)
	_, err = f.svc.Resolve(context.Background(), d.ID, ResolveRequest{
		Upheld:            true,
		Resolution:        "note",
		BookingOutcome:    booking.StatusCancelled,
		RefundAmountMinor: &amount,
	}, "admin")
	assert.ErrorIs(t, err, ErrNoPayment)
}

func TestResolve_RefundTooLarge(t *testing.T) {
	f := newFixture(t)
	d := pendingDispute(t, f)

	// 20000 already refunded out of 24000.
	f.refundRepo.refunds["prior"] = &refund.Refund{
		ID:            "prior",
		TransactionID: "txn-1",
		AmountMinor:   20000,
		Status:        refund.StatusProcessed,
	}

	amount := int64(5000)
	_, err := f.svc.Resolve(context.Background(), d.ID, ResolveRequest{
		Upheld:            true,
		Resolution:        "note",
		BookingOutcome:    booking.StatusCancelled,
		RefundAmountMinor: &amount,
	}, "admin")
	assert.ErrorIs(t, err, ErrRefundTooLarge)

	// Nothing moved.
	assert.Equal(t, StatusPending, f.repo.disputes[d.ID].Status)
	assert.Equal(t, booking.StatusDisputed, f.booking().Status)
}

func TestResolve_AlreadyResolved(t *testing.T) {
	f := newFixture(t)
	d := pendingDispute(t, f)

	_, err := f.svc.Resolve(context.Background(), d.ID, ResolveRequest{
		Upheld:         false,
		Resolution:     "no evidence",
		BookingOutcome: booking.StatusCompleted,
	}, "admin")
	require.NoError(t, err)

	_, err = f.svc.Resolve(context.Background(), d.ID, ResolveRequest{
		Upheld:         true,
		Resolution:     "changed my mind",
		BookingOutcome: booking.StatusCancelled,
	}, "admin")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestGetByID_Visibility(t *testing.T) {
	f := newFixture(t)
	d := pendingDispute(t, f)
	ctx := context.Background()

	_, err := f.svc.GetByID(ctx, d.ID, "renter", false)
	assert.NoError(t, err)

	_, err = f.svc.GetByID(ctx, d.ID, "host", false)
	assert.NoError(t, err)

	_, err = f.svc.GetByID(ctx, d.ID, "stranger", false)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.GetByID(ctx, d.ID, "stranger", true)
	assert.NoError(t, err)
}
