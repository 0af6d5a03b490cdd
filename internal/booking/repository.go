package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stayloop/rental-booking-backend/internal/db"
)

type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByIdempotencyKey returns the renter's booking created with the given
	// key, or ErrNotFound when no such booking exists.
	GetByIdempotencyKey(ctx context.Context, renterID, key string) (*Booking, error)

	List(ctx context.Context, filter Filter) ([]*Booking, int, error)

	// UpdateStatus moves the booking to the target status only if its current
	// status is one of from. Zero rows affected means a concurrent transition
	// won the race; ErrStatusConflict is returned so the caller can re-read.
	UpdateStatus(ctx context.Context, id string, from []Status, to Status) error

	AttachUnits(ctx context.Context, bookingID string, unitIDs []string) error
	UnitIDs(ctx context.Context, bookingID string) ([]string, error)

	// ExpirePending flips every pending_payment booking created before cutoff
	// to expired and returns the affected ids.
	ExpirePending(ctx context.Context, cutoff time.Time) ([]string, error)

	// WithTx returns a Repository bound to the given transaction.
	WithTx(tx pgx.Tx) Repository
}

type pgxRepository struct {
	q db.Querier
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{q: pool}
}

func (r *pgxRepository) WithTx(tx pgx.Tx) Repository {
	return &pgxRepository{q: tx}
}

const bookingColumns = `b.id, b.renter_id, u.name as renter_name, b.property_id, p.name as property_name, p.owner_id,
	b.start_date, b.end_date, b.periods, b.amount_minor, b.currency, b.status, b.idempotency_key, b.created_at, b.updated_at`

func (r *pgxRepository) Create(ctx context.Context, b *Booking) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.bookings").
		Columns("renter_id", "property_id", "start_date", "end_date", "periods", "amount_minor", "currency", "status", "idempotency_key").
		Values(b.RenterID, b.PropertyID, b.StartDate, b.EndDate, b.Periods, b.AmountMinor, b.Currency, b.Status, b.IdempotencyKey).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	return r.q.QueryRow(ctx, query, args...).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	return r.getBy(ctx, squirrel.Eq{"b.id": id})
}

func (r *pgxRepository) GetByIdempotencyKey(ctx context.Context, renterID, key string) (*Booking, error) {
	return r.getBy(ctx, squirrel.Eq{"b.renter_id": renterID, "b.idempotency_key": key})
}

func (r *pgxRepository) getBy(ctx context.Context, cond squirrel.Eq) (*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(bookingColumns).
		From("public.bookings b").
		Join("public.users u ON b.renter_id = u.id").
		Join("public.properties p ON b.property_id = p.id").
		Where(cond).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	row := r.q.QueryRow(ctx, query, args...)

	var b Booking
	if err := row.Scan(
		&b.ID, &b.RenterID, &b.RenterName, &b.PropertyID, &b.PropertyName, &b.OwnerID,
		&b.StartDate, &b.EndDate, &b.Periods, &b.AmountMinor, &b.Currency,
		&b.Status, &b.IdempotencyKey, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}

	unitIDs, err := r.UnitIDs(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.UnitIDs = unitIDs

	return &b, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(bookingColumns, "count(*) OVER() as total_count").
		From("public.bookings b").
		Join("public.users u ON b.renter_id = u.id").
		Join("public.properties p ON b.property_id = p.id")

	if filter.RenterID != "" {
		query = query.Where(squirrel.Eq{"b.renter_id": filter.RenterID})
	}
	if filter.OwnerID != "" {
		query = query.Where(squirrel.Eq{"p.owner_id": filter.OwnerID})
	}
	if filter.PropertyID != "" {
		query = query.Where(squirrel.Eq{"b.property_id": filter.PropertyID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"b.status": filter.Status})
	}

	sortBy := "b.created_at"
	if filter.SortBy == "start_date" {
		sortBy = "b.start_date"
	}
	order := "DESC"
	if filter.SortOrder == "asc" {
		order = "ASC"
	}
	query = query.OrderBy(sortBy + " " + order)

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	var total int
	for rows.Next() {
		var b Booking
		if err := rows.Scan(
			&b.ID, &b.RenterID, &b.RenterName, &b.PropertyID, &b.PropertyName, &b.OwnerID,
			&b.StartDate, &b.EndDate, &b.Periods, &b.AmountMinor, &b.Currency,
			&b.Status, &b.IdempotencyKey, &b.CreatedAt, &b.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, &b)
	}

	return bookings, total, nil
}

func (r *pgxRepository) UpdateStatus(ctx context.Context, id string, from []Status, to Status) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.bookings").
		Set("status", to).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"status": from}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update booking status query failed: %w", err)
	}

	ct, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update booking status failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *pgxRepository) AttachUnits(ctx context.Context, bookingID string, unitIDs []string) error {
	if len(unitIDs) == 0 {
		return nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	builder := psql.Insert("public.booking_units").Columns("booking_id", "unit_id")
	for _, unitID := range unitIDs {
		builder = builder.Values(bookingID, unitID)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build attach units query failed: %w", err)
	}

	if _, err := r.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("attach units failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) UnitIDs(ctx context.Context, bookingID string) ([]string, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("unit_id").
		From("public.booking_units").
		Where(squirrel.Eq{"booking_id": bookingID}).
		OrderBy("unit_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build booking units query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get booking units failed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan booking unit failed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *pgxRepository) ExpirePending(ctx context.Context, cutoff time.Time) ([]string, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.bookings").
		Set("status", StatusExpired).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"status": StatusPendingPayment}).
		Where(squirrel.Lt{"created_at": cutoff}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build expire bookings query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("expire bookings failed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired booking failed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
