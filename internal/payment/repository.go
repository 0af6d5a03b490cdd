package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stayloop/rental-booking-backend/internal/db"
)

type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id string) (*Transaction, error)
	GetByReference(ctx context.Context, reference string) (*Transaction, error)

	// GetCompletedByBooking returns the booking's completed payment
	// transaction, or ErrNotFound if the booking was never paid.
	GetCompletedByBooking(ctx context.Context, bookingID string) (*Transaction, error)

	ListByBooking(ctx context.Context, bookingID string) ([]*Transaction, error)

	// MarkCompleted flips a pending transaction to completed, stamping the
	// gateway reference and processed time. Zero rows affected means the
	// transaction was not pending (already settled or failed).
	MarkCompleted(ctx context.Context, id, gatewayRef string) error

	// MarkFailed flips a pending transaction to failed with a reason.
	MarkFailed(ctx context.Context, id, reason string) error

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

const txnColumns = "id, type, booking_id, user_id, property_id, amount_minor, currency, status, reference, gateway, gateway_ref, failure_reason, processed_at, created_at, updated_at"

func (r *pgxRepository) Create(ctx context.Context, t *Transaction) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.transactions").
		Columns("type", "booking_id", "user_id", "property_id", "amount_minor", "currency", "status", "reference", "gateway").
		Values(t.Type, t.BookingID, t.UserID, t.PropertyID, t.AmountMinor, t.Currency, t.Status, t.Reference, t.Gateway).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create transaction query failed: %w", err)
	}

	return r.q.QueryRow(ctx, query, args...).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Transaction, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

func (r *pgxRepository) GetByReference(ctx context.Context, reference string) (*Transaction, error) {
	return r.getBy(ctx, squirrel.Eq{"reference": reference})
}

func (r *pgxRepository) GetCompletedByBooking(ctx context.Context, bookingID string) (*Transaction, error) {
	return r.getBy(ctx, squirrel.Eq{
		"booking_id": bookingID,
		"type":       TypeRentPayment,
		"status":     StatusCompleted,
	})
}

func (r *pgxRepository) getBy(ctx context.Context, cond squirrel.Eq) (*Transaction, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(txnColumns).
		From("public.transactions").
		Where(cond).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get transaction query failed: %w", err)
	}

	row := r.q.QueryRow(ctx, query, args...)

	var t Transaction
	if err := row.Scan(
		&t.ID, &t.Type, &t.BookingID, &t.UserID, &t.PropertyID, &t.AmountMinor, &t.Currency,
		&t.Status, &t.Reference, &t.Gateway, &t.GatewayRef, &t.FailureReason,
		&t.ProcessedAt, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction failed: %w", err)
	}
	return &t, nil
}

func (r *pgxRepository) ListByBooking(ctx context.Context, bookingID string) ([]*Transaction, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(txnColumns).
		From("public.transactions").
		Where(squirrel.Eq{"booking_id": bookingID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list transactions query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions failed: %w", err)
	}
	defer rows.Close()

	var txns []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.Type, &t.BookingID, &t.UserID, &t.PropertyID, &t.AmountMinor, &t.Currency,
			&t.Status, &t.Reference, &t.Gateway, &t.GatewayRef, &t.FailureReason,
			&t.ProcessedAt, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction failed: %w", err)
		}
		txns = append(txns, &t)
	}
	return txns, nil
}

func (r *pgxRepository) MarkCompleted(ctx context.Context, id, gatewayRef string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.transactions").
		Set("status", StatusCompleted).
		Set("gateway_ref", gatewayRef).
		Set("processed_at", squirrel.Expr("now()")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"status": []Status{StatusPending, StatusHeld}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark completed query failed: %w", err)
	}

	ct, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark completed failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadySettled
	}
	return nil
}

func (r *pgxRepository) MarkFailed(ctx context.Context, id, reason string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.transactions").
		Set("status", StatusFailed).
		Set("failure_reason", reason).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"status": []Status{StatusPending, StatusHeld}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark failed query failed: %w", err)
	}

	ct, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark failed failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadySettled
	}
	return nil
}
