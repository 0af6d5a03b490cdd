package refund

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
	Create(ctx context.Context, r *Refund) error
	GetByID(ctx context.Context, id string) (*Refund, error)
	List(ctx context.Context, filter Filter) ([]*Refund, int, error)

	// SumProcessedByTransaction returns the total amount already refunded
	// (processed) against the transaction.
	SumProcessedByTransaction(ctx context.Context, transactionID string) (int64, error)

	// MarkProcessed flips a pending or failed refund to processed. Zero rows
	// affected means a concurrent decision won; ErrAlreadyProcessed is
	// returned.
	MarkProcessed(ctx context.Context, id, processedBy string) error

	// MarkRejected flips a pending refund to rejected with the given reason.
	MarkRejected(ctx context.Context, id, processedBy, reason string) error

	// MarkFailed records a gateway failure; the refund stays retryable.
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

const refundColumns = "id, transaction_id, booking_id, amount_minor, currency, status, reason, requested_by, processed_by, processed_at, failure_reason, created_at, updated_at"

func (r *pgxRepository) Create(ctx context.Context, rf *Refund) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.refunds").
		Columns("transaction_id", "booking_id", "amount_minor", "currency", "status", "reason", "requested_by").
		Values(rf.TransactionID, rf.BookingID, rf.AmountMinor, rf.Currency, rf.Status, rf.Reason, rf.RequestedBy).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create refund query failed: %w", err)
	}

	return r.q.QueryRow(ctx, query, args...).
		Scan(&rf.ID, &rf.CreatedAt, &rf.UpdatedAt)
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Refund, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(refundColumns).
		From("public.refunds").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get refund query failed: %w", err)
	}

	row := r.q.QueryRow(ctx, query, args...)

	var rf Refund
	if err := row.Scan(
		&rf.ID, &rf.TransactionID, &rf.BookingID, &rf.AmountMinor, &rf.Currency, &rf.Status,
		&rf.Reason, &rf.RequestedBy, &rf.ProcessedBy, &rf.ProcessedAt, &rf.FailureReason,
		&rf.CreatedAt, &rf.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get refund failed: %w", err)
	}
	return &rf, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Refund, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(refundColumns, "count(*) OVER() as total_count").
		From("public.refunds")

	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.BookingID != "" {
		query = query.Where(squirrel.Eq{"booking_id": filter.BookingID})
	}

	query = query.OrderBy("created_at DESC")

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
		return nil, 0, fmt.Errorf("build list refunds query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list refunds failed: %w", err)
	}
	defer rows.Close()

	var refunds []*Refund
	var total int
	for rows.Next() {
		var rf Refund
		if err := rows.Scan(
			&rf.ID, &rf.TransactionID, &rf.BookingID, &rf.AmountMinor, &rf.Currency, &rf.Status,
			&rf.Reason, &rf.RequestedBy, &rf.ProcessedBy, &rf.ProcessedAt, &rf.FailureReason,
			&rf.CreatedAt, &rf.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan refund failed: %w", err)
		}
		refunds = append(refunds, &rf)
	}
	return refunds, total, nil
}

func (r *pgxRepository) SumProcessedByTransaction(ctx context.Context, transactionID string) (int64, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("coalesce(sum(amount_minor), 0)").
		From("public.refunds").
		Where(squirrel.Eq{"transaction_id": transactionID, "status": StatusProcessed}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sum refunds query failed: %w", err)
	}

	var total int64
	if err := r.q.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum refunds failed: %w", err)
	}
	return total, nil
}

func (r *pgxRepository) MarkProcessed(ctx context.Context, id, processedBy string) error {
	return r.decide(ctx, id, StatusProcessed, func(b squirrel.UpdateBuilder) squirrel.UpdateBuilder {
		return b.Set("processed_by", processedBy).
			Set("processed_at", squirrel.Expr("now()"))
	}, []Status{StatusPending, StatusFailed})
}

func (r *pgxRepository) MarkRejected(ctx context.Context, id, processedBy, reason string) error {
	return r.decide(ctx, id, StatusRejected, func(b squirrel.UpdateBuilder) squirrel.UpdateBuilder {
		return b.Set("processed_by", processedBy).
			Set("processed_at", squirrel.Expr("now()")).
			Set("reason", reason)
	}, []Status{StatusPending, StatusFailed})
}

func (r *pgxRepository) MarkFailed(ctx context.Context, id, reason string) error {
	return r.decide(ctx, id, StatusFailed, func(b squirrel.UpdateBuilder) squirrel.UpdateBuilder {
		return b.Set("failure_reason", reason)
	}, []Status{StatusPending})
}

func (r *pgxRepository) decide(ctx context.Context, id string, to Status, mutate func(squirrel.UpdateBuilder) squirrel.UpdateBuilder, from []Status) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	builder := psql.Update("public.refunds").
		Set("status", to).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"status": from})
	builder = mutate(builder)

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build refund decision query failed: %w", err)
	}

	ct, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("refund decision failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}
