package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stayloop/rental-booking-backend/internal/db"
)

type Repository interface {
	// Create inserts a pending dispute. A partial unique index on
	// (booking_id) WHERE status = 'pending' enforces at most one open dispute
	// per booking; a violation is reported as ErrAlreadyDisputed.
	Create(ctx context.Context, d *Dispute) error

	GetByID(ctx context.Context, id string) (*Dispute, error)
	List(ctx context.Context, filter Filter) ([]*Dispute, int, error)

	// Resolve flips a pending dispute to its final status, recording the
	// admin, the note and the refund created by the resolution (if any).
	// Zero rows affected means another admin resolved it first.
	Resolve(ctx context.Context, id string, to Status, resolution, resolvedBy string, refundID *string) error

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

const disputeColumns = "id, booking_id, raised_by, reason, status, resolution, resolved_by, resolved_at, refund_id, created_at, updated_at"

func (r *pgxRepository) Create(ctx context.Context, d *Dispute) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.disputes").
		Columns("booking_id", "raised_by", "reason", "status").
		Values(d.BookingID, d.RaisedBy, d.Reason, d.Status).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create dispute query failed: %w", err)
	}

	if err := r.q.QueryRow(ctx, query, args...).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrAlreadyDisputed
		}
		return fmt.Errorf("create dispute failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Dispute, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(disputeColumns).
		From("public.disputes").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get dispute query failed: %w", err)
	}

	row := r.q.QueryRow(ctx, query, args...)

	var d Dispute
	if err := row.Scan(
		&d.ID, &d.BookingID, &d.RaisedBy, &d.Reason, &d.Status,
		&d.Resolution, &d.ResolvedBy, &d.ResolvedAt, &d.RefundID,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get dispute failed: %w", err)
	}
	return &d, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Dispute, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(disputeColumns, "count(*) OVER() as total_count").
		From("public.disputes")

	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.BookingID != "" {
		query = query.Where(squirrel.Eq{"booking_id": filter.BookingID})
	}
	if filter.RaisedBy != "" {
		query = query.Where(squirrel.Eq{"raised_by": filter.RaisedBy})
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
		return nil, 0, fmt.Errorf("build list disputes query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list disputes failed: %w", err)
	}
	defer rows.Close()

	var disputes []*Dispute
	var total int
	for rows.Next() {
		var d Dispute
		if err := rows.Scan(
			&d.ID, &d.BookingID, &d.RaisedBy, &d.Reason, &d.Status,
			&d.Resolution, &d.ResolvedBy, &d.ResolvedAt, &d.RefundID,
			&d.CreatedAt, &d.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan dispute failed: %w", err)
		}
		disputes = append(disputes, &d)
	}
	return disputes, total, nil
}

func (r *pgxRepository) Resolve(ctx context.Context, id string, to Status, resolution, resolvedBy string, refundID *string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.disputes").
		Set("status", to).
		Set("resolution", resolution).
		Set("resolved_by", resolvedBy).
		Set("resolved_at", squirrel.Expr("now()")).
		Set("refund_id", refundID).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"status": StatusPending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build resolve dispute query failed: %w", err)
	}

	ct, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("resolve dispute failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadyResolved
	}
	return nil
}
