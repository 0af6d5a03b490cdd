package unit

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
	Create(ctx context.Context, u *Unit) error
	GetByID(ctx context.Context, id string) (*Unit, error)
	GetByIDs(ctx context.Context, ids []string) ([]*Unit, error)
	List(ctx context.Context, filter Filter) ([]*Unit, int, error)
	Update(ctx context.Context, u *Unit) error
	Delete(ctx context.Context, id string) error

	// ReserveAvailable atomically flips the given units from available to
	// rented and returns how many rows changed. A count lower than len(ids)
	// means another booking claimed at least one unit first; the caller must
	// roll back and report a conflict.
	ReserveAvailable(ctx context.Context, ids []string) (int64, error)

	// Release flips rented units back to available.
	Release(ctx context.Context, ids []string) error

	// HasOpenBooking reports whether the unit is attached to a booking in a
	// non-terminal state. Used to guard unit deletion.
	HasOpenBooking(ctx context.Context, unitID string) (bool, error)

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

const unitColumns = "id, property_id, label, rate_minor, status, created_at, updated_at"

func (r *pgxRepository) Create(ctx context.Context, u *Unit) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.units").
		Columns("property_id", "label", "rate_minor", "status").
		Values(u.PropertyID, u.Label, u.RateMinor, u.Status).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create unit query failed: %w", err)
	}

	return r.q.QueryRow(ctx, query, args...).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Unit, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(unitColumns).
		From("public.units").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get unit query failed: %w", err)
	}

	row := r.q.QueryRow(ctx, query, args...)

	var u Unit
	if err := row.Scan(&u.ID, &u.PropertyID, &u.Label, &u.RateMinor, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get unit failed: %w", err)
	}
	return &u, nil
}

func (r *pgxRepository) GetByIDs(ctx context.Context, ids []string) ([]*Unit, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(unitColumns).
		From("public.units").
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get units query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get units failed: %w", err)
	}
	defer rows.Close()

	var units []*Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.PropertyID, &u.Label, &u.RateMinor, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan unit failed: %w", err)
		}
		units = append(units, &u)
	}

	return units, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Unit, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(unitColumns, "count(*) OVER() as total_count").
		From("public.units")

	if filter.PropertyID != "" {
		query = query.Where(squirrel.Eq{"property_id": filter.PropertyID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}

	query = query.OrderBy("label ASC")

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
		return nil, 0, fmt.Errorf("build list units query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list units failed: %w", err)
	}
	defer rows.Close()

	var units []*Unit
	var total int
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.PropertyID, &u.Label, &u.RateMinor, &u.Status, &u.CreatedAt, &u.UpdatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan unit failed: %w", err)
		}
		units = append(units, &u)
	}

	return units, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, u *Unit) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.units").
		Set("label", u.Label).
		Set("rate_minor", u.RateMinor).
		Set("status", u.Status).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": u.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update unit query failed: %w", err)
	}

	ct, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update unit failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) Delete(ctx context.Context, id string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Delete("public.units").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete unit query failed: %w", err)
	}

	ct, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete unit failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) ReserveAvailable(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.units").
		Set("status", StatusRented).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": ids}).
		Where(squirrel.Eq{"status": StatusAvailable}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reserve units query failed: %w", err)
	}

	ct, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reserve units failed: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *pgxRepository) Release(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.units").
		Set("status", StatusAvailable).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": ids}).
		Where(squirrel.Eq{"status": StatusRented}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release units query failed: %w", err)
	}

	if _, err := r.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("release units failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) HasOpenBooking(ctx context.Context, unitID string) (bool, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	subQuery := psql.Select("1").
		From("public.booking_units bu").
		Join("public.bookings b ON bu.booking_id = b.id").
		Where(squirrel.Eq{"bu.unit_id": unitID}).
		Where(squirrel.NotEq{"b.status": []string{"completed", "cancelled", "expired"}})

	sql, args, err := subQuery.ToSql()
	if err != nil {
		return false, fmt.Errorf("build open booking query failed: %w", err)
	}

	query := "SELECT EXISTS (" + sql + ")"

	var exists bool
	if err := r.q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check open booking failed: %w", err)
	}
	return exists, nil
}
