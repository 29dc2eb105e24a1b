package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/pkg/apperrors"
)

var dialect = goqu.Dialect("postgres")

// =========== Window Repository ===========

type windowRepoPG struct{ pool db.Querier }

func NewWindowRepoPG(pool db.Querier) WindowRepository { return &windowRepoPG{pool: pool} }

func (r *windowRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

var windowCols = []interface{}{
	"id", "doctor_id", "hospital_id", "day_of_week",
	goqu.L("to_char(start_time, 'HH24:MI')"), goqu.L("to_char(end_time, 'HH24:MI')"),
	"slot_duration", "max_patients", "is_active", "created_at", "updated_at",
}

func scanWindow(row pgx.Row) (*Window, error) {
	var w Window
	if err := row.Scan(&w.ID, &w.DoctorID, &w.HospitalID, &w.DayOfWeek,
		&w.StartTime, &w.EndTime, &w.SlotDuration, &w.MaxPatients, &w.IsActive,
		&w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if w.StartTime, err = NormalizeTime(w.StartTime); err != nil {
		return nil, err
	}
	if w.EndTime, err = NormalizeTime(w.EndTime); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *windowRepoPG) Create(ctx context.Context, w *Window) error {
	w.ID = uuid.New()
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now

	query, args, err := dialect.Insert("availability_windows").Prepared(true).Rows(goqu.Record{
		"id":            w.ID,
		"doctor_id":     w.DoctorID,
		"hospital_id":   w.HospitalID,
		"day_of_week":   w.DayOfWeek,
		"start_time":    goqu.Cast(goqu.V(w.StartTime), "TIME"),
		"end_time":      goqu.Cast(goqu.V(w.EndTime), "TIME"),
		"slot_duration": w.SlotDuration,
		"max_patients":  w.MaxPatients,
		"is_active":     w.IsActive,
		"created_at":    w.CreatedAt,
		"updated_at":    w.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert availability window: %w", err)
	}
	if _, err := r.conn(ctx).Exec(ctx, query, args...); err != nil {
		return apperrors.Transient("failed to create availability window", err)
	}
	return nil
}

func (r *windowRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Window, error) {
	query, args, err := dialect.From("availability_windows").Prepared(true).
		Select(windowCols...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get availability window: %w", err)
	}
	w, err := scanWindow(r.conn(ctx).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("availability window")
	}
	if err != nil {
		return nil, apperrors.Transient("failed to get availability window", err)
	}
	return w, nil
}

func (r *windowRepoPG) Update(ctx context.Context, w *Window) error {
	w.UpdatedAt = time.Now().UTC()

	query, args, err := dialect.Update("availability_windows").Prepared(true).Set(goqu.Record{
		"day_of_week":   w.DayOfWeek,
		"start_time":    goqu.Cast(goqu.V(w.StartTime), "TIME"),
		"end_time":      goqu.Cast(goqu.V(w.EndTime), "TIME"),
		"slot_duration": w.SlotDuration,
		"max_patients":  w.MaxPatients,
		"is_active":     w.IsActive,
		"updated_at":    w.UpdatedAt,
	}).Where(goqu.Ex{"id": w.ID}).ToSQL()
	if err != nil {
		return fmt.Errorf("build update availability window: %w", err)
	}
	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return apperrors.Transient("failed to update availability window", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("availability window")
	}
	return nil
}

func (r *windowRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_windows WHERE id = $1`, id)
	if err != nil {
		return apperrors.Transient("failed to delete availability window", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("availability window")
	}
	return nil
}

func (r *windowRepoPG) List(ctx context.Context, f WindowFilter) ([]*Window, error) {
	ex := goqu.Ex{}
	if f.DoctorID != uuid.Nil {
		ex["doctor_id"] = f.DoctorID
	}
	if f.HospitalID != uuid.Nil {
		ex["hospital_id"] = f.HospitalID
	}
	if f.DayOfWeek != nil {
		ex["day_of_week"] = *f.DayOfWeek
	}
	if f.ActiveOnly {
		ex["is_active"] = true
	}

	query, args, err := dialect.From("availability_windows").Prepared(true).
		Select(windowCols...).
		Where(ex).
		Order(goqu.C("day_of_week").Asc(), goqu.C("start_time").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list availability windows: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Transient("failed to list availability windows", err)
	}
	defer rows.Close()

	var items []*Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, apperrors.Transient("failed to scan availability window", err)
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Transient("failed to list availability windows", err)
	}
	return items, nil
}

// =========== Blackout Repository ===========

type blackoutRepoPG struct{ pool db.Querier }

func NewBlackoutRepoPG(pool db.Querier) BlackoutRepository { return &blackoutRepoPG{pool: pool} }

func (r *blackoutRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const blackoutCols = `id, doctor_id, hospital_id, date, reason, created_at`

func scanBlackout(row pgx.Row) (*Blackout, error) {
	var b Blackout
	err := row.Scan(&b.ID, &b.DoctorID, &b.HospitalID, &b.Date, &b.Reason, &b.CreatedAt)
	return &b, err
}

func (r *blackoutRepoPG) Create(ctx context.Context, b *Blackout) error {
	b.ID = uuid.New()
	b.CreatedAt = time.Now().UTC()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO availability_blackouts (id, doctor_id, hospital_id, date, reason, created_at)
		VALUES ($1, $2, $3, $4::date, $5, $6)`,
		b.ID, b.DoctorID, b.HospitalID, FormatDate(b.Date), b.Reason, b.CreatedAt)
	if err != nil {
		return apperrors.Transient("failed to create blackout", err)
	}
	return nil
}

func (r *blackoutRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Blackout, error) {
	b, err := scanBlackout(r.conn(ctx).QueryRow(ctx,
		`SELECT `+blackoutCols+` FROM availability_blackouts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("blackout")
	}
	if err != nil {
		return nil, apperrors.Transient("failed to get blackout", err)
	}
	return b, nil
}

func (r *blackoutRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_blackouts WHERE id = $1`, id)
	if err != nil {
		return apperrors.Transient("failed to delete blackout", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("blackout")
	}
	return nil
}

func (r *blackoutRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Blackout, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+blackoutCols+` FROM availability_blackouts
		WHERE doctor_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date`, doctorID, FormatDate(from), FormatDate(to))
	if err != nil {
		return nil, apperrors.Transient("failed to list blackouts", err)
	}
	defer rows.Close()

	var items []*Blackout
	for rows.Next() {
		b, err := scanBlackout(rows)
		if err != nil {
			return nil, apperrors.Transient("failed to scan blackout", err)
		}
		items = append(items, b)
	}
	return items, rows.Err()
}
