package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medibook/medibook/internal/domain/availability"
	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/pkg/apperrors"
)

var dialect = goqu.Dialect("postgres")

type appointmentRepoPG struct{ pool db.Querier }

func NewAppointmentRepoPG(pool db.Querier) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

var apptCols = []interface{}{
	"id", "doctor_id", "hospital_id", "patient_id", "appointment_date",
	goqu.L("to_char(appointment_time, 'HH24:MI')"),
	"status", "reason_for_visit", "notes", "created_at", "updated_at",
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(&a.ID, &a.DoctorID, &a.HospitalID, &a.PatientID, &a.AppointmentDate,
		&a.AppointmentTime, &a.Status, &a.ReasonForVisit, &a.Notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	t, err := availability.NormalizeTime(a.AppointmentTime)
	if err != nil {
		return nil, err
	}
	a.AppointmentTime = t
	return &a, nil
}

func dateArg(d time.Time) interface{} {
	return goqu.Cast(goqu.V(availability.FormatDate(d)), "DATE")
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	query, args, err := dialect.Insert("appointments").Prepared(true).Rows(goqu.Record{
		"id":               a.ID,
		"doctor_id":        a.DoctorID,
		"hospital_id":      a.HospitalID,
		"patient_id":       a.PatientID,
		"appointment_date": dateArg(a.AppointmentDate),
		"appointment_time": goqu.Cast(goqu.V(a.AppointmentTime), "TIME"),
		"status":           a.Status,
		"reason_for_visit": a.ReasonForVisit,
		"notes":            a.Notes,
		"created_at":       a.CreatedAt,
		"updated_at":       a.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert appointment: %w", err)
	}
	if _, err := r.conn(ctx).Exec(ctx, query, args...); err != nil {
		return apperrors.Transient("failed to create appointment", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query, args, err := dialect.From("appointments").Prepared(true).
		Select(apptCols...).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get appointment: %w", err)
	}
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("appointment")
	}
	if err != nil {
		return nil, apperrors.Transient("failed to get appointment", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`, id, to, from)
	if err != nil {
		return apperrors.Transient("failed to update appointment status", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return apperrors.Transient("failed to update appointment status", err)
	}
	if !exists {
		return apperrors.NotFound("appointment")
	}
	return apperrors.Conflict(fmt.Sprintf("appointment is no longer %s", from))
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	var where []goqu.Expression
	if f.DoctorID != uuid.Nil {
		where = append(where, goqu.C("doctor_id").Eq(f.DoctorID))
	}
	if f.HospitalID != uuid.Nil {
		where = append(where, goqu.C("hospital_id").Eq(f.HospitalID))
	}
	if f.PatientID != uuid.Nil {
		where = append(where, goqu.C("patient_id").Eq(f.PatientID))
	}
	if f.Date != nil {
		where = append(where, goqu.C("appointment_date").Eq(dateArg(*f.Date)))
	}
	if f.Status != "" {
		where = append(where, goqu.C("status").Eq(f.Status))
	}

	base := dialect.From("appointments").Prepared(true).Where(where...)

	countSQL, countArgs, err := base.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count appointments: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, apperrors.Transient("failed to count appointments", err)
	}

	query, args, err := base.Select(apptCols...).
		Order(goqu.C("appointment_date").Asc(), goqu.C("appointment_time").Asc(), goqu.C("created_at").Asc()).
		Limit(uint(limit)).Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list appointments: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.Transient("failed to list appointments", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, apperrors.Transient("failed to scan appointment", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Transient("failed to list appointments", err)
	}
	return items, total, nil
}

func (r *appointmentRepoPG) BookedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	query, args, err := dialect.From("appointments").Prepared(true).
		Select(goqu.L("to_char(appointment_time, 'HH24:MI')")).
		Where(
			goqu.C("doctor_id").Eq(doctorID),
			goqu.C("appointment_date").Eq(dateArg(date)),
			goqu.C("status").In(activeStatuses),
		).
		Order(goqu.C("appointment_time").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build booked times: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Transient("failed to load booked times", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, apperrors.Transient("failed to scan booked time", err)
		}
		if t, err = availability.NormalizeTime(t); err != nil {
			return nil, apperrors.Transient("malformed booked time", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Transient("failed to load booked times", err)
	}
	return out, nil
}

func (r *appointmentRepoPG) CountActive(ctx context.Context, doctorID uuid.UUID, date time.Time, at string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2::date AND appointment_time = $3::time
			AND status IN ('pending', 'confirmed')`,
		doctorID, availability.FormatDate(date), at).Scan(&n)
	if err != nil {
		return 0, apperrors.Transient("failed to count booked appointments", err)
	}
	return n, nil
}
