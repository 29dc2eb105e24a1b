package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/pkg/apperrors"
)

type repoPG struct{ pool db.Querier }

func NewRepoPG(pool db.Querier) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const doctorCols = `d.id, d.full_name, d.specialization, d.consultation_fee::float8, d.bio, d.photo_url`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FullName, &d.Specialization, &d.ConsultationFee, &d.Bio, &d.PhotoURL)
	return &d, err
}

func (r *repoPG) GetHospital(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	var h Hospital
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, address, phone FROM hospitals WHERE id = $1`, id).
		Scan(&h.ID, &h.Name, &h.Address, &h.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("hospital")
	}
	if err != nil {
		return nil, apperrors.Transient("failed to get hospital", err)
	}
	return &h, nil
}

func (r *repoPG) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctors d WHERE d.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("doctor")
	}
	if err != nil {
		return nil, apperrors.Transient("failed to get doctor", err)
	}
	return d, nil
}

func (r *repoPG) ListDoctorsForHospital(ctx context.Context, hospitalID uuid.UUID) ([]Doctor, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+doctorCols+`
		FROM doctors d
		JOIN doctor_hospitals dh ON dh.doctor_id = d.id
		WHERE dh.hospital_id = $1
		ORDER BY d.full_name, d.id`, hospitalID)
	if err != nil {
		return nil, apperrors.Transient("failed to list doctors", err)
	}
	defer rows.Close()

	var items []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, apperrors.Transient("failed to scan doctor", err)
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Transient("failed to list doctors", err)
	}
	return items, nil
}
