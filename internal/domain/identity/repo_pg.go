package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/pkg/apperrors"
)

type patientRepoPG struct{ pool db.Querier }

func NewPatientRepoPG(pool db.Querier) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, auth_user_id, full_name, phone, email, date_of_birth, gender, created_at, updated_at`

func (r *patientRepoPG) Upsert(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, auth_user_id, full_name, phone, email, date_of_birth, gender)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (auth_user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			date_of_birth = EXCLUDED.date_of_birth,
			gender = EXCLUDED.gender,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		uuid.New(), p.AuthUserID, p.FullName, p.Phone, p.Email, p.DateOfBirth, p.Gender).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return apperrors.Transient("failed to save patient", err)
	}
	return nil
}

func (r *patientRepoPG) GetByAuthUserID(ctx context.Context, authUserID string) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE auth_user_id = $1`, authUserID).
		Scan(&p.ID, &p.AuthUserID, &p.FullName, &p.Phone, &p.Email, &p.DateOfBirth, &p.Gender,
			&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("patient")
	}
	if err != nil {
		return nil, apperrors.Transient("failed to get patient", err)
	}
	return &p, nil
}
